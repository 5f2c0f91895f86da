package bitvec

import (
	"math/big"
	"testing"

	"github.com/xyproto/customasm/internal/bigint"
)

func TestWriteBigIntSingleByte(t *testing.T) {
	bv := New()
	bv.WriteBigInt(0, bigint.WithSize(big.NewInt(0x41), 8))
	if bv.Len() != 8 {
		t.Fatalf("Len() = %d, want 8", bv.Len())
	}
	got := bv.Bytes()
	if len(got) != 1 || got[0] != 0x41 {
		t.Fatalf("Bytes() = %x, want 41", got)
	}
}

func TestWriteBigIntZeroExtends(t *testing.T) {
	bv := New()
	bv.WriteBigInt(8, bigint.WithSize(big.NewInt(0xFF), 8))
	if bv.Len() != 16 {
		t.Fatalf("Len() = %d, want 16", bv.Len())
	}
	got := bv.Bytes()
	if got[0] != 0 || got[1] != 0xFF {
		t.Fatalf("Bytes() = %x, want 00ff", got)
	}
}

func TestWriteBitVec(t *testing.T) {
	src := New()
	src.WriteBigInt(0, bigint.WithSize(big.NewInt(0x1234), 16))

	dst := New()
	dst.WriteBigInt(0, bigint.WithSize(big.NewInt(0), 8))
	dst.WriteBitVec(8, src)

	if dst.Len() != 24 {
		t.Fatalf("Len() = %d, want 24", dst.Len())
	}
	got := dst.Bytes()
	want := []byte{0x00, 0x12, 0x34}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Bytes() = %x, want %x", got, want)
		}
	}
}

func TestEqual(t *testing.T) {
	a := New()
	a.WriteBigInt(0, bigint.WithSize(big.NewInt(5), 8))
	b := New()
	b.WriteBigInt(0, bigint.WithSize(big.NewInt(5), 8))
	c := New()
	c.WriteBigInt(0, bigint.WithSize(big.NewInt(5), 16))

	if !a.Equal(b) {
		t.Errorf("expected a.Equal(b)")
	}
	if a.Equal(c) {
		t.Errorf("expected a != c (different length)")
	}
}

func TestNegativeTwosComplement(t *testing.T) {
	bv := New()
	bv.WriteBigInt(0, bigint.WithSize(big.NewInt(-1), 8))
	got := bv.Bytes()
	if got[0] != 0xFF {
		t.Fatalf("Bytes() = %x, want ff", got)
	}
}

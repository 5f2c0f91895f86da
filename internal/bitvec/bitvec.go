// Package bitvec implements the C1 BitVector: a dense, bit-addressable
// buffer of arbitrary length, indexed from 0, most-significant-bit-first
// within each byte.
package bitvec

import (
	"math/big"

	"github.com/xyproto/customasm/internal/bigint"
)

// BitVector is a growable sequence of bits.
type BitVector struct {
	bytes  []byte
	length int // length in bits
}

// New returns an empty BitVector.
func New() *BitVector {
	return &BitVector{}
}

// Len returns the length in bits.
func (bv *BitVector) Len() int {
	return bv.length
}

func (bv *BitVector) ensureBits(n int) {
	if n <= bv.length {
		return
	}
	needBytes := (n + 7) / 8
	if needBytes > len(bv.bytes) {
		grown := make([]byte, needBytes)
		copy(grown, bv.bytes)
		bv.bytes = grown
	}
	bv.length = n
}

func (bv *BitVector) setBit(i int, v byte) {
	byteIdx := i / 8
	bitIdx := 7 - (i % 8)
	if v != 0 {
		bv.bytes[byteIdx] |= 1 << uint(bitIdx)
	} else {
		bv.bytes[byteIdx] &^= 1 << uint(bitIdx)
	}
}

func (bv *BitVector) getBit(i int) byte {
	byteIdx := i / 8
	bitIdx := 7 - (i % 8)
	return (bv.bytes[byteIdx] >> uint(bitIdx)) & 1
}

// WriteBigInt writes v's two's-complement representation (using its
// declared size, or MinSize() if undeclared) starting at bitOffset,
// zero-extending the buffer as necessary.
func (bv *BitVector) WriteBigInt(bitOffset int, v *bigint.BigInt) {
	width := v.EffectiveSize()
	bv.ensureBits(bitOffset + width)
	bits := bigint.TwosComplementBits(v.Value(), width)
	for i, bit := range bits {
		bv.setBit(bitOffset+i, bit)
	}
}

// WriteBitVec copies other's bits into this BitVector starting at
// bitOffset, zero-extending as necessary.
func (bv *BitVector) WriteBitVec(bitOffset int, other *BitVector) {
	bv.ensureBits(bitOffset + other.length)
	for i := 0; i < other.length; i++ {
		bv.setBit(bitOffset+i, other.getBit(i))
	}
}

// Equal reports whether two BitVectors have equal length and identical
// bits.
func (bv *BitVector) Equal(other *BitVector) bool {
	if other == nil || bv.length != other.length {
		return false
	}
	for i := 0; i < bv.length; i++ {
		if bv.getBit(i) != other.getBit(i) {
			return false
		}
	}
	return true
}

// Bytes returns the packed byte representation, zero-padded to a byte
// boundary in the final byte if Len() is not a multiple of 8.
func (bv *BitVector) Bytes() []byte {
	needBytes := (bv.length + 7) / 8
	out := make([]byte, needBytes)
	copy(out, bv.bytes[:needBytes])
	return out
}

// AsBigInt reinterprets the whole buffer as an unsigned big integer,
// most-significant bit first. Useful for test assertions.
func (bv *BitVector) AsBigInt() *big.Int {
	out := new(big.Int)
	for i := 0; i < bv.length; i++ {
		out.Lsh(out, 1)
		if bv.getBit(i) != 0 {
			out.Or(out, big.NewInt(1))
		}
	}
	return out
}

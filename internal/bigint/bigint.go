// Package bigint implements the C2 BigInteger: an arbitrary-precision
// signed integer with an optional declared bit width.
package bigint

import "math/big"

// BigInt is a signed integer of unbounded magnitude plus an optional
// declared size in bits. EffectiveSize falls back to MinSize() for a
// BigInt with no declared size; bank.ResolveBankData does not, and
// reports such a value as "cannot infer size".
type BigInt struct {
	val     *big.Int
	size    int
	hasSize bool
}

// New wraps v with no declared size.
func New(v *big.Int) *BigInt {
	return &BigInt{val: new(big.Int).Set(v)}
}

// FromInt64 builds an undeclared-size BigInt from a native int64.
func FromInt64(v int64) *BigInt {
	return New(big.NewInt(v))
}

// WithSize wraps v with an explicit declared size in bits.
func WithSize(v *big.Int, size int) *BigInt {
	return &BigInt{val: new(big.Int).Set(v), size: size, hasSize: true}
}

// Value returns the underlying magnitude as a *big.Int. Callers must not
// mutate the result.
func (b *BigInt) Value() *big.Int {
	return b.val
}

// HasSize reports whether a declared bit width is present.
func (b *BigInt) HasSize() bool {
	return b.hasSize
}

// Size returns the declared bit width. Only valid when HasSize() is true.
func (b *BigInt) Size() int {
	return b.size
}

// MinSize returns the number of bits needed to faithfully represent the
// magnitude in two's complement, including the sign bit.
func (b *BigInt) MinSize() int {
	return MinSize(b.val)
}

// MinSize computes the two's-complement bit width required for v.
func MinSize(v *big.Int) int {
	switch v.Sign() {
	case 0:
		return 1
	case 1:
		return v.BitLen() + 1
	default:
		// For negative v, the minimal two's-complement width is the bit
		// length of (-v - 1) plus the sign bit: -1 needs 1 bit, -128
		// needs 8 bits, matching the signed range [-2^(n-1), 2^(n-1)-1].
		t := new(big.Int).Add(v, big.NewInt(1))
		t.Neg(t)
		return t.BitLen() + 1
	}
}

// EffectiveSize returns the declared size if present, else MinSize().
func (b *BigInt) EffectiveSize() int {
	if b.hasSize {
		return b.size
	}
	return b.MinSize()
}

// Equal compares magnitude and declared size.
func (b *BigInt) Equal(other *BigInt) bool {
	if other == nil {
		return false
	}
	if b.hasSize != other.hasSize {
		return false
	}
	if b.hasSize && b.size != other.size {
		return false
	}
	return b.val.Cmp(other.val) == 0
}

// TwosComplementBits returns the bits of v in two's complement, width
// bits wide, most-significant bit first.
func TwosComplementBits(v *big.Int, width int) []byte {
	bits := make([]byte, width)
	if v.Sign() >= 0 {
		for i := 0; i < width; i++ {
			bitIdx := width - 1 - i
			bits[i] = byte(v.Bit(bitIdx))
		}
		return bits
	}
	// Two's complement of a negative number: (1<<width) + v.
	mod := new(big.Int).Lsh(big.NewInt(1), uint(width))
	tc := new(big.Int).Add(mod, v)
	for i := 0; i < width; i++ {
		bitIdx := width - 1 - i
		bits[i] = byte(tc.Bit(bitIdx))
	}
	return bits
}

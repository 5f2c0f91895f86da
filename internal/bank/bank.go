// Package bank implements the C4 BankRegistry and resolve_bankdata:
// ordered banks with bit-level output regions, overlap checking, and
// per-bank invocation resolution.
package bank

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/xyproto/customasm/internal/asmstate"
	"github.com/xyproto/customasm/internal/bigint"
	"github.com/xyproto/customasm/internal/bitvec"
	"github.com/xyproto/customasm/internal/diag"
	"github.com/xyproto/customasm/internal/eval"
)

// Span locates a bank's declaration for diagnostics.
type Span = diag.Span

// Bank is a named output region with an address origin and word size.
type Bank struct {
	Name         string
	OutputOffset *big.Int // words from start of image; nil = not output-anchored
	AddrSize     *big.Int // words; nil = unbounded
	AddrStart    *bigint.BigInt
	WordSize     int // bits per word; default 8
	DeclSpan     Span
}

// BankData is per-bank mutable state: a reference to the bank, the
// write cursor (in bits from bank origin, maintained by the parser as
// invocations are emitted), and the ordered invocation list.
type BankData struct {
	Bank         *Bank
	CurBitOffset int
	Invocations  []*asmstate.Invocation
}

// Registry is the ordered set of registered banks.
type Registry struct {
	banks      []*Bank
	hasDefault bool
}

// NewRegistry returns an empty bank registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// wordsToBits multiplies words by wordsize in arbitrary precision,
// avoiding the 64-bit overflow hazard flagged in spec.md §9.
func wordsToBits(words *big.Int, wordsize int) *big.Int {
	return new(big.Int).Mul(words, big.NewInt(int64(wordsize)))
}

// OutputBitOffset returns b's offset into the final image, in bits, per
// spec.md §4.1's "output_offset × wordsize". The second return is false
// for a bank with no OutputOffset (not placed directly in the image).
func OutputBitOffset(b *Bank) (*big.Int, bool) {
	if b.OutputOffset == nil {
		return nil, false
	}
	return wordsToBits(b.OutputOffset, b.WordSize), true
}

// ByName returns the registered bank named name, or nil.
func (r *Registry) ByName(name string) *Bank {
	for _, b := range r.banks {
		if b.Name == name {
			return b
		}
	}
	return nil
}

func intervalsOverlap(o1, s1, o2, s2 *big.Int) bool {
	end1 := new(big.Int).Add(o1, s1)
	end2 := new(big.Int).Add(o2, s2)
	return o1.Cmp(end2) < 0 && o2.Cmp(end1) < 0
}

// regionExtendsPast reports whether the sized region [sizedOffset,
// sizedOffset+sizedSize) extends past unboundedStart, i.e. overlaps an
// unbounded bank growing forever from unboundedStart. This single
// formula covers both declaration orders referenced by spec.md §4.2's
// "in either direction" wording.
func regionExtendsPast(sizedOffset, sizedSize, unboundedStart *big.Int) bool {
	end := new(big.Int).Add(sizedOffset, sizedSize)
	return end.Cmp(unboundedStart) > 0
}

func overlaps(a, b *Bank) bool {
	if a.OutputOffset == nil || b.OutputOffset == nil {
		return false
	}
	oa := wordsToBits(a.OutputOffset, a.WordSize)
	ob := wordsToBits(b.OutputOffset, b.WordSize)
	switch {
	case a.AddrSize != nil && b.AddrSize != nil:
		sa := wordsToBits(a.AddrSize, a.WordSize)
		sb := wordsToBits(b.AddrSize, b.WordSize)
		return intervalsOverlap(oa, sa, ob, sb)
	case a.AddrSize != nil && b.AddrSize == nil:
		sa := wordsToBits(a.AddrSize, a.WordSize)
		return regionExtendsPast(oa, sa, ob)
	case b.AddrSize != nil && a.AddrSize == nil:
		sb := wordsToBits(b.AddrSize, b.WordSize)
		return regionExtendsPast(ob, sb, oa)
	default:
		return true
	}
}

// Register adds b to the registry, enforcing the at-most-one-default
// invariant and pairwise overlap checks of spec.md §4.2. On overlap,
// sink receives an Error against the new bank's declaration span (the
// error this function returns is plain Go-error plumbing for the
// caller's own control flow, not itself a diagnostic) with a nested
// Note naming the pre-existing bank (original_source supplement, see
// DESIGN.md).
func (r *Registry) Register(b *Bank, sink *diag.Sink) error {
	if b.WordSize <= 0 {
		b.WordSize = 8
	}
	isDefault := b.Name == ""
	if isDefault {
		if r.hasDefault {
			return fmt.Errorf("more than one default bank")
		}
		r.hasDefault = true
	}
	for _, existing := range r.banks {
		if overlaps(existing, b) {
			msg := fmt.Sprintf("bank %q overlaps with previously declared bank %q", b.Name, existing.Name)
			scope := sink.PushScope(b.DeclSpan.File, b.DeclSpan.Line, msg)
			sink.Note(existing.DeclSpan.File, existing.DeclSpan.Line,
				fmt.Sprintf("bank %q declared here", existing.Name))
			sink.EndScope(scope)
			return errors.New(msg)
		}
	}
	r.banks = append(r.banks, b)
	return nil
}

// Banks returns the registered banks in registration order.
func (r *Registry) Banks() []*Bank {
	return r.banks
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// Address computes the PC/address value for a context at bitOffset in
// bank b, per spec.md §4.2. The division by the literal 8 (rather than
// b.WordSize) is preserved intentionally — see DESIGN.md Open Question 1.
func Address(b *Bank, bitOffset int) (*bigint.BigInt, error) {
	if bitOffset%8 != 0 {
		short := 8 - (bitOffset % 8)
		return nil, fmt.Errorf("position not aligned to an address boundary (%d bit%s short)", short, plural(short))
	}
	addr := new(big.Int).Add(big.NewInt(int64(bitOffset/8)), b.AddrStart.Value())
	return bigint.New(addr), nil
}

// Resolution is the outcome of resolving one invocation's value.
type Resolution struct {
	Value       eval.Value
	NotKnowable bool // "size not yet knowable" — rule candidates pending, non-final pass
}

// declaredSize reports the size (in bits) that v should be written with,
// per spec.md §4.2: the directive's own ElemSize takes precedence; absent
// that, v must carry its own declared size (HasSize), since an integer
// with no declared size anywhere cannot be sized by guesswork — see
// original_source/src/asm/state.rs's match on bigint.size. unknown is
// true in that no-declared-size case; size and tooLarge are meaningless
// when unknown is true.
func declaredSize(inv *asmstate.Invocation, v *bigint.BigInt) (size int, tooLarge, unknown bool) {
	if inv.ElemSize != nil {
		if dataSize(v) > *inv.ElemSize {
			return *inv.ElemSize, true, false
		}
		return *inv.ElemSize, false, false
	}
	if !v.HasSize() {
		return 0, false, true
	}
	return v.Size(), false, false
}

// dataSize is the bit width v needs to fit a data directive's element
// size: the plain bit length for a positive value (0xFF fits in 8 bits),
// and the two's-complement MinSize otherwise.
func dataSize(v *bigint.BigInt) int {
	if v.Value().Sign() > 0 {
		return v.Value().BitLen()
	}
	return v.MinSize()
}

// ResolveBankData iterates bd's invocations in order, resolving each via
// resolveFn and writing its bits into the returned BitVector, per
// spec.md §4.2. Returns false if any invocation failed to resolve
// cleanly this pass (non-fatal — triggers another iteration unless this
// is the final pass, per §4.1).
func ResolveBankData(bd *BankData, sink *diag.Sink, resolveFn func(inv *asmstate.Invocation) (Resolution, error)) (*bitvec.BitVector, bool) {
	bv := bitvec.New()
	allOK := true
	for _, inv := range bd.Invocations {
		res, err := resolveFn(inv)
		if err != nil {
			var evalErr *eval.Error
			if !errors.As(err, &evalErr) || !evalErr.Reported {
				sink.Error(inv.Span.File, inv.Span.Line, err.Error())
			}
			allOK = false
			continue
		}
		if res.NotKnowable {
			sink.Error(inv.Span.File, inv.Span.Line, "cannot infer size")
			allOK = false
			continue
		}
		if res.Value.Kind != eval.KindInteger {
			sink.Error(inv.Span.File, inv.Span.Line, "wrong type returned")
			allOK = false
			continue
		}
		size, tooLarge, unknown := declaredSize(inv, res.Value.Int)
		if unknown {
			sink.Error(inv.Span.File, inv.Span.Line, "cannot infer size")
			allOK = false
			continue
		}
		if tooLarge {
			sink.Error(inv.Span.File, inv.Span.Line,
				fmt.Sprintf("value (size = %d) is larger than the directive size (= %d)", dataSize(res.Value.Int), *inv.ElemSize))
			allOK = false
			continue
		}
		if size != inv.SizeGuess {
			sink.Error(inv.Span.File, inv.Span.Line, "size did not converge")
			allOK = false
			continue
		}
		bv.WriteBigInt(inv.Context.BitOffset, bigint.WithSize(res.Value.Int.Value(), size))
	}
	return bv, allOK
}

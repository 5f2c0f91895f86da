// Package driver implements the C8 AssemblyDriver: the fixed-point pass
// loop over State, the driver-owned var_lookup/fn_call callbacks
// (reserved names "$"/"pc"/"assert", the two-table symbol discipline),
// and final image assembly, per spec.md §4.1.
package driver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/xyproto/customasm/internal/asmstate"
	"github.com/xyproto/customasm/internal/bank"
	"github.com/xyproto/customasm/internal/bigint"
	"github.com/xyproto/customasm/internal/bitvec"
	"github.com/xyproto/customasm/internal/diag"
	"github.com/xyproto/customasm/internal/eval"
	"github.com/xyproto/customasm/internal/fileserver"
	"github.com/xyproto/customasm/internal/selector"
	"github.com/xyproto/customasm/internal/symtab"
)

// ErrStableNoProgress is returned when two consecutive passes produced
// an identical symbol_guesses table without any bank converging in
// between — a siphash-detected non-convergence, supplementing spec.md
// §4.1's "size did not converge" diagnostic with an earlier-exit signal
// (see SPEC_FULL.md's siphash entry under Domain Stack).
var ErrStableNoProgress = errors.New("assembly did not converge: guess table stopped changing")

// Parser is the external collaborator that populates a State from one
// root file's source, per spec.md §1 and §4.1 step 2. Not implemented
// by this package.
type Parser interface {
	Parse(fileName string, fs fileserver.FileServer, st *State) error
}

// State is exclusively owned by one pass: all banks, bank-data,
// rulesets, and symbol tables, per spec.md §4.1's ownership note. Only
// SymbolGuesses survives, by swap, into the next pass's State.
// Sink is the pass's diagnostic sink: a Parser implementation (and
// anything it calls, such as bank.Registry.Register) must report
// structural failures here, not into a throwaway local sink, so that
// Assemble's TransferTo calls actually surface them to the caller.
type State struct {
	Rulesets      *asmstate.RulesetTable
	Banks         *bank.Registry
	BankData      map[string]*bank.BankData
	Symbols       *symtab.Table
	SymbolGuesses *symtab.Table
	Final         bool
	Sink          *diag.Sink

	// guessMissed is set when a lookup missed both symbol tables and
	// fell back to 0; Assemble never accepts such a pass as converged.
	guessMissed bool
}

func newState(guesses *symtab.Table, final bool, sink *diag.Sink) *State {
	return &State{
		Rulesets:      &asmstate.RulesetTable{},
		Banks:         bank.NewRegistry(),
		BankData:      make(map[string]*bank.BankData),
		Symbols:       symtab.New(),
		SymbolGuesses: guesses,
		Final:         final,
		Sink:          sink,
	}
}

// BankDataFor returns (creating if necessary) the BankData for a bank
// already registered in st.Banks, for use by a Parser implementation.
func (st *State) BankDataFor(name string) *bank.BankData {
	if bd, ok := st.BankData[name]; ok {
		return bd
	}
	b := st.Banks.ByName(name)
	bd := &bank.BankData{Bank: b}
	st.BankData[name] = bd
	return bd
}

// Driver is the C8 AssemblyDriver.
type Driver struct {
	parser Parser
	files  []string
}

// New returns a Driver that will use parser to populate State each pass.
func New(parser Parser) *Driver {
	return &Driver{parser: parser}
}

// RegisterFile adds name to the set of root files parsed each pass.
func (d *Driver) RegisterFile(name string) {
	d.files = append(d.files, name)
}

// Result is the outcome of a successful Assemble.
type Result struct {
	Image      *bitvec.BitVector
	Iterations int
	Banks      *bank.Registry
}

// Assemble performs at most maxIterations passes per spec.md §4.1's pass
// loop, returning the final concatenated image on success. On failure,
// the collected diagnostics from the pass that failed are transferred
// into sink before returning the error.
func (d *Driver) Assemble(sink *diag.Sink, fs fileserver.FileServer, maxIterations int) (*Result, error) {
	if sink.BuildID == "" {
		sink.BuildID = uuid.New().String()
	}
	guesses := symtab.New()
	var lastFingerprint uint64
	haveFingerprint := false

	for iter := 1; iter <= maxIterations; iter++ {
		final := iter == maxIterations
		passSink := diag.New()
		st := newState(guesses, final, passSink)

		for _, f := range d.files {
			if err := d.parser.Parse(f, fs, st); err != nil {
				passSink.TransferTo(sink)
				return nil, fmt.Errorf("parsing %s: %w", f, err)
			}
		}

		image, allOK := d.resolvePass(st, passSink, final)
		if allOK && !st.guessMissed {
			passSink.TransferTo(sink)
			return &Result{Image: image, Iterations: iter, Banks: st.Banks}, nil
		}

		fp := st.Symbols.Fingerprint()
		stable := haveFingerprint && fp == lastFingerprint
		if final {
			passSink.TransferTo(sink)
			if stable {
				return nil, ErrStableNoProgress
			}
			return nil, fmt.Errorf("size did not converge after %d iteration(s)", maxIterations)
		}
		lastFingerprint, haveFingerprint = fp, true
		guesses = st.Symbols

		if stable && iter < maxIterations-1 {
			// No new information since the last pass: further
			// non-final iterations would repeat identically, so skip
			// straight to the final pass instead of spinning.
			iter = maxIterations - 1
		}
	}
	return nil, fmt.Errorf("size did not converge after %d iteration(s)", maxIterations)
}

// resolvePass runs resolve_bankdata (§4.2) over every registered bank in
// declaration order and assembles a tentative final image. The returned
// bool is false if any bank failed to resolve cleanly this pass.
func (d *Driver) resolvePass(st *State, passSink *diag.Sink, final bool) (*bitvec.BitVector, bool) {
	image := bitvec.New()
	allOK := true
	for _, b := range st.Banks.Banks() {
		bd, ok := st.BankData[b.Name]
		if !ok {
			continue
		}
		resolveFn := func(inv *asmstate.Invocation) (bank.Resolution, error) {
			return d.resolveInvocation(st, passSink, inv, final)
		}
		bv, ok := bank.ResolveBankData(bd, passSink, resolveFn)
		if !ok {
			allOK = false
			continue
		}
		if bitOffset, anchored := bank.OutputBitOffset(b); anchored {
			image.WriteBitVec(int(bitOffset.Int64()), bv)
		}
	}
	return image, allOK
}

// resolveInvocation dispatches one invocation to the rule selector (C7)
// or the plain expression evaluator (C6), per spec.md §4.1 step 3.
func (d *Driver) resolveInvocation(st *State, sink *diag.Sink, inv *asmstate.Invocation, final bool) (bank.Resolution, error) {
	varLookup := d.makeVarLookup(st, inv.Context, final)
	fnCall := d.makeFnCall()

	if inv.Kind == asmstate.KindRule {
		env := &selector.Env{VarLookup: varLookup, FnCall: fnCall, Rules: st.Rulesets}
		v, pending, err := selector.Resolve(env, inv, sink, final)
		if pending {
			return bank.Resolution{NotKnowable: true}, nil
		}
		if err != nil {
			return bank.Resolution{}, err
		}
		return bank.Resolution{Value: v}, nil
	}

	v, err := eval.Eval(inv.DataExpr, nil, sink, varLookup, fnCall)
	if err != nil {
		var evalErr *eval.Error
		if errors.As(err, &evalErr) && evalErr.Soft && !final {
			return bank.Resolution{NotKnowable: true}, nil
		}
		return bank.Resolution{}, err
	}
	return bank.Resolution{Value: v}, nil
}

// makeVarLookup builds the var_lookup callback for one invocation's
// captured context, per spec.md §4.2 (reserved names) and §4.3
// (two-table discipline).
func (d *Driver) makeVarLookup(st *State, ctx asmstate.Context, final bool) eval.VarLookup {
	return func(info eval.VarLookupInfo) (eval.Value, error) {
		if isReservedAddr(info.Hierarchy) {
			b := st.Banks.ByName(ctx.BankName)
			if b == nil {
				return eval.Value{}, eval.HardError("reference to %q outside of any bank", strings.Join(info.Hierarchy, "."))
			}
			addr, err := bank.Address(b, ctx.BitOffset)
			if err != nil {
				msg := err.Error()
				info.Report(diag.KindError, info.Span, msg)
				return eval.Value{}, eval.ReportedHardError(msg)
			}
			return eval.Int(addr), nil
		}
		if len(info.Hierarchy) == 1 && info.Hierarchy[0] == "assert" {
			return eval.Func("assert"), nil
		}

		if sym, ok := st.Symbols.Get(ctx.SymbolCtx, info.HierarchyLevel, info.Hierarchy); ok {
			return sym.Value, nil
		}
		if !final {
			if sym, ok := st.SymbolGuesses.Get(ctx.SymbolCtx, info.HierarchyLevel, info.Hierarchy); ok {
				return sym.Value, nil
			}
			st.guessMissed = true
			return eval.Int(bigint.FromInt64(0)), nil
		}
		msg := fmt.Sprintf("unknown symbol %q", strings.Join(info.Hierarchy, "."))
		info.Report(diag.KindError, info.Span, msg)
		return eval.Value{}, eval.ReportedHardError(msg)
	}
}

func isReservedAddr(hierarchy []string) bool {
	return len(hierarchy) == 1 && (hierarchy[0] == "$" || hierarchy[0] == "pc")
}

// makeFnCall builds the fn_call callback. "assert" never reaches this
// path: it is handled directly by eval.Call as the evaluator's one
// built-in function, per spec.md §4.5.
func (d *Driver) makeFnCall() eval.FnCall {
	return func(info eval.FnCallInfo) (eval.Value, error) {
		msg := fmt.Sprintf("unknown function %q", info.Func)
		info.Report(diag.KindError, info.Span, msg)
		return eval.Value{}, eval.ReportedHardError(msg)
	}
}

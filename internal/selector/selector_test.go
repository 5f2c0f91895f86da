package selector

import (
	"math/big"
	"testing"

	"github.com/xyproto/customasm/internal/asmstate"
	"github.com/xyproto/customasm/internal/bigint"
	"github.com/xyproto/customasm/internal/diag"
	"github.com/xyproto/customasm/internal/eval"
)

func rules() *asmstate.RulesetTable {
	failing := &asmstate.Rule{
		Parameters: nil,
		Production: &eval.Call{Func: "assert", Args: []eval.Expr{&eval.BoolLit{Value: false}}},
	}
	succeeding := &asmstate.Rule{
		Parameters: nil,
		Production: &eval.IntLit{Value: bigint.WithSize(big.NewInt(0x90), 8)},
	}
	return &asmstate.RulesetTable{Rulesets: []*asmstate.Ruleset{
		{Name: "main", Rules: []*asmstate.Rule{failing, succeeding}},
	}}
}

func noVarLookup(info eval.VarLookupInfo) (eval.Value, error) {
	return eval.Value{}, eval.HardError("unexpected var lookup")
}
func noFnCall(info eval.FnCallInfo) (eval.Value, error) {
	return eval.Value{}, eval.HardError("unexpected fn call")
}

func TestResolvePrefersEarlierCandidate(t *testing.T) {
	tbl := rules()
	succeedFirst := &asmstate.Rule{Production: &eval.IntLit{Value: bigint.WithSize(big.NewInt(1), 8)}}
	tbl.Rulesets[0].Rules = append([]*asmstate.Rule{succeedFirst}, tbl.Rulesets[0].Rules...)

	env := &Env{VarLookup: noVarLookup, FnCall: noFnCall, Rules: tbl}
	inv := &asmstate.Invocation{
		Candidates: []*asmstate.RuleInvocationCandidate{
			{Rule: asmstate.RuleRef{RulesetIdx: 0, RuleIdx: 0}},
			{Rule: asmstate.RuleRef{RulesetIdx: 0, RuleIdx: 2}},
		},
	}
	sink := diag.New()
	v, pending, err := Resolve(env, inv, sink, false)
	if err != nil || pending {
		t.Fatalf("Resolve() = %v, %v, %v", v, pending, err)
	}
	if v.Int.Value().Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected first candidate's value 1, got %v", v)
	}
	if sink.Count() != 0 {
		t.Fatalf("expected no diagnostics from successful earlier candidate")
	}
}

func TestResolveNonFinalSilentFailure(t *testing.T) {
	tbl := rules()
	env := &Env{VarLookup: noVarLookup, FnCall: noFnCall, Rules: tbl}
	inv := &asmstate.Invocation{
		Candidates: []*asmstate.RuleInvocationCandidate{
			{Rule: asmstate.RuleRef{RulesetIdx: 0, RuleIdx: 0}},
		},
	}
	sink := diag.New()
	_, pending, err := Resolve(env, inv, sink, false)
	if err != nil {
		t.Fatalf("expected nil error on non-final silent failure, got %v", err)
	}
	if !pending {
		t.Fatalf("expected pending=true")
	}
	if sink.Count() != 0 {
		t.Fatalf("expected no diagnostics surfaced on non-final pass")
	}
}

func TestResolveFinalSurfacesLastCandidateErrors(t *testing.T) {
	tbl := rules()
	env := &Env{VarLookup: noVarLookup, FnCall: noFnCall, Rules: tbl}
	inv := &asmstate.Invocation{
		Candidates: []*asmstate.RuleInvocationCandidate{
			{Rule: asmstate.RuleRef{RulesetIdx: 0, RuleIdx: 0}},
		},
	}
	sink := diag.New()
	_, _, err := Resolve(env, inv, sink, true)
	if err == nil {
		t.Fatalf("expected error on final pass")
	}
	if sink.CountTop() != 1 {
		t.Fatalf("expected the failing candidate's diagnostic to surface, got %d", sink.CountTop())
	}
}

func TestResolveSuccessAfterFirstFails(t *testing.T) {
	tbl := rules()
	env := &Env{VarLookup: noVarLookup, FnCall: noFnCall, Rules: tbl}
	inv := &asmstate.Invocation{
		Candidates: []*asmstate.RuleInvocationCandidate{
			{Rule: asmstate.RuleRef{RulesetIdx: 0, RuleIdx: 0}},
			{Rule: asmstate.RuleRef{RulesetIdx: 0, RuleIdx: 1}},
		},
	}
	sink := diag.New()
	v, pending, err := Resolve(env, inv, sink, true)
	if err != nil || pending {
		t.Fatalf("Resolve() = %v, %v, %v", v, pending, err)
	}
	if v.Int.Value().Cmp(big.NewInt(0x90)) != 0 {
		t.Fatalf("expected second candidate's value 0x90, got %v", v)
	}
	if sink.Count() != 0 {
		t.Fatalf("expected no diagnostics from the failing first candidate to leak")
	}
}

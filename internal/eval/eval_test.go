package eval

import (
	"math/big"
	"testing"

	"github.com/xyproto/customasm/internal/bigint"
	"github.com/xyproto/customasm/internal/diag"
)

func noVarLookup(info VarLookupInfo) (Value, error) {
	return Value{}, HardError("unexpected var lookup")
}

func noFnCall(info FnCallInfo) (Value, error) {
	return Value{}, HardError("unexpected fn call")
}

func TestArithmetic(t *testing.T) {
	sink := diag.New()
	node := &BinOp{
		Op: "+",
		L:  &IntLit{Value: bigint.FromInt64(2)},
		R: &BinOp{
			Op: "*",
			L:  &IntLit{Value: bigint.FromInt64(3)},
			R:  &IntLit{Value: bigint.FromInt64(4)},
		},
	}
	v, err := Eval(node, nil, sink, noVarLookup, noFnCall)
	if err != nil {
		t.Fatalf("Eval() error: %v", err)
	}
	if v.Kind != KindInteger || v.Int.Value().Cmp(big.NewInt(14)) != 0 {
		t.Fatalf("Eval() = %v, want 14", v)
	}
}

func TestAssertTrue(t *testing.T) {
	sink := diag.New()
	node := &Call{Func: "assert", Args: []Expr{&BoolLit{Value: true}}}
	v, err := Eval(node, nil, sink, noVarLookup, noFnCall)
	if err != nil {
		t.Fatalf("Eval() error: %v", err)
	}
	if v.Kind != KindVoid {
		t.Fatalf("Eval() = %v, want void", v)
	}
	if sink.Count() != 0 {
		t.Fatalf("expected no diagnostics, got %d", sink.Count())
	}
}

func TestAssertFalse(t *testing.T) {
	sink := diag.New()
	node := &Call{Func: "assert", Args: []Expr{&BoolLit{Value: false}}}
	_, err := Eval(node, nil, sink, noVarLookup, noFnCall)
	if err == nil {
		t.Fatalf("expected error")
	}
	if err.(*Error).Message != "assertion failed" {
		t.Fatalf("error = %q, want %q", err.Error(), "assertion failed")
	}
	if sink.CountTop() != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", sink.CountTop())
	}
}

func TestAssertWrongArity(t *testing.T) {
	sink := diag.New()
	node := &Call{Func: "assert", Args: []Expr{&BoolLit{Value: true}, &BoolLit{Value: false}}}
	_, err := Eval(node, nil, sink, noVarLookup, noFnCall)
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestVarRefDelegates(t *testing.T) {
	sink := diag.New()
	node := &VarRef{Hierarchy: []string{"label"}}
	lookup := func(info VarLookupInfo) (Value, error) {
		if len(info.Hierarchy) != 1 || info.Hierarchy[0] != "label" {
			t.Fatalf("unexpected hierarchy %v", info.Hierarchy)
		}
		return Int(bigint.FromInt64(42)), nil
	}
	v, err := Eval(node, nil, sink, lookup, noFnCall)
	if err != nil {
		t.Fatalf("Eval() error: %v", err)
	}
	if v.Int.Value().Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("Eval() = %v, want 42", v)
	}
}

func TestSizedRedeclaresWidth(t *testing.T) {
	sink := diag.New()
	node := &Sized{X: &IntLit{Value: bigint.FromInt64(3)}, Width: 8}
	v, err := Eval(node, nil, sink, noVarLookup, noFnCall)
	if err != nil {
		t.Fatalf("Eval() error: %v", err)
	}
	if !v.Int.HasSize() || v.Int.Size() != 8 {
		t.Fatalf("Eval() = %v, want declared size 8", v)
	}
}

func TestSeqEvaluatesFirstThenSecond(t *testing.T) {
	sink := diag.New()
	node := &Seq{
		First:  &Call{Func: "assert", Args: []Expr{&BoolLit{Value: true}}},
		Second: &IntLit{Value: bigint.FromInt64(9)},
	}
	v, err := Eval(node, nil, sink, noVarLookup, noFnCall)
	if err != nil {
		t.Fatalf("Eval() error: %v", err)
	}
	if v.Int.Value().Cmp(big.NewInt(9)) != 0 {
		t.Fatalf("Eval() = %v, want 9", v)
	}
}

func TestSeqPropagatesFirstError(t *testing.T) {
	sink := diag.New()
	node := &Seq{
		First:  &Call{Func: "assert", Args: []Expr{&BoolLit{Value: false}}},
		Second: &IntLit{Value: bigint.FromInt64(9)},
	}
	_, err := Eval(node, nil, sink, noVarLookup, noFnCall)
	if err == nil {
		t.Fatalf("expected error from failing assert in First")
	}
}

func TestComparisonAndEquality(t *testing.T) {
	sink := diag.New()
	node := &BinOp{Op: "==", L: &IntLit{Value: bigint.FromInt64(1)}, R: &IntLit{Value: bigint.FromInt64(2)}}
	v, err := Eval(node, nil, sink, noVarLookup, noFnCall)
	if err != nil {
		t.Fatalf("Eval() error: %v", err)
	}
	if v.Kind != KindBool || v.Bool {
		t.Fatalf("Eval() = %v, want false", v)
	}
}

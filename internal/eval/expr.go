package eval

import (
	"math/big"

	"github.com/xyproto/customasm/internal/bigint"
	"github.com/xyproto/customasm/internal/diag"
)

// IntLit is an integer literal, optionally with a declared bit width
// (a Value built with bigint.WithSize).
type IntLit struct {
	Value *bigint.BigInt
	Span  diag.Span
}

func (n *IntLit) eval(_ *env) (Value, error) {
	return Int(n.Value), nil
}

// BoolLit is a boolean literal.
type BoolLit struct {
	Value bool
	Span  diag.Span
}

func (n *BoolLit) eval(_ *env) (Value, error) {
	return BoolVal(n.Value), nil
}

// LocalRef resolves a name bound by the rule-argument binding step of
// §4.4, rather than the symbol table.
type LocalRef struct {
	Name string
	Span diag.Span
}

func (n *LocalRef) eval(e *env) (Value, error) {
	if v, ok := e.locals[n.Name]; ok {
		return v, nil
	}
	return Value{}, HardError("undefined local %q", n.Name)
}

// VarRef is a symbol/PC reference resolved through the var_lookup
// callback (§4.3, §4.5). HierarchyLevel/Hierarchy mirror the contract's
// info record verbatim; the reserved names "$"/"pc"/"assert" are
// special-cased by the caller-supplied VarLookup, not by this node.
type VarRef struct {
	HierarchyLevel int
	Hierarchy      []string
	Span           diag.Span
}

func (n *VarRef) eval(e *env) (Value, error) {
	info := VarLookupInfo{
		HierarchyLevel: n.HierarchyLevel,
		Hierarchy:      n.Hierarchy,
		Span:           n.Span,
		Report:         e.sink.Report(),
	}
	return e.varLookup(info)
}

// BinOp is a binary operator expression.
type BinOp struct {
	Op   string // "+", "-", "*", "/", "==", "!=", "<", "<=", ">", ">=", "&&", "||", "&", "|", "^", "<<", ">>"
	L, R Expr
	Span diag.Span
}

func (n *BinOp) eval(e *env) (Value, error) {
	lv, err := n.L.eval(e)
	if err != nil {
		return Value{}, err
	}
	// Short-circuit boolean operators.
	if n.Op == "&&" || n.Op == "||" {
		if lv.Kind != KindBool {
			return Value{}, HardError("left operand of %q is not a boolean", n.Op)
		}
		if n.Op == "&&" && !lv.Bool {
			return BoolVal(false), nil
		}
		if n.Op == "||" && lv.Bool {
			return BoolVal(true), nil
		}
		rv, err := n.R.eval(e)
		if err != nil {
			return Value{}, err
		}
		if rv.Kind != KindBool {
			return Value{}, HardError("right operand of %q is not a boolean", n.Op)
		}
		return rv, nil
	}

	rv, err := n.R.eval(e)
	if err != nil {
		return Value{}, err
	}

	switch n.Op {
	case "==", "!=":
		eq := valuesEqual(lv, rv)
		if n.Op == "!=" {
			eq = !eq
		}
		return BoolVal(eq), nil
	}

	if lv.Kind != KindInteger || rv.Kind != KindInteger {
		return Value{}, HardError("operator %q requires integer operands", n.Op)
	}
	l, r := lv.Int.Value(), rv.Int.Value()
	switch n.Op {
	case "+":
		return Int(bigint.New(new(big.Int).Add(l, r))), nil
	case "-":
		return Int(bigint.New(new(big.Int).Sub(l, r))), nil
	case "*":
		return Int(bigint.New(new(big.Int).Mul(l, r))), nil
	case "/":
		if r.Sign() == 0 {
			return Value{}, HardError("division by zero")
		}
		return Int(bigint.New(new(big.Int).Quo(l, r))), nil
	case "%":
		if r.Sign() == 0 {
			return Value{}, HardError("division by zero")
		}
		return Int(bigint.New(new(big.Int).Rem(l, r))), nil
	case "&":
		return Int(bigint.New(new(big.Int).And(l, r))), nil
	case "|":
		return Int(bigint.New(new(big.Int).Or(l, r))), nil
	case "^":
		return Int(bigint.New(new(big.Int).Xor(l, r))), nil
	case "<<":
		return Int(bigint.New(new(big.Int).Lsh(l, uint(r.Int64())))), nil
	case ">>":
		return Int(bigint.New(new(big.Int).Rsh(l, uint(r.Int64())))), nil
	case "<":
		return BoolVal(l.Cmp(r) < 0), nil
	case "<=":
		return BoolVal(l.Cmp(r) <= 0), nil
	case ">":
		return BoolVal(l.Cmp(r) > 0), nil
	case ">=":
		return BoolVal(l.Cmp(r) >= 0), nil
	default:
		return Value{}, HardError("unknown operator %q", n.Op)
	}
}

func valuesEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindInteger:
		return a.Int.Value().Cmp(b.Int.Value()) == 0
	case KindBool:
		return a.Bool == b.Bool
	case KindFunction:
		return a.FuncName == b.FuncName
	default:
		return true
	}
}

// UnaryOp is a unary prefix operator expression.
type UnaryOp struct {
	Op   string // "-", "!", "~"
	X    Expr
	Span diag.Span
}

func (n *UnaryOp) eval(e *env) (Value, error) {
	v, err := n.X.eval(e)
	if err != nil {
		return Value{}, err
	}
	switch n.Op {
	case "-":
		if v.Kind != KindInteger {
			return Value{}, HardError("unary - requires an integer operand")
		}
		return Int(bigint.New(new(big.Int).Neg(v.Int.Value()))), nil
	case "!":
		if v.Kind != KindBool {
			return Value{}, HardError("unary ! requires a boolean operand")
		}
		return BoolVal(!v.Bool), nil
	case "~":
		if v.Kind != KindInteger {
			return Value{}, HardError("unary ~ requires an integer operand")
		}
		return Int(bigint.New(new(big.Int).Not(v.Int.Value()))), nil
	default:
		return Value{}, HardError("unknown unary operator %q", n.Op)
	}
}

// Sized re-declares the bit width of an integer-valued sub-expression,
// e.g. a rule production pinning a candidate's emitted width to exactly
// Width bits regardless of the referenced value's own minimal size.
type Sized struct {
	X     Expr
	Width int
	Span  diag.Span
}

func (n *Sized) eval(e *env) (Value, error) {
	v, err := n.X.eval(e)
	if err != nil {
		return Value{}, err
	}
	if v.Kind != KindInteger {
		return Value{}, HardError("cannot size a non-integer value")
	}
	return Int(bigint.WithSize(v.Int.Value(), n.Width)), nil
}

// Seq evaluates First for its side effects (error propagation and any
// diagnostics reported along the way, e.g. an assert guard), discards
// its value, then evaluates and returns Second. Used by rule
// productions that need to gate a candidate's value on a precondition
// before returning it; not part of the spec's evaluator contract, just
// plumbing internal to this concrete expression tree.
type Seq struct {
	First, Second Expr
}

func (n *Seq) eval(e *env) (Value, error) {
	if _, err := n.First.eval(e); err != nil {
		return Value{}, err
	}
	return n.Second.eval(e)
}

// Call is a function-call expression, e.g. `#assert(cond)`. The builtin
// "assert" (spec.md §4.5) is handled directly by this node rather than
// delegated to the caller-supplied FnCall, since it is part of the
// evaluator contract itself, not a user-defined rule production.
type Call struct {
	Func string
	Args []Expr
	Span diag.Span
}

func (n *Call) eval(e *env) (Value, error) {
	args := make([]Value, len(n.Args))
	for i, a := range n.Args {
		v, err := a.eval(e)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	report := e.sink.Report()
	if n.Func == "assert" {
		return evalAssert(args, n.Span, report)
	}
	info := FnCallInfo{Func: n.Func, Args: args, Span: n.Span, Report: report}
	return e.fnCall(info)
}

// evalAssert implements the built-in assert function of §4.5: exactly
// one boolean argument; void on true; "assertion failed" and failure on
// false; any other arity or type yields a corresponding diagnostic.
func evalAssert(args []Value, span diag.Span, report diag.ReportFunc) (Value, error) {
	if len(args) != 1 {
		msg := "assert expects exactly one argument"
		report(diag.KindError, span, msg)
		return Value{}, ReportedHardError(msg)
	}
	if args[0].Kind != KindBool {
		msg := "assert expects a boolean argument"
		report(diag.KindError, span, msg)
		return Value{}, ReportedHardError(msg)
	}
	if !args[0].Bool {
		msg := "assertion failed"
		report(diag.KindError, span, msg)
		return Value{}, ReportedHardError(msg)
	}
	return Void, nil
}

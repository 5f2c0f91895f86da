// Package eval implements the C6 ExpressionEvaluator contract: a Value
// sum type, the var_lookup/fn_call callback signatures, and the
// built-in assert function of spec.md §4.5.
//
// The expression-tree representation itself is, per spec.md §1, an
// external collaborator the core only consumes through this contract.
// This package also ships a minimal concrete expression tree (see
// expr.go) because no example in the retrieval pack provides a
// reusable generic expression language — it exists so the rest of the
// module (and its tests) has something concrete to drive the contract
// with, not as a general-purpose expression language in its own right.
package eval

import (
	"fmt"

	"github.com/xyproto/customasm/internal/bigint"
	"github.com/xyproto/customasm/internal/diag"
)

// ValueKind tags the Value sum type.
type ValueKind int

const (
	KindVoid ValueKind = iota
	KindInteger
	KindBool
	KindFunction
)

// Value is the sum type Integer(BigInt) | Bool | Void | Function(name)
// described in spec.md §9's Design Notes.
type Value struct {
	Kind     ValueKind
	Int      *bigint.BigInt
	Bool     bool
	FuncName string
}

// Void is the canonical void value.
var Void = Value{Kind: KindVoid}

// Int wraps a BigInt as an Integer value.
func Int(b *bigint.BigInt) Value {
	return Value{Kind: KindInteger, Int: b}
}

// BoolVal wraps a bool as a Bool value.
func BoolVal(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// Func wraps a function name as a Function-handle value.
func Func(name string) Value {
	return Value{Kind: KindFunction, FuncName: name}
}

func (v Value) String() string {
	switch v.Kind {
	case KindVoid:
		return "void"
	case KindInteger:
		return v.Int.Value().String()
	case KindBool:
		return fmt.Sprintf("%v", v.Bool)
	case KindFunction:
		return "fn:" + v.FuncName
	default:
		return "?"
	}
}

// Error is the error type returned by var_lookup/fn_call and by Eval.
// Soft errors should trigger another pass (spec.md §4.1); hard errors
// are final-pass failures that must surface to the caller.
type Error struct {
	Soft    bool
	Message string
	// Reported is true when the code that produced this error already
	// wrote a diagnostic via a Report callback (e.g. evalAssert, a
	// driver's var_lookup). Callers holding a generic catch-all
	// diagnostic (bank.ResolveBankData) consult this to avoid logging
	// the same failure twice.
	Reported bool
}

func (e *Error) Error() string {
	return e.Message
}

// SoftError builds a non-final-pass ("try again next pass") failure.
func SoftError(format string, args ...interface{}) *Error {
	return &Error{Soft: true, Message: fmt.Sprintf(format, args...)}
}

// HardError builds a final-pass failure.
func HardError(format string, args ...interface{}) *Error {
	return &Error{Soft: false, Message: fmt.Sprintf(format, args...)}
}

// ReportedHardError builds a final-pass failure already surfaced via a
// Report callback, so generic catch-all reporting does not repeat it.
func ReportedHardError(message string) *Error {
	return &Error{Soft: false, Message: message, Reported: true}
}

// VarLookupInfo is the record passed to a VarLookup callback, per §4.5.
type VarLookupInfo struct {
	HierarchyLevel int
	Hierarchy      []string
	Span           diag.Span
	Report         diag.ReportFunc
}

// FnCallInfo is the record passed to an FnCall callback, per §4.5.
type FnCallInfo struct {
	Func   string
	Args   []Value
	Span   diag.Span
	Report diag.ReportFunc
}

// VarLookup resolves a variable reference to a Value, or fails.
type VarLookup func(info VarLookupInfo) (Value, error)

// FnCall resolves a (non-builtin) function call to a Value, or fails.
type FnCall func(info FnCallInfo) (Value, error)

// Expr is the expression-tree node contract the core evaluates. See the
// package doc comment: this is a minimal concrete tree, not a generic
// expression language.
type Expr interface {
	eval(env *env) (Value, error)
}

type env struct {
	locals    map[string]Value
	sink      *diag.Sink
	varLookup VarLookup
	fnCall    FnCall
}

// Eval walks node, resolving VarRef nodes via varLookup and Call nodes
// via the built-in assert (when applicable) or fnCall, reporting
// diagnostics emitted along the way into sink.
func Eval(node Expr, locals map[string]Value, sink *diag.Sink, varLookup VarLookup, fnCall FnCall) (Value, error) {
	e := &env{locals: locals, sink: sink, varLookup: varLookup, fnCall: fnCall}
	return node.eval(e)
}

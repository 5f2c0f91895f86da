// Package asmstate implements the C5 InvocationBuffer types: pending
// instruction/data emissions, rule invocation candidates, and the
// capture context carried with each invocation, plus the Rule/Ruleset
// index tables of spec.md §3.
package asmstate

import (
	"github.com/xyproto/customasm/internal/diag"
	"github.com/xyproto/customasm/internal/eval"
	"github.com/xyproto/customasm/internal/symtab"
)

// Context is the immutable record captured at the point an invocation
// was parsed: bit offset, owning bank (by name, to avoid a dependency
// cycle with package bank), and the symbol cursor at capture time.
type Context struct {
	BitOffset int
	BankName  string
	SymbolCtx symtab.Context
}

// Arg is one already-parsed argument of a RuleInvocationCandidate:
// either an expression or a nested list of sub-candidates (§3).
type Arg interface {
	isArg()
}

// ExprArg is an expression-valued argument.
type ExprArg struct {
	Expr eval.Expr
}

func (ExprArg) isArg() {}

// NestedArg is a nested rule-matched sub-production argument.
type NestedArg struct {
	Candidates []*RuleInvocationCandidate
}

func (NestedArg) isArg() {}

// RuleRef is a stable (ruleset index, rule index) pair.
type RuleRef struct {
	RulesetIdx int
	RuleIdx    int
}

// RulesetRef is a stable index into a RulesetTable's Rulesets slice.
type RulesetRef int

// Param is one typed parameter of a Rule.
type Param struct {
	Name string
	Type string
}

// Rule is a declared production: typed parameters plus a production
// expression whose free variables bind to those parameters.
type Rule struct {
	Parameters []Param
	Production eval.Expr
}

// Ruleset is a named collection of rules.
type Ruleset struct {
	Name  string
	Rules []*Rule
}

// RulesetTable holds all rulesets for one pass, addressed by stable
// RuleRef/RulesetRef indices rather than borrowed pointers, per the
// Design Notes in spec.md §9.
type RulesetTable struct {
	Rulesets []*Ruleset
}

// Rule dereferences a RuleRef against the table.
func (t *RulesetTable) Rule(ref RuleRef) *Rule {
	return t.Rulesets[ref.RulesetIdx].Rules[ref.RuleIdx]
}

// RuleInvocationCandidate references a specific rule plus its
// already-parsed argument forms.
type RuleInvocationCandidate struct {
	Rule RuleRef
	Args []Arg
}

// InvocationKind distinguishes rule invocations from data invocations.
type InvocationKind int

const (
	KindRule InvocationKind = iota
	KindData
)

// Invocation is one pending emission: either a rule invocation (with
// candidate encodings) or a data invocation (an expression plus an
// optional fixed element size).
type Invocation struct {
	Kind InvocationKind

	// Rule invocation fields.
	Candidates []*RuleInvocationCandidate

	// Data invocation fields.
	DataExpr eval.Expr
	ElemSize *int // declared element size in bits, if fixed

	Context   Context
	Span      diag.Span
	SizeGuess int
}

// Package selector implements the C7 RuleSelector: first-success
// candidate resolution over an Invocation's rule encodings, with
// quarantined per-candidate diagnostics (spec.md §4.4).
package selector

import (
	"github.com/xyproto/customasm/internal/asmstate"
	"github.com/xyproto/customasm/internal/diag"
	"github.com/xyproto/customasm/internal/eval"
)

// Env supplies the evaluation callbacks shared by every candidate
// attempt for one invocation.
type Env struct {
	VarLookup eval.VarLookup
	FnCall    eval.FnCall
	Rules     *asmstate.RulesetTable
}

// Resolve tries each candidate of inv in order against a fresh
// quarantined sink, per §4.4's algorithm. On success, the winning
// candidate's diagnostics are merged into sink and its value returned.
// On total failure: on the final pass, the last candidate is re-run
// against sink directly so its errors surface; otherwise failure is
// silent (pending bool set, nil error) so the driver can iterate again.
func Resolve(env *Env, inv *asmstate.Invocation, sink *diag.Sink, final bool) (eval.Value, bool, error) {
	if len(inv.Candidates) == 0 {
		return eval.Value{}, false, eval.HardError("no candidate encodings for invocation")
	}
	for i, cand := range inv.Candidates {
		isLast := i == len(inv.Candidates)-1
		sub := diag.New()
		v, err := resolveCandidate(env, cand, inv.Context, sub, final)
		if err == nil {
			sub.TransferTo(sink)
			return v, false, nil
		}
		if isLast && final {
			// Re-run the last candidate against the real sink so its
			// error messages surface, per §4.4 point 3.
			v, err = resolveCandidate(env, cand, inv.Context, sink, final)
			if err == nil {
				return v, false, nil
			}
			return eval.Value{}, false, err
		}
	}
	if final {
		// Unreachable in practice: the loop above always re-runs the
		// last candidate on the final pass. Kept for defensiveness.
		return eval.Value{}, false, eval.HardError("candidate list exhausted with no match")
	}
	return eval.Value{}, true, nil
}

// resolveCandidate binds each argument of cand to a local, per §4.4's
// per-candidate resolution, then evaluates the rule's production.
func resolveCandidate(env *Env, cand *asmstate.RuleInvocationCandidate, ctx asmstate.Context, sink *diag.Sink, final bool) (eval.Value, error) {
	rule := env.Rules.Rule(cand.Rule)
	if len(rule.Parameters) != len(cand.Args) {
		return eval.Value{}, eval.HardError("expected %d argument(s), got %d", len(rule.Parameters), len(cand.Args))
	}
	locals := make(map[string]eval.Value, len(rule.Parameters))
	for i, param := range rule.Parameters {
		v, err := bindArg(env, cand.Args[i], ctx, sink, final)
		if err != nil {
			return eval.Value{}, err
		}
		locals[param.Name] = v
	}
	return eval.Eval(rule.Production, locals, sink, env.VarLookup, env.FnCall)
}

func bindArg(env *Env, arg asmstate.Arg, ctx asmstate.Context, sink *diag.Sink, final bool) (eval.Value, error) {
	switch a := arg.(type) {
	case asmstate.ExprArg:
		return eval.Eval(a.Expr, nil, sink, env.VarLookup, env.FnCall)
	case asmstate.NestedArg:
		inv := &asmstate.Invocation{Candidates: a.Candidates, Context: ctx}
		v, pending, err := Resolve(env, inv, sink, final)
		if pending {
			return eval.Value{}, eval.SoftError("nested candidate list not yet resolvable")
		}
		return v, err
	default:
		return eval.Value{}, eval.HardError("unknown argument kind")
	}
}

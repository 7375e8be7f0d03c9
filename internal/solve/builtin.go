package solve

import "capsolve/internal/types"

// builtinRules holds one consider check per built-in rule. Exactly one of them runs for a
// goal, chosen by its capability; considerDynUpcastCandidates additionally runs for the unsize
// role.
type builtinRules interface {
	// considerAutoCandidate: a type has an auto capability if all its components do.
	considerAutoCandidate(ecx *EvalCtxt, goal types.Goal, info *types.Capability) (types.Response, error)
	// considerAliasCandidate: an alias capability holds if its clauses hold.
	considerAliasCandidate(ecx *EvalCtxt, goal types.Goal, info *types.Capability) (types.Response, error)
	considerSizedCandidate(ecx *EvalCtxt, goal types.Goal) (types.Response, error)
	considerCopyCloneCandidate(ecx *EvalCtxt, goal types.Goal) (types.Response, error)
	// considerPointerLikeCandidate: the type is laid out like a thin pointer.
	considerPointerLikeCandidate(ecx *EvalCtxt, goal types.Goal) (types.Response, error)
	// considerFnCandidate: a callable type implements the callable role its signature and
	// closure kind allow.
	considerFnCandidate(ecx *EvalCtxt, goal types.Goal, kind types.ClosureKind) (types.Response, error)
	considerTupleCandidate(ecx *EvalCtxt, goal types.Goal) (types.Response, error)
	// considerPointeeCandidate: every type has pointer metadata.
	considerPointeeCandidate(ecx *EvalCtxt, goal types.Goal) (types.Response, error)
	considerFutureCandidate(ecx *EvalCtxt, goal types.Goal) (types.Response, error)
	considerGeneratorCandidate(ecx *EvalCtxt, goal types.Goal) (types.Response, error)
	// considerUnsizeCandidate covers array to slice, sized type to dynamic type, and struct and
	// tuple tail unsizing.
	considerUnsizeCandidate(ecx *EvalCtxt, goal types.Goal) (types.Response, error)
	// considerDynUpcastCandidates returns one response per super-relation path from the
	// source object's principal to the target's.
	considerDynUpcastCandidates(ecx *EvalCtxt, goal types.Goal) []types.Response
	considerDiscriminantKindCandidate(ecx *EvalCtxt, goal types.Goal) (types.Response, error)
}

// probeAndEvaluateGoalForConstituentTys proves the goal for every constituent of its self
// type.
func (ecx *EvalCtxt) probeAndEvaluateGoalForConstituentTys(goal types.Goal, constituents func(types.Goal, *types.Type) ([]*types.Type, error)) (types.Response, error) {
	return ecx.probe(func() (types.Response, error) {
		tys, err := constituents(goal, goal.SelfTy())
		if err != nil {
			return types.Response{}, err
		}
		for _, t := range tys {
			ecx.addGoal(goal.WithSelf(t))
		}
		return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Proven)
	})
}

// sizedRequirement is `t: Sized` when the world declares a sized capability.
func (ecx *EvalCtxt) sizedRequirement(t *types.Type) []types.Predicate {
	name, ok := ecx.db.RoleCapability(types.RoleSized)
	if !ok {
		return nil
	}
	return []types.Predicate{types.TraitPred(types.TraitRef{Cap: name, Self: t})}
}

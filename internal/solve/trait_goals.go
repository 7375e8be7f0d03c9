package solve

import (
	"slices"

	"capsolve/internal/types"

	"go.uber.org/zap"
)

// traitGoal implements candidate rules for capability goals `Self: Cap<Args>`.
type traitGoal struct{}

func (traitGoal) considerImplCandidate(ecx *EvalCtxt, goal types.Goal, impl *types.ImplDecl) (types.Response, error) {
	pred := goal.Pred.Trait
	if impl.Polarity == types.PolarityNegative || impl.Cap != pred.Cap {
		return types.Response{}, ErrNoSolution
	}
	return ecx.probe(func() (types.Response, error) {
		subst := ecx.freshSubst(impl.Generics)
		if err := ecx.eq(pred.Self, impl.Self.Subst(subst)); err != nil {
			return types.Response{}, err
		}
		if err := ecx.eqAll(pred.Args, types.SubstAll(impl.Args, subst)); err != nil {
			return types.Response{}, err
		}
		for _, w := range impl.Where {
			ecx.addGoal(goal.With(w.Subst(subst)))
		}
		return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Proven)
	})
}

func (traitGoal) considerImpliedClause(ecx *EvalCtxt, goal types.Goal, assumption types.Predicate, requirements []types.Predicate) (types.Response, error) {
	if assumption.Trait == nil || assumption.Trait.Cap != goal.Pred.Trait.Cap {
		return types.Response{}, ErrNoSolution
	}
	return ecx.probe(func() (types.Response, error) {
		if err := ecx.infcx.EqTraitRefs(*goal.Pred.Trait, *assumption.Trait); err != nil {
			return types.Response{}, ErrNoSolution
		}
		ecx.addGoals(goal.Env, requirements)
		return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Proven)
	})
}

// considerObjectBoundCandidate matches an elaborated object bound. Super-relation obligations
// of the object type follow from its well-formedness and are not re-proven here.
func (r traitGoal) considerObjectBoundCandidate(ecx *EvalCtxt, goal types.Goal, assumption types.Predicate) (types.Response, error) {
	return r.considerImpliedClause(ecx, goal, assumption, nil)
}

func (traitGoal) considerAutoCandidate(ecx *EvalCtxt, goal types.Goal, info *types.Capability) (types.Response, error) {
	// An explicit implementation of either polarity opts the ADT out of the structural rule.
	if self := goal.SelfTy(); self.Kind == types.KindAdt && ecx.db.HasExplicitImpl(info.Name, self.Name) {
		return types.Response{}, ErrNoSolution
	}
	return ecx.probeAndEvaluateGoalForConstituentTys(goal, ecx.constituentTysForAutoTrait)
}

func (traitGoal) considerAliasCandidate(ecx *EvalCtxt, goal types.Goal, info *types.Capability) (types.Response, error) {
	return ecx.probe(func() (types.Response, error) {
		subst := capSubst(info, goal.SelfTy(), goal.CapArgs())
		for _, c := range info.Clauses {
			ecx.addGoal(goal.With(c.Subst(subst)))
		}
		return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Proven)
	})
}

func (traitGoal) considerSizedCandidate(ecx *EvalCtxt, goal types.Goal) (types.Response, error) {
	return ecx.probeAndEvaluateGoalForConstituentTys(goal, ecx.constituentTysForSizedTrait)
}

func (traitGoal) considerCopyCloneCandidate(ecx *EvalCtxt, goal types.Goal) (types.Response, error) {
	return ecx.probeAndEvaluateGoalForConstituentTys(goal, ecx.constituentTysForCopyCloneTrait)
}

func (traitGoal) considerPointerLikeCandidate(ecx *EvalCtxt, goal types.Goal) (types.Response, error) {
	self := goal.SelfTy()
	return ecx.probe(func() (types.Response, error) {
		if self.HasVars() {
			return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Ambiguous)
		}
		if !ecx.isPointerSized(self) {
			return types.Response{}, ErrNoSolution
		}
		return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Proven)
	})
}

func (r traitGoal) considerFnCandidate(ecx *EvalCtxt, goal types.Goal, kind types.ClosureKind) (types.Response, error) {
	self := goal.SelfTy()
	sig, known, err := callableSignature(goal, self, kind)
	if err != nil {
		return types.Response{}, err
	}
	if !known {
		return ecx.probe(func() (types.Response, error) {
			return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Ambiguous)
		})
	}
	pred := types.TraitRef{Cap: goal.Pred.Trait.Cap, Self: self, Args: []*types.Type{types.Tuple(sig.Inputs...)}}
	return r.considerImpliedClause(ecx, goal, types.TraitPred(pred), ecx.sizedRequirement(sig.Output))
}

func (traitGoal) considerTupleCandidate(ecx *EvalCtxt, goal types.Goal) (types.Response, error) {
	if goal.SelfTy().Kind != types.KindTuple {
		return types.Response{}, ErrNoSolution
	}
	return ecx.probe(func() (types.Response, error) {
		return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Proven)
	})
}

func (traitGoal) considerPointeeCandidate(ecx *EvalCtxt, goal types.Goal) (types.Response, error) {
	return ecx.probe(func() (types.Response, error) {
		return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Proven)
	})
}

func (traitGoal) considerFutureCandidate(ecx *EvalCtxt, goal types.Goal) (types.Response, error) {
	self := goal.SelfTy()
	// Only generators from async lowering are futures.
	if self.Kind != types.KindGenerator || !self.Gen.Async {
		return types.Response{}, ErrNoSolution
	}
	return ecx.probe(func() (types.Response, error) {
		return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Proven)
	})
}

func (r traitGoal) considerGeneratorCandidate(ecx *EvalCtxt, goal types.Goal) (types.Response, error) {
	self := goal.SelfTy()
	if self.Kind != types.KindGenerator || self.Gen.Async {
		return types.Response{}, ErrNoSolution
	}
	pred := types.TraitRef{Cap: goal.Pred.Trait.Cap, Self: self, Args: []*types.Type{self.Gen.Resume}}
	return r.considerImpliedClause(ecx, goal, types.TraitPred(pred), nil)
}

func (traitGoal) considerUnsizeCandidate(ecx *EvalCtxt, goal types.Goal) (types.Response, error) {
	args := goal.Pred.Trait.Args
	if len(args) != 1 {
		return types.Response{}, ErrNoSolution
	}
	a := goal.SelfTy()
	b := ecx.infcx.Shallow(args[0])
	if b.IsTyVar() {
		return ecx.probe(func() (types.Response, error) {
			return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Ambiguous)
		})
	}

	return ecx.probe(func() (types.Response, error) {
		switch {
		case a.Kind == types.KindDynamic && b.Kind == types.KindDynamic:
			// Upcasting can yield several responses and is assembled separately.
			return types.Response{}, ErrNoSolution

		case b.Kind == types.KindDynamic:
			for _, p := range b.Preds {
				ecx.addGoal(goal.With(types.TraitPred(types.TraitRef{Cap: p.Cap, Self: a, Args: p.Args})))
			}
			// A world without a sized capability places no size requirement on the source.
			ecx.addGoals(goal.Env, ecx.sizedRequirement(a))
			return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Proven)

		case a.Kind == types.KindArray && b.Kind == types.KindSlice:
			if err := ecx.eq(a.Elem, b.Elem); err != nil {
				return types.Response{}, err
			}
			return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Proven)

		case a.Kind == types.KindAdt && b.Kind == types.KindAdt && a.Name == b.Name:
			decl, ok := ecx.db.Adt(a.Name)
			if !ok || decl.Enum {
				return types.Response{}, ErrNoSolution
			}
			unsizing := unsizingParams(decl)
			if len(unsizing) == 0 {
				return types.Response{}, ErrNoSolution
			}
			tail := decl.Fields[len(decl.Fields)-1]
			aTail := tail.Subst(genericSubst(decl.Generics, a.Args))
			bTail := tail.Subst(genericSubst(decl.Generics, b.Args))

			// Take only the unsizing parameters from the target; everything else must match.
			newArgs := make([]*types.Type, len(a.Args))
			for i, arg := range a.Args {
				newArgs[i] = arg
				if i < len(decl.Generics) && unsizing[decl.Generics[i]] && i < len(b.Args) {
					newArgs[i] = b.Args[i]
				}
			}
			if err := ecx.eq(types.Adt(a.Name, newArgs...), b); err != nil {
				return types.Response{}, err
			}
			ecx.addGoal(goal.With(types.TraitPred(types.TraitRef{Cap: goal.Pred.Trait.Cap, Self: aTail, Args: []*types.Type{bTail}})))
			return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Proven)

		case a.Kind == types.KindTuple && b.Kind == types.KindTuple && len(a.Args) == len(b.Args) && len(a.Args) > 0:
			last := len(a.Args) - 1
			unsized := append(append([]*types.Type(nil), a.Args[:last]...), b.Args[last])
			if err := ecx.eq(types.Tuple(unsized...), b); err != nil {
				return types.Response{}, err
			}
			ecx.addGoal(goal.With(types.TraitPred(types.TraitRef{Cap: goal.Pred.Trait.Cap, Self: a.Args[last], Args: []*types.Type{b.Args[last]}})))
			return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Proven)
		}
		return types.Response{}, ErrNoSolution
	})
}

func (traitGoal) considerDynUpcastCandidates(ecx *EvalCtxt, goal types.Goal) []types.Response {
	args := goal.Pred.Trait.Args
	if len(args) != 1 {
		return nil
	}
	a := goal.SelfTy()
	b := ecx.infcx.Shallow(args[0])
	if a.Kind != types.KindDynamic || b.Kind != types.KindDynamic {
		return nil
	}

	// Every auto capability of the target must already be on the source.
	aAuto := a.AutoCaps()
	for _, c := range b.AutoCaps() {
		if !slices.Contains(aAuto, c) {
			return nil
		}
	}

	aPrincipal, aOK := a.Principal()
	bPrincipal, bOK := b.Principal()

	var responses []types.Response
	if aOK == bOK && (!aOK || aPrincipal.Cap == bPrincipal.Cap) {
		// Same principal: only auto capabilities are dropped.
		var principal *types.Existential
		if aOK {
			principal = &aPrincipal
		}
		if resp, err := ecx.unsizeDynToPrincipal(b, principal); err == nil {
			responses = append(responses, resp)
		}
		return responses
	}
	if !aOK || !bOK {
		return nil
	}
	if !ecx.db.SuperReaches(aPrincipal.Cap, bPrincipal.Cap) {
		return nil
	}

	start := types.TraitRef{Cap: aPrincipal.Cap, Self: a, Args: aPrincipal.Args}
	for _, super := range ecx.superPaths(start, bPrincipal.Cap) {
		erased := types.Existential{Cap: super.Cap, Args: super.Args}
		if resp, err := ecx.unsizeDynToPrincipal(b, &erased); err == nil {
			responses = append(responses, resp)
		}
	}
	ecx.logger.Debug("dyn upcast candidates",
		zap.Stringer("goal", goal),
		zap.Int("paths", len(responses)))
	return responses
}

// unsizeDynToPrincipal equates the target object type with the source's given principal
// plus the target's own auto capabilities.
func (ecx *EvalCtxt) unsizeDynToPrincipal(b *types.Type, principal *types.Existential) (types.Response, error) {
	return ecx.probe(func() (types.Response, error) {
		preds := make([]types.Existential, 0, len(b.Preds))
		for _, p := range b.Preds {
			switch {
			case p.Auto:
				preds = append(preds, p)
			case principal != nil:
				preds = append(preds, *principal)
			}
		}
		if err := ecx.eq(types.Dynamic(preds...), b); err != nil {
			return types.Response{}, err
		}
		return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Proven)
	})
}

// superPaths walks every super-relation path from start and returns, per path reaching
// target, the target's trait ref as substituted along that path. Paths are not deduplicated.
func (ecx *EvalCtxt) superPaths(start types.TraitRef, target string) []types.TraitRef {
	var out []types.TraitRef
	onPath := make(map[string]bool)
	var walk func(r types.TraitRef)
	walk = func(r types.TraitRef) {
		if r.Cap == target {
			out = append(out, r)
			return
		}
		if onPath[r.Cap] {
			return
		}
		info, ok := ecx.db.Capability(r.Cap)
		if !ok {
			return
		}
		onPath[r.Cap] = true
		subst := capSubst(info, r.Self, r.Args)
		for _, super := range info.Supers {
			walk(super.Subst(subst))
		}
		onPath[r.Cap] = false
	}
	walk(start)
	return out
}

func (traitGoal) considerDiscriminantKindCandidate(ecx *EvalCtxt, goal types.Goal) (types.Response, error) {
	return ecx.probe(func() (types.Response, error) {
		return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Proven)
	})
}

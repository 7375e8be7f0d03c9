package solve

import (
	"capsolve/internal/types"
)

// projectionGoal implements candidate rules for normalizes-to goals
// `<Self as Cap<Args>>::Item == Term`.
type projectionGoal struct{}

func projection(goal types.Goal) (*types.ProjectionPred, *types.AliasTy) {
	pp := goal.Pred.Projection
	return pp, pp.Alias.Alias
}

func (projectionGoal) considerImplCandidate(ecx *EvalCtxt, goal types.Goal, impl *types.ImplDecl) (types.Response, error) {
	pp, alias := projection(goal)
	if impl.Polarity == types.PolarityNegative || impl.Cap != alias.Cap {
		return types.Response{}, ErrNoSolution
	}
	return ecx.probe(func() (types.Response, error) {
		subst := ecx.freshSubst(impl.Generics)
		if err := ecx.eq(alias.Args[0], impl.Self.Subst(subst)); err != nil {
			return types.Response{}, err
		}
		if err := ecx.eqAll(alias.Args[1:], types.SubstAll(impl.Args, subst)); err != nil {
			return types.Response{}, err
		}
		for _, w := range impl.Where {
			ecx.addGoal(goal.With(w.Subst(subst)))
		}
		value, ok := impl.Assoc[alias.Item]
		if !ok {
			return types.Response{}, ErrNoSolution
		}
		if err := ecx.eq(pp.Term, value.Subst(subst)); err != nil {
			return types.Response{}, err
		}
		return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Proven)
	})
}

func (projectionGoal) considerImpliedClause(ecx *EvalCtxt, goal types.Goal, assumption types.Predicate, requirements []types.Predicate) (types.Response, error) {
	pp, alias := projection(goal)
	ap := assumption.Projection
	if ap == nil || ap.Alias.Alias.Kind != types.AliasProjection ||
		ap.Alias.Alias.Cap != alias.Cap || ap.Alias.Alias.Item != alias.Item {
		return types.Response{}, ErrNoSolution
	}
	return ecx.probe(func() (types.Response, error) {
		if err := ecx.eqAll(alias.Args, ap.Alias.Alias.Args); err != nil {
			return types.Response{}, err
		}
		if err := ecx.eq(pp.Term, ap.Term); err != nil {
			return types.Response{}, err
		}
		ecx.addGoals(goal.Env, requirements)
		return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Proven)
	})
}

// Object bounds carry no projection predicates, so they never normalize anything.
func (r projectionGoal) considerObjectBoundCandidate(ecx *EvalCtxt, goal types.Goal, assumption types.Predicate) (types.Response, error) {
	return r.considerImpliedClause(ecx, goal, assumption, nil)
}

// Roles without associated items never normalize.

func (projectionGoal) considerAutoCandidate(*EvalCtxt, types.Goal, *types.Capability) (types.Response, error) {
	return types.Response{}, ErrNoSolution
}

func (projectionGoal) considerAliasCandidate(*EvalCtxt, types.Goal, *types.Capability) (types.Response, error) {
	return types.Response{}, ErrNoSolution
}

func (projectionGoal) considerSizedCandidate(*EvalCtxt, types.Goal) (types.Response, error) {
	return types.Response{}, ErrNoSolution
}

func (projectionGoal) considerCopyCloneCandidate(*EvalCtxt, types.Goal) (types.Response, error) {
	return types.Response{}, ErrNoSolution
}

func (projectionGoal) considerPointerLikeCandidate(*EvalCtxt, types.Goal) (types.Response, error) {
	return types.Response{}, ErrNoSolution
}

func (projectionGoal) considerTupleCandidate(*EvalCtxt, types.Goal) (types.Response, error) {
	return types.Response{}, ErrNoSolution
}

func (projectionGoal) considerUnsizeCandidate(*EvalCtxt, types.Goal) (types.Response, error) {
	return types.Response{}, ErrNoSolution
}

func (projectionGoal) considerDynUpcastCandidates(*EvalCtxt, types.Goal) []types.Response {
	return nil
}

// considerFnCandidate normalizes the output of a callable type.
func (r projectionGoal) considerFnCandidate(ecx *EvalCtxt, goal types.Goal, kind types.ClosureKind) (types.Response, error) {
	_, alias := projection(goal)
	if alias.Item != "Output" {
		return types.Response{}, ErrNoSolution
	}
	self := alias.Args[0]
	sig, known, err := callableSignature(goal, self, kind)
	if err != nil {
		return types.Response{}, err
	}
	if !known {
		return ecx.probe(func() (types.Response, error) {
			return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Ambiguous)
		})
	}
	assumption := types.NormalizesTo(types.Projection(self, alias.Cap, alias.Item, types.Tuple(sig.Inputs...)), sig.Output)
	return r.considerImpliedClause(ecx, goal, assumption, ecx.sizedRequirement(sig.Output))
}

// considerPointeeCandidate normalizes the pointer metadata of a type: unit for sized types,
// a length for slices and strings, a vtable handle for dynamic types and the metadata of the
// tail for structs and tuples.
func (projectionGoal) considerPointeeCandidate(ecx *EvalCtxt, goal types.Goal) (types.Response, error) {
	pp, alias := projection(goal)
	if alias.Item != "Metadata" {
		return types.Response{}, ErrNoSolution
	}
	self := alias.Args[0]
	return ecx.probe(func() (types.Response, error) {
		var metadata *types.Type
		switch self.Kind {
		case types.KindBool, types.KindChar, types.KindInt, types.KindUint, types.KindFloat,
			types.KindArray, types.KindRawPtr, types.KindRef, types.KindFnDef, types.KindFnPtr,
			types.KindClosure, types.KindIntVar, types.KindFloatVar, types.KindGenerator,
			types.KindGeneratorWitness, types.KindNever, types.KindForeign:
			metadata = types.Unit()
		case types.KindError:
			metadata = types.ErrorTy()
		case types.KindStr, types.KindSlice:
			metadata = types.Uint("usize")
		case types.KindDynamic:
			metadata = types.Adt("DynMetadata", self)
		case types.KindAlias, types.KindParam, types.KindPlaceholder:
			ecx.addGoals(goal.Env, ecx.sizedRequirement(self))
			metadata = types.Unit()
		case types.KindAdt:
			decl, fields, ok := ecx.adtFields(self)
			if !ok || decl.Enum || len(fields) == 0 {
				metadata = types.Unit()
				break
			}
			ecx.addGoal(goal.WithSelf(fields[len(fields)-1]))
			return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Proven)
		case types.KindTuple:
			if len(self.Args) == 0 {
				metadata = types.Unit()
				break
			}
			ecx.addGoal(goal.WithSelf(self.Args[len(self.Args)-1]))
			return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Proven)
		case types.KindInfer, types.KindBound, types.KindFresh:
			bug("pointee metadata", self, &goal)
		default:
			bug("pointee metadata", self, &goal)
		}
		if err := ecx.eq(pp.Term, metadata); err != nil {
			return types.Response{}, err
		}
		return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Proven)
	})
}

// considerFutureCandidate normalizes the output of an async generator to its return type.
func (r projectionGoal) considerFutureCandidate(ecx *EvalCtxt, goal types.Goal) (types.Response, error) {
	_, alias := projection(goal)
	self := alias.Args[0]
	if self.Kind != types.KindGenerator || !self.Gen.Async || alias.Item != "Output" {
		return types.Response{}, ErrNoSolution
	}
	assumption := types.NormalizesTo(types.Projection(self, alias.Cap, alias.Item), self.Gen.Return)
	return r.considerImpliedClause(ecx, goal, assumption, nil)
}

// considerGeneratorCandidate normalizes the yield and return types of a generator.
func (r projectionGoal) considerGeneratorCandidate(ecx *EvalCtxt, goal types.Goal) (types.Response, error) {
	_, alias := projection(goal)
	self := alias.Args[0]
	if self.Kind != types.KindGenerator || self.Gen.Async {
		return types.Response{}, ErrNoSolution
	}
	var term *types.Type
	switch alias.Item {
	case "Yield":
		term = self.Gen.Yield
	case "Return":
		term = self.Gen.Return
	default:
		return types.Response{}, ErrNoSolution
	}
	assumption := types.NormalizesTo(types.Projection(self, alias.Cap, alias.Item, self.Gen.Resume), term)
	return r.considerImpliedClause(ecx, goal, assumption, nil)
}

func (projectionGoal) considerDiscriminantKindCandidate(ecx *EvalCtxt, goal types.Goal) (types.Response, error) {
	pp, alias := projection(goal)
	if alias.Item != "Discriminant" {
		return types.Response{}, ErrNoSolution
	}
	self := alias.Args[0]
	switch self.Kind {
	case types.KindAlias, types.KindParam, types.KindPlaceholder:
		// Projecting such a type to its own discriminant projection is never productive.
		return types.Response{}, ErrNoSolution
	case types.KindInfer, types.KindBound, types.KindFresh:
		bug("discriminant kind", self, &goal)
	}
	return ecx.probe(func() (types.Response, error) {
		if err := ecx.eq(pp.Term, ecx.discriminantTy(self)); err != nil {
			return types.Response{}, err
		}
		return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Proven)
	})
}

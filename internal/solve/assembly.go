package solve

import (
	"capsolve/internal/types"

	"go.uber.org/zap"
)

// goalKind is the per-goal-kind half of candidate assembly: how a capability goal or a
// normalizes-to goal is matched against an implementation, an assumption, an object bound and
// each built-in rule.
type goalKind interface {
	builtinRules

	// considerImplCandidate instantiates the implementation's generics, equates its header
	// with the goal and evaluates its where-clauses.
	considerImplCandidate(ecx *EvalCtxt, goal types.Goal, impl *types.ImplDecl) (types.Response, error)
	// considerImpliedClause equates the goal with an assumption whose requirements must hold.
	considerImpliedClause(ecx *EvalCtxt, goal types.Goal, assumption types.Predicate, requirements []types.Predicate) (types.Response, error)
	// considerObjectBoundCandidate equates the goal with one elaborated bound of its dynamic
	// self type.
	considerObjectBoundCandidate(ecx *EvalCtxt, goal types.Goal, assumption types.Predicate) (types.Response, error)
}

func kindOf(goal types.Goal) goalKind {
	if goal.Pred.Projection != nil {
		return projectionGoal{}
	}
	return traitGoal{}
}

// AssembleAndEvaluateCandidates runs every candidate source against goal, in order, and
// returns the concatenation of their candidates without deduplication or pruning. goal must be
// resolved with respect to the context's bindings.
func (ecx *EvalCtxt) AssembleAndEvaluateCandidates(goal types.Goal) []types.Candidate {
	return ecx.assemble(goal, 0)
}

func (ecx *EvalCtxt) assemble(goal types.Goal, depth int) []types.Candidate {
	// `_: Cap` is ambiguous: which source applies cannot be known until the self type is
	// resolved at least one level.
	if goal.SelfTy().IsTyVar() {
		return []types.Candidate{{
			Origin:   types.BuiltinOrigin(),
			Response: ecx.infcx.CanonicalResponse(types.Ambiguous, ecx.vars),
		}}
	}

	if ecx.depth+depth > ecx.solver.cfg.OverflowDepth {
		ecx.q.taintFrom(0)
		ecx.logger.Debug("overflow budget exhausted during assembly",
			zap.Stringer("goal", goal),
			zap.Int("depth", ecx.depth+depth))
		return []types.Candidate{{
			Origin:   types.BuiltinOrigin(),
			Response: ecx.infcx.CanonicalResponse(types.Overflow, ecx.vars),
		}}
	}

	rules := kindOf(goal)
	var candidates []types.Candidate
	candidates = ecx.assembleCandidatesAfterNormalizingSelfTy(goal, depth, candidates)
	candidates = ecx.assembleImplCandidates(goal, rules, candidates)
	candidates = ecx.assembleBuiltinImplCandidates(goal, rules, candidates)
	candidates = ecx.assembleParamEnvCandidates(goal, rules, candidates)
	candidates = ecx.assembleAliasBoundCandidates(goal, rules, candidates)
	candidates = ecx.assembleObjectBoundCandidates(goal, rules, candidates)

	ecx.logger.Debug("assembled candidates",
		zap.Stringer("goal", goal),
		zap.Int("count", len(candidates)))
	return candidates
}

// assembleCandidatesAfterNormalizingSelfTy adds, for a projection self type that normalizes,
// the candidates of the same goal on the normalized type. The other sources still run against
// the projection itself.
func (ecx *EvalCtxt) assembleCandidatesAfterNormalizingSelfTy(goal types.Goal, depth int, candidates []types.Candidate) []types.Candidate {
	self := goal.SelfTy()
	if !self.IsProjection() {
		return candidates
	}
	normalized := probe(ecx, func() []types.Candidate {
		term := ecx.infcx.NewVar()
		ecx.addGoal(goal.With(types.NormalizesTo(self, term)))
		if _, err := ecx.tryEvaluateAddedGoals(); err != nil {
			return nil
		}
		g := ecx.infcx.ResolveGoal(goal.WithSelf(ecx.infcx.Resolve(term)))
		return ecx.assemble(g, depth+1)
	})
	ecx.logger.Debug("normalized self type candidates",
		zap.Stringer("goal", goal),
		zap.Int("count", len(normalized)))
	return append(candidates, normalized...)
}

func (ecx *EvalCtxt) assembleImplCandidates(goal types.Goal, rules goalKind, candidates []types.Candidate) []types.Candidate {
	for _, impl := range ecx.db.RelevantImpls(goal.Cap(), goal.SelfTy(), ecx.solver.cfg.Policy) {
		resp, err := rules.considerImplCandidate(ecx, goal, impl)
		if err != nil {
			continue
		}
		candidates = append(candidates, types.Candidate{Origin: types.ImplOrigin(impl.ID), Response: resp})
	}
	return candidates
}

// assembleBuiltinImplCandidates dispatches to exactly one built-in rule by capability: auto,
// then alias, then the role table. The unsize role additionally contributes one candidate per
// dynamic upcast path.
func (ecx *EvalCtxt) assembleBuiltinImplCandidates(goal types.Goal, rules goalKind, candidates []types.Candidate) []types.Candidate {
	info, ok := ecx.db.Capability(goal.Cap())
	if !ok {
		return candidates
	}

	var resp types.Response
	var err error
	switch {
	case info.Kind == types.CapAuto:
		resp, err = rules.considerAutoCandidate(ecx, goal, info)
	case info.Kind == types.CapAlias:
		resp, err = rules.considerAliasCandidate(ecx, goal, info)
	default:
		switch info.Role {
		case types.RoleSized:
			resp, err = rules.considerSizedCandidate(ecx, goal)
		case types.RoleCopy, types.RoleClone:
			resp, err = rules.considerCopyCloneCandidate(ecx, goal)
		case types.RolePointerLike:
			resp, err = rules.considerPointerLikeCandidate(ecx, goal)
		case types.RoleFn, types.RoleFnMut, types.RoleFnOnce:
			kind, _ := info.Role.ClosureKind()
			resp, err = rules.considerFnCandidate(ecx, goal, kind)
		case types.RoleTuple:
			resp, err = rules.considerTupleCandidate(ecx, goal)
		case types.RolePointee:
			resp, err = rules.considerPointeeCandidate(ecx, goal)
		case types.RoleFuture:
			resp, err = rules.considerFutureCandidate(ecx, goal)
		case types.RoleGenerator:
			resp, err = rules.considerGeneratorCandidate(ecx, goal)
		case types.RoleUnsize:
			resp, err = rules.considerUnsizeCandidate(ecx, goal)
		case types.RoleDiscriminantKind:
			resp, err = rules.considerDiscriminantKindCandidate(ecx, goal)
		default:
			err = ErrNoSolution
		}
	}
	if err == nil {
		candidates = append(candidates, types.Candidate{Origin: types.BuiltinOrigin(), Response: resp})
	}

	// A capability with several super-relations to the target can upcast along more than one
	// path, each with its own response.
	if info.Role == types.RoleUnsize {
		for _, r := range rules.considerDynUpcastCandidates(ecx, goal) {
			candidates = append(candidates, types.Candidate{Origin: types.BuiltinOrigin(), Response: r})
		}
	}
	return candidates
}

func (ecx *EvalCtxt) assembleParamEnvCandidates(goal types.Goal, rules goalKind, candidates []types.Candidate) []types.Candidate {
	for i, clause := range goal.Env.Clauses {
		resp, err := rules.considerImpliedClause(ecx, goal, clause.Pred, clause.Requires)
		if err != nil {
			continue
		}
		candidates = append(candidates, types.Candidate{Origin: types.EnvOrigin(i), Response: resp})
	}
	return candidates
}

func (ecx *EvalCtxt) assembleAliasBoundCandidates(goal types.Goal, rules goalKind, candidates []types.Candidate) []types.Candidate {
	self := goal.SelfTy()
	switch self.Kind {
	case types.KindBool, types.KindChar, types.KindInt, types.KindUint, types.KindFloat,
		types.KindAdt, types.KindForeign, types.KindStr, types.KindArray, types.KindSlice,
		types.KindRawPtr, types.KindRef, types.KindFnDef, types.KindFnPtr, types.KindDynamic,
		types.KindClosure, types.KindGenerator, types.KindGeneratorWitness, types.KindNever,
		types.KindTuple, types.KindParam, types.KindPlaceholder, types.KindIntVar,
		types.KindFloatVar, types.KindError:
		return candidates
	case types.KindInfer, types.KindBound, types.KindFresh:
		bug("alias-bound assembly", self, &goal)
	case types.KindAlias:
	default:
		bug("alias-bound assembly", self, &goal)
	}

	for i, bound := range ecx.aliasItemBounds(self) {
		resp, err := rules.considerImpliedClause(ecx, goal, bound, nil)
		if err != nil {
			continue
		}
		candidates = append(candidates, types.Candidate{Origin: types.AliasBoundOrigin(i), Response: resp})
	}
	return candidates
}

func (ecx *EvalCtxt) assembleObjectBoundCandidates(goal types.Goal, rules goalKind, candidates []types.Candidate) []types.Candidate {
	self := goal.SelfTy()
	switch self.Kind {
	case types.KindBool, types.KindChar, types.KindInt, types.KindUint, types.KindFloat,
		types.KindAdt, types.KindForeign, types.KindStr, types.KindArray, types.KindSlice,
		types.KindRawPtr, types.KindRef, types.KindFnDef, types.KindFnPtr, types.KindAlias,
		types.KindClosure, types.KindGenerator, types.KindGeneratorWitness, types.KindNever,
		types.KindTuple, types.KindParam, types.KindPlaceholder, types.KindIntVar,
		types.KindFloatVar, types.KindError:
		return candidates
	case types.KindInfer, types.KindBound, types.KindFresh:
		bug("object-bound assembly", self, &goal)
	case types.KindDynamic:
	default:
		bug("object-bound assembly", self, &goal)
	}

	own := make([]types.TraitRef, len(self.Preds))
	for i, p := range self.Preds {
		own[i] = types.TraitRef{Cap: p.Cap, Self: self, Args: p.Args}
	}
	for _, bound := range ecx.elaborate(own) {
		resp, err := rules.considerObjectBoundCandidate(ecx, goal, types.TraitPred(bound))
		if err != nil {
			continue
		}
		candidates = append(candidates, types.Candidate{Origin: types.BuiltinOrigin(), Response: resp})
	}
	return candidates
}

// aliasItemBounds returns the declared bounds of an alias as predicates on the alias itself.
func (ecx *EvalCtxt) aliasItemBounds(alias *types.Type) []types.Predicate {
	a := alias.Alias
	var bounds []types.BoundRef
	var subst map[string]*types.Type
	switch a.Kind {
	case types.AliasProjection:
		info, ok := ecx.db.Capability(a.Cap)
		if !ok {
			return nil
		}
		item, ok := info.Item(a.Item)
		if !ok {
			return nil
		}
		bounds = item.Bounds
		subst = capSubst(info, a.Args[0], a.Args[1:])
	case types.AliasOpaque:
		decl, ok := ecx.db.Opaque(a.Item)
		if !ok {
			return nil
		}
		bounds = decl.Bounds
		subst = genericSubst(decl.Generics, a.Args)
	}

	preds := make([]types.Predicate, len(bounds))
	for i, b := range bounds {
		preds[i] = types.TraitPred(types.TraitRef{Cap: b.Cap, Self: alias, Args: types.SubstAll(b.Args, subst)})
	}
	return preds
}

// elaborate expands trait refs transitively through super-relations, dropping duplicates.
func (ecx *EvalCtxt) elaborate(refs []types.TraitRef) []types.TraitRef {
	seen := make(map[string]bool)
	var out []types.TraitRef
	work := append([]types.TraitRef(nil), refs...)
	for len(work) > 0 {
		r := work[0]
		work = work[1:]
		key := r.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
		info, ok := ecx.db.Capability(r.Cap)
		if !ok {
			continue
		}
		subst := capSubst(info, r.Self, r.Args)
		for _, super := range info.Supers {
			work = append(work, super.Subst(subst))
		}
	}
	return out
}

// capSubst maps a capability's Self and parameter names to concrete types.
func capSubst(info *types.Capability, self *types.Type, args []*types.Type) map[string]*types.Type {
	subst := genericSubst(info.Params, args)
	subst["Self"] = self
	return subst
}

func genericSubst(names []string, args []*types.Type) map[string]*types.Type {
	subst := make(map[string]*types.Type, len(names)+1)
	for i, n := range names {
		if i < len(args) {
			subst[n] = args[i]
		}
	}
	return subst
}

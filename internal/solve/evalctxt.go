package solve

import (
	"errors"

	"capsolve/internal/infer"
	"capsolve/internal/types"

	"go.uber.org/zap"
)

// EvalCtxt evaluates one canonical goal. It owns a fresh inference context in which the
// goal's canonical variables are instantiated, and the list of nested goals added by the
// consider check currently running.
type EvalCtxt struct {
	solver *Solver
	db     Database
	q      *query
	infcx  *infer.Ctxt
	// vars are the instantiated canonical variables; responses are made relative to them.
	vars   []*types.Type
	depth  int
	nested []types.Goal
	logger *zap.Logger
}

func (s *Solver) newEvalCtxt(q *query, cg infer.Canonical) (*EvalCtxt, types.Goal) {
	infcx := infer.New()
	goal, vars := infcx.Instantiate(cg)
	return &EvalCtxt{
		solver: s,
		db:     s.db,
		q:      q,
		infcx:  infcx,
		vars:   vars,
		depth:  len(q.stack),
		logger: s.logger,
	}, goal
}

func (ecx *EvalCtxt) computeGoal(goal types.Goal) (types.Response, error) {
	if pp := goal.Pred.Projection; pp != nil && !ecx.infcx.Shallow(pp.Term).IsTyVar() {
		return ecx.computeNormalizesToWithTerm(goal)
	}
	return ecx.MergeCandidates(ecx.AssembleAndEvaluateCandidates(goal))
}

// computeNormalizesToWithTerm normalizes into an unconstrained variable and only then
// equates the result with the expected term, so each projection is normalized once whatever
// term it is compared against.
func (ecx *EvalCtxt) computeNormalizesToWithTerm(goal types.Goal) (types.Response, error) {
	pp := goal.Pred.Projection
	unconstrained := ecx.infcx.NewVar()
	ecx.addGoal(goal.With(types.NormalizesTo(pp.Alias, unconstrained)))
	if _, err := ecx.tryEvaluateAddedGoals(); err != nil {
		return types.Response{}, err
	}
	if err := ecx.eq(unconstrained, pp.Term); err != nil {
		return types.Response{}, err
	}
	return ecx.evaluateAddedGoalsAndMakeCanonicalResponse(types.Proven)
}

type probeResult struct {
	resp types.Response
	err  error
}

// probe runs fn with its own copy of the nested goals; bindings and added goals are discarded
// when it returns.
func probe[T any](ecx *EvalCtxt, fn func() T) T {
	saved := ecx.nested
	ecx.nested = append([]types.Goal(nil), saved...)
	defer func() { ecx.nested = saved }()
	return infer.Probe(ecx.infcx, fn)
}

func (ecx *EvalCtxt) probe(fn func() (types.Response, error)) (types.Response, error) {
	r := probe(ecx, func() probeResult {
		resp, err := fn()
		return probeResult{resp: resp, err: err}
	})
	return r.resp, r.err
}

func (ecx *EvalCtxt) addGoal(g types.Goal) { ecx.nested = append(ecx.nested, g) }

func (ecx *EvalCtxt) addGoals(env types.Env, preds []types.Predicate) {
	for _, p := range preds {
		ecx.addGoal(types.Goal{Pred: p, Env: env})
	}
}

func (ecx *EvalCtxt) eq(a, b *types.Type) error {
	if err := ecx.infcx.Eq(a, b); err != nil {
		if errors.Is(err, infer.ErrMismatch) {
			return ErrNoSolution
		}
		return err
	}
	return nil
}

func (ecx *EvalCtxt) eqAll(as, bs []*types.Type) error {
	if err := ecx.infcx.EqAll(as, bs); err != nil {
		return ErrNoSolution
	}
	return nil
}

// freshSubst maps each generic parameter name to a fresh inference variable.
func (ecx *EvalCtxt) freshSubst(generics []string) map[string]*types.Type {
	subst := make(map[string]*types.Type, len(generics))
	for _, g := range generics {
		subst[g] = ecx.infcx.NewVar()
	}
	return subst
}

// evaluateGoal evaluates a nested goal as its own canonical query and applies the response.
// It reports whether the response constrained any variable.
func (ecx *EvalCtxt) evaluateGoal(goal types.Goal) (types.Certainty, bool, error) {
	cg, vars := ecx.infcx.Canonicalize(goal)
	resp, err := ecx.solver.evaluateCanonical(ecx.q, cg)
	if err != nil {
		return 0, false, err
	}
	if err := ecx.infcx.InstantiateResponse(resp, vars); err != nil {
		panic(&InvariantError{Site: "response instantiation", Goal: goal.String() + ": " + err.Error()})
	}
	return resp.Certainty, resp.HasConstraints(), nil
}

// tryEvaluateAddedGoals evaluates the nested goals to a fixpoint: proven goals are removed,
// and ambiguous ones are retried for as long as some goal constrains a variable. Goals still
// pending afterwards stay added and determine the returned certainty.
func (ecx *EvalCtxt) tryEvaluateAddedGoals() (types.Certainty, error) {
	goals := ecx.nested
	ecx.nested = nil
	for iter := 0; len(goals) > 0; iter++ {
		if iter >= ecx.solver.cfg.MaxFixpointIterations {
			ecx.logger.Debug("nested goal fixpoint did not converge", zap.Int("pending", len(goals)))
			ecx.nested = goals
			return types.Overflow, nil
		}
		var pending []types.Goal
		certainty := types.Proven
		changed := false
		for _, g := range goals {
			c, progressed, err := ecx.evaluateGoal(g)
			if err != nil {
				return 0, err
			}
			changed = changed || progressed
			if c != types.Proven {
				pending = append(pending, g)
				certainty = certainty.And(c)
			}
		}
		goals = pending
		if !changed {
			ecx.nested = goals
			return certainty, nil
		}
	}
	return types.Proven, nil
}

// evaluateAddedGoalsAndMakeCanonicalResponse evaluates the nested goals and returns the
// current bindings of the goal's variables with certainty combined from c and the goals.
func (ecx *EvalCtxt) evaluateAddedGoalsAndMakeCanonicalResponse(c types.Certainty) (types.Response, error) {
	goalsCertainty, err := ecx.tryEvaluateAddedGoals()
	if err != nil {
		return types.Response{}, err
	}
	return ecx.infcx.CanonicalResponse(c.And(goalsCertainty), ecx.vars), nil
}

// neutralResponse is a response with certainty c and no constraints.
func (ecx *EvalCtxt) neutralResponse(c types.Certainty) types.Response {
	return types.IdentityResponse(c, len(ecx.vars))
}

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"capsolve/internal/infer"
	"capsolve/internal/logging"
	"capsolve/internal/solve"
	"capsolve/internal/types"
	"capsolve/internal/world"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// goalResult is the outcome of one goal of a world file.
type goalResult struct {
	Name       string
	Goal       string
	RequestID  string
	Certainty  types.Certainty
	NoSolution bool
	// Bindings are the resolved values of the goal's variables, in order of first appearance.
	Bindings   []string
	Candidates []types.Candidate
	Err        error
	Expected   string
	Elapsed    time.Duration
}

// Outcome names the result the way world files spell expectations.
func (r goalResult) Outcome() string {
	switch {
	case r.Err != nil:
		return "error"
	case r.NoSolution:
		return "no_solution"
	}
	return r.Certainty.String()
}

// Mismatch reports whether the goal declared an expectation it did not meet.
func (r goalResult) Mismatch() bool {
	return r.Err != nil || (r.Expected != "" && r.Expected != r.Outcome())
}

func (a *app) solveCmd() *cobra.Command {
	var goals []string
	var showCandidates bool

	cmd := &cobra.Command{
		Use:   "solve [world]",
		Short: "Evaluate the goals of a world file",
		Long: `Loads a world file and evaluates its goals in parallel. Goals that declare an
expected outcome are checked; the command fails if any expectation is not met.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.solveFile(cmd.Context(), a.worldPath(args), goals, showCandidates)
			if err != nil {
				return err
			}
			renderResults(cmd.OutOrStdout(), results, showCandidates)
			if n := countMismatches(results); n > 0 {
				return fmt.Errorf("%d goal(s) did not meet their expectation", n)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&goals, "goal", "g", nil, "Only evaluate the named goals")
	cmd.Flags().BoolVar(&showCandidates, "candidates", false, "Also list the candidates of each goal")
	return cmd
}

// slowLoad is the world load time above which loadWorld warns.
const slowLoad = 500 * time.Millisecond

// loadWorld loads a world file and builds a solver over it.
func (a *app) loadWorld(path string) (*world.World, []world.GoalSpec, *solve.Solver, error) {
	timer := logging.StartTimer(logging.CategoryWorld, "load "+path)
	w, specs, err := world.Load(path, logging.Get(logging.CategoryWorld))
	if err != nil {
		return nil, nil, nil, err
	}
	timer.StopWithThreshold(slowLoad)

	s, err := solve.New(w, a.cfg.ToSolve(), logging.Get(logging.CategorySolve))
	if err != nil {
		return nil, nil, nil, err
	}
	sc := s.Config()
	logging.Get(logging.CategorySolve).Debug("solver ready",
		zap.String("world", path),
		zap.Int("goals", len(specs)),
		zap.Int("overflow_depth", sc.OverflowDepth),
		zap.Int("cache_size", sc.CacheSize))
	return w, specs, s, nil
}

func (a *app) solveFile(ctx context.Context, path string, names []string, withCandidates bool) ([]goalResult, error) {
	_, specs, s, err := a.loadWorld(path)
	if err != nil {
		return nil, err
	}
	specs, err = selectGoals(specs, names)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.GetQueryTimeout())
	defer cancel()
	return solveAll(ctx, s, specs, a.cfg.Solver.Parallelism, withCandidates)
}

// selectGoals keeps the named goals, in file order. No names keeps every goal.
func selectGoals(specs []world.GoalSpec, names []string) ([]world.GoalSpec, error) {
	if len(names) == 0 {
		return specs, nil
	}
	byName := make(map[string]bool, len(names))
	for _, n := range names {
		byName[n] = true
	}
	var out []world.GoalSpec
	for _, s := range specs {
		if byName[s.Name] {
			out = append(out, s)
			delete(byName, s.Name)
		}
	}
	for _, n := range names {
		if byName[n] {
			return nil, fmt.Errorf("no goal named %q", n)
		}
	}
	return out, nil
}

// solveAll evaluates specs with at most parallelism goals in flight. Results keep the order
// of specs.
func solveAll(ctx context.Context, s *solve.Solver, specs []world.GoalSpec, parallelism int, withCandidates bool) ([]goalResult, error) {
	results := make([]goalResult, len(specs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(parallelism)
	for i, spec := range specs {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			results[i] = solveGoal(s, spec, withCandidates)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("solving interrupted: %w", err)
	}
	return results, nil
}

// solveGoal evaluates one goal in a fresh inference context. An invariant violation is
// reported as the goal's error rather than crashing the run.
func solveGoal(s *solve.Solver, spec world.GoalSpec, withCandidates bool) (res goalResult) {
	res = goalResult{Name: spec.Name, Expected: spec.Expect, RequestID: uuid.NewString()}
	logger := logging.WithRequestID(logging.CategorySolve, res.RequestID)
	start := time.Now()
	defer func() {
		res.Elapsed = time.Since(start)
		if r := recover(); r != nil {
			ie, ok := r.(*solve.InvariantError)
			if !ok {
				panic(r)
			}
			logger.Error("invariant violated", zap.String("goal", spec.Name), zap.Error(ie))
			res.Err = ie
		}
	}()

	if _, _, _, err := spec.Expected(); err != nil {
		res.Err = err
		return res
	}

	infcx := infer.New()
	goal, vars, err := spec.Build(infcx)
	if err != nil {
		res.Err = err
		return res
	}
	res.Goal = goal.String()

	scoped := s.WithLogger(logger)
	if withCandidates {
		res.Candidates = scoped.Candidates(infcx, goal)
	}

	certainty, err := scoped.Evaluate(infcx, goal)
	switch {
	case errors.Is(err, solve.ErrNoSolution):
		res.NoSolution = true
	case err != nil:
		res.Err = err
	default:
		res.Certainty = certainty
		for i, v := range vars {
			if r := infcx.Resolve(v); !r.IsVar() {
				res.Bindings = append(res.Bindings, fmt.Sprintf("?%d := %s", i, r))
			}
		}
	}

	logger.Debug("goal evaluated",
		zap.String("goal", spec.Name),
		zap.String("outcome", res.Outcome()),
		zap.Duration("elapsed", time.Since(start)))
	return res
}

func countMismatches(results []goalResult) int {
	n := 0
	for _, r := range results {
		if r.Mismatch() {
			n++
		}
	}
	return n
}

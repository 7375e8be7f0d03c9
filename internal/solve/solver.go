// Package solve is the goal-resolution engine. It assembles candidate proofs for a goal from a
// fixed catalog of sources, merges them into one canonical response, and drives the recursive
// evaluation of sub-goals with an overflow budget, a per-query search stack for cycles and a
// shared evaluation cache.
package solve

import (
	"errors"
	"fmt"

	"capsolve/internal/infer"
	"capsolve/internal/types"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Config bounds the search.
type Config struct {
	// OverflowDepth is the recursion budget shared by nested evaluation and the recursive
	// assembly of the self-type normalization pre-pass.
	OverflowDepth int
	// MaxFixpointIterations bounds the re-evaluation of ambiguous nested goals.
	MaxFixpointIterations int
	// CacheSize is the number of canonical goals whose results are memoized. Zero disables the
	// cache.
	CacheSize int
	Policy    LookupPolicy
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		OverflowDepth:         128,
		MaxFixpointIterations: 16,
		CacheSize:             4096,
	}
}

type cacheEntry struct {
	resp types.Response
	err  error
}

// Solver evaluates goals against a database. It is safe for concurrent use by independent
// queries: search state is per query and the cache is synchronized.
type Solver struct {
	db     Database
	cfg    Config
	logger *zap.Logger
	cache  *lru.Cache[string, cacheEntry]
}

// New creates a solver. A nil logger disables logging.
func New(db Database, cfg Config, logger *zap.Logger) (*Solver, error) {
	if cfg.OverflowDepth <= 0 {
		return nil, fmt.Errorf("overflow depth must be positive, got %d", cfg.OverflowDepth)
	}
	if cfg.MaxFixpointIterations <= 0 {
		cfg.MaxFixpointIterations = DefaultConfig().MaxFixpointIterations
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Solver{db: db, cfg: cfg, logger: logger}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, cacheEntry](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create evaluation cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// WithLogger returns a solver sharing s's database and cache that logs to l.
func (s *Solver) WithLogger(l *zap.Logger) *Solver {
	c := *s
	c.logger = l
	return &c
}

// Config returns the solver's configuration.
func (s *Solver) Config() Config { return s.cfg }

// Evaluate proves goal under the bindings of infcx. On success the response's constraints are
// applied to infcx and its certainty returned. A disproof is ErrNoSolution.
func (s *Solver) Evaluate(infcx *infer.Ctxt, goal types.Goal) (types.Certainty, error) {
	cg, vars := infcx.Canonicalize(goal)
	resp, err := s.evaluateCanonical(newQuery(), cg)
	if err != nil {
		return 0, err
	}
	if err := infcx.InstantiateResponse(resp, vars); err != nil {
		panic(&InvariantError{Site: "response instantiation", Goal: fmt.Sprintf("%s: %v", goal, err)})
	}
	return resp.Certainty, nil
}

// Candidates assembles the candidate list of goal without merging it. Responses are relative
// to the canonical form of goal.
func (s *Solver) Candidates(infcx *infer.Ctxt, goal types.Goal) []types.Candidate {
	cg, _ := infcx.Canonicalize(goal)
	q := newQuery()
	q.push(cg.Key(), s.isCoinductive(cg.Goal))
	defer q.pop()
	ecx, g := s.newEvalCtxt(q, cg)
	return ecx.AssembleAndEvaluateCandidates(g)
}

func (s *Solver) evaluateCanonical(q *query, cg infer.Canonical) (types.Response, error) {
	key := cg.Key()
	if s.cache != nil {
		if e, ok := s.cache.Get(key); ok {
			return e.resp, e.err
		}
	}

	if len(q.stack) >= s.cfg.OverflowDepth {
		q.taintFrom(0)
		s.logger.Debug("overflow budget exhausted",
			zap.String("goal", key),
			zap.Int("depth", len(q.stack)))
		return types.IdentityResponse(types.Overflow, cg.NumVars), nil
	}

	if i, ok := q.index[key]; ok {
		return s.cycleResult(q, i, cg)
	}

	q.push(key, s.isCoinductive(cg.Goal))
	ecx, goal := s.newEvalCtxt(q, cg)
	resp, err := ecx.computeGoal(goal)
	entry := q.pop()

	if err != nil && !errors.Is(err, ErrNoSolution) {
		return resp, err
	}
	if s.cache != nil && !entry.tainted && (err != nil || resp.Certainty != types.Overflow) {
		s.cache.Add(key, cacheEntry{resp: resp, err: err})
	}
	return resp, err
}

// cycleResult answers a goal that is already on the search stack. A cycle made only of
// coinductive goals holds; any other cycle has no solution. Goals above the cycle head depend
// on this provisional answer and are kept out of the cache.
func (s *Solver) cycleResult(q *query, head int, cg infer.Canonical) (types.Response, error) {
	coinductive := true
	for _, e := range q.stack[head:] {
		coinductive = coinductive && e.coinductive
	}
	q.taintFrom(head + 1)
	s.logger.Debug("cycle detected",
		zap.String("goal", cg.Key()),
		zap.Int("head", head),
		zap.Bool("coinductive", coinductive))
	if coinductive {
		return types.IdentityResponse(types.Proven, cg.NumVars), nil
	}
	return types.Response{}, ErrNoSolution
}

func (s *Solver) isCoinductive(g types.Goal) bool {
	if g.Pred.Trait == nil {
		return false
	}
	info, ok := s.db.Capability(g.Pred.Trait.Cap)
	return ok && info.Kind == types.CapAuto
}

type stackEntry struct {
	key         string
	coinductive bool
	// tainted entries depend on a provisional cycle answer or hit the overflow budget.
	tainted bool
}

// query is the search state of one top-level evaluation.
type query struct {
	stack []stackEntry
	index map[string]int
}

func newQuery() *query {
	return &query{index: make(map[string]int)}
}

func (q *query) push(key string, coinductive bool) {
	q.index[key] = len(q.stack)
	q.stack = append(q.stack, stackEntry{key: key, coinductive: coinductive})
}

func (q *query) pop() stackEntry {
	e := q.stack[len(q.stack)-1]
	q.stack = q.stack[:len(q.stack)-1]
	delete(q.index, e.key)
	return e
}

func (q *query) taintFrom(i int) {
	for ; i < len(q.stack); i++ {
		q.stack[i].tainted = true
	}
}

// Package world loads capability worlds from YAML and serves them to the solver. Declarations
// live in memory; the relational parts (which impls exist for a capability and shape, which
// capability carries a role, the transitive super-relation) are projected into a Mangle
// relation store and answered by query.
package world

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"capsolve/internal/mangle"
	"capsolve/internal/solve"
	"capsolve/internal/types"

	"go.uber.org/zap"
)

//go:embed world.mg
var worldSchema string

// blanketShape is the shape of an impl whose self type is one of its own generics.
const blanketShape = "*"

// World is a loaded world. It implements solve.Database and is safe for concurrent reads.
type World struct {
	engine *mangle.Engine
	logger *zap.Logger

	caps     map[string]*types.Capability
	capOrder map[string]int
	impls    map[string]*types.ImplDecl
	order    map[string]int
	adts     map[string]*types.AdtDecl
	opaques  map[string]*types.OpaqueDecl
}

var _ solve.Database = (*World)(nil)

// New builds a world from validated declarations.
func New(d *Decls, logger *zap.Logger) (*World, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Facts are projected in one batch; rules run once afterwards.
	cfg := mangle.DefaultConfig()
	cfg.AutoEval = false
	engine, err := mangle.NewEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := engine.LoadSchemaString(worldSchema); err != nil {
		return nil, fmt.Errorf("failed to load world schema: %w", err)
	}

	w := &World{
		engine:   engine,
		logger:   logger,
		caps:     make(map[string]*types.Capability, len(d.Capabilities)),
		capOrder: make(map[string]int, len(d.Capabilities)),
		impls:    make(map[string]*types.ImplDecl, len(d.Impls)),
		order:    make(map[string]int, len(d.Impls)),
		adts:     make(map[string]*types.AdtDecl, len(d.Adts)),
		opaques:  make(map[string]*types.OpaqueDecl, len(d.Opaques)),
	}

	var facts []mangle.Fact
	for i, c := range d.Capabilities {
		w.caps[c.Name] = c
		w.capOrder[c.Name] = i
		facts = append(facts, mangle.Fact{
			Predicate: "capability",
			Args:      []interface{}{c.Name, "/" + c.Kind.String(), roleName(c.Role)},
		})
		for _, super := range c.Supers {
			facts = append(facts, mangle.Fact{Predicate: "supercap", Args: []interface{}{c.Name, super.Cap}})
		}
	}
	for i, impl := range d.Impls {
		w.impls[impl.ID] = impl
		w.order[impl.ID] = i
		facts = append(facts, mangle.Fact{
			Predicate: "impl",
			Args:      []interface{}{impl.ID, impl.Cap, implShape(impl), "/" + impl.Polarity.String()},
		})
	}
	for _, a := range d.Adts {
		w.adts[a.Name] = a
	}
	for _, o := range d.Opaques {
		w.opaques[o.Name] = o
	}

	if err := engine.AddFacts(facts); err != nil {
		return nil, fmt.Errorf("failed to project world facts: %w", err)
	}
	if err := engine.RecomputeRules(); err != nil {
		return nil, fmt.Errorf("failed to derive world relations: %w", err)
	}

	logger.Debug("world loaded",
		zap.Int("capabilities", len(d.Capabilities)),
		zap.Int("impls", len(d.Impls)),
		zap.Int("adts", len(d.Adts)),
		zap.Int("opaques", len(d.Opaques)),
		zap.Int("facts", len(facts)))
	return w, nil
}

// Load reads, validates and builds the world at path. The file's goals are returned
// alongside.
func Load(path string, logger *zap.Logger) (*World, []GoalSpec, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	d, err := f.Decls()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	w, err := New(d, logger)
	if err != nil {
		return nil, nil, err
	}
	return w, f.Goals, nil
}

func roleName(r types.Role) string {
	if r == types.RoleNone {
		return "/none"
	}
	return "/" + r.String()
}

func (w *World) query(predicate string, args ...string) []mangle.Fact {
	facts, err := w.engine.QueryFacts(predicate, args...)
	if err != nil {
		// The schema is fixed, so this is a programming error rather than bad input.
		w.logger.Error("world query failed", zap.String("predicate", predicate), zap.Error(err))
		return nil
	}
	return facts
}

// RelevantImpls returns the impls of cap whose self shape may unify with self, in declaration
// order.
func (w *World) RelevantImpls(cap string, self *types.Type, policy solve.LookupPolicy) []*types.ImplDecl {
	var facts []mangle.Fact
	switch {
	case matchesAnyShape(self, policy):
		facts = w.query("impl", "", cap)
	case self.Kind == types.KindIntVar, self.Kind == types.KindFloatVar:
		for _, f := range w.query("impl", "", cap) {
			if shape := fmt.Sprint(f.Args[2]); shape == blanketShape || numericShapeMatches(self.Kind, shape) {
				facts = append(facts, f)
			}
		}
	default:
		facts = append(w.query("impl", "", cap, shapeOf(self)), w.query("impl", "", cap, blanketShape)...)
	}

	out := make([]*types.ImplDecl, 0, len(facts))
	for _, f := range facts {
		if impl, ok := w.impls[fmt.Sprint(f.Args[0])]; ok {
			out = append(out, impl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return w.order[out[i].ID] < w.order[out[j].ID] })
	return out
}

// Impl returns an implementation by identity.
func (w *World) Impl(id string) (*types.ImplDecl, bool) {
	impl, ok := w.impls[id]
	return impl, ok
}

// HasExplicitImpl reports whether adt has any implementation of cap.
func (w *World) HasExplicitImpl(cap, adt string) bool {
	return len(w.query("impl", "", cap, "adt:"+adt)) > 0
}

// Capability returns a capability declaration.
func (w *World) Capability(name string) (*types.Capability, bool) {
	c, ok := w.caps[name]
	return c, ok
}

// RoleCapability returns the first declared capability carrying role.
func (w *World) RoleCapability(role types.Role) (string, bool) {
	if role == types.RoleNone {
		return "", false
	}
	facts := w.query("capability", "", "", roleName(role))
	if len(facts) == 0 {
		return "", false
	}
	names := make([]string, len(facts))
	for i, f := range facts {
		names[i] = fmt.Sprint(f.Args[0])
	}
	sort.Slice(names, func(i, j int) bool { return w.capOrder[names[i]] < w.capOrder[names[j]] })
	return names[0], true
}

// SuperReaches reports whether super is reachable from sub through super-relations.
func (w *World) SuperReaches(sub, super string) bool {
	return len(w.query("super_reach", sub, super)) > 0
}

// Adt returns an ADT declaration.
func (w *World) Adt(name string) (*types.AdtDecl, bool) {
	a, ok := w.adts[name]
	return a, ok
}

// Opaque returns an opaque type declaration.
func (w *World) Opaque(name string) (*types.OpaqueDecl, bool) {
	o, ok := w.opaques[name]
	return o, ok
}

// Facts dumps the relation store, predicate by predicate in WorldPredicates order.
func (w *World) Facts() []mangle.Fact {
	var out []mangle.Fact
	for _, p := range WorldPredicates {
		facts := w.query(p)
		sort.Slice(facts, func(i, j int) bool { return facts[i].String() < facts[j].String() })
		out = append(out, facts...)
	}
	return out
}

// FactsFor returns the facts of one world predicate.
func (w *World) FactsFor(predicate string) ([]mangle.Fact, error) {
	if _, ok := WorldPredicateSet()[predicate]; !ok {
		return nil, fmt.Errorf("unknown world predicate %q (have %s)", predicate, strings.Join(WorldPredicates, ", "))
	}
	return w.engine.GetFacts(predicate)
}

// Stats reports the size of the relation store.
func (w *World) Stats() mangle.Stats {
	return w.engine.GetStats()
}

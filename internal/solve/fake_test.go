package solve

import (
	"testing"

	"capsolve/internal/infer"
	"capsolve/internal/types"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeDB is an in-memory Database. RelevantImpls returns every impl of a capability, which is
// a valid over-approximation of a shape index.
type fakeDB struct {
	caps     map[string]*types.Capability
	capOrder []string
	impls    []*types.ImplDecl
	adts     map[string]*types.AdtDecl
	opaques  map[string]*types.OpaqueDecl

	lookups int
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		caps:    make(map[string]*types.Capability),
		adts:    make(map[string]*types.AdtDecl),
		opaques: make(map[string]*types.OpaqueDecl),
	}
}

func (db *fakeDB) cap(c *types.Capability) *fakeDB {
	db.caps[c.Name] = c
	db.capOrder = append(db.capOrder, c.Name)
	return db
}

func (db *fakeDB) impl(i *types.ImplDecl) *fakeDB {
	db.impls = append(db.impls, i)
	return db
}

func (db *fakeDB) adt(a *types.AdtDecl) *fakeDB {
	db.adts[a.Name] = a
	return db
}

func (db *fakeDB) opaque(o *types.OpaqueDecl) *fakeDB {
	db.opaques[o.Name] = o
	return db
}

func (db *fakeDB) RelevantImpls(cap string, self *types.Type, policy LookupPolicy) []*types.ImplDecl {
	db.lookups++
	var out []*types.ImplDecl
	for _, i := range db.impls {
		if i.Cap == cap {
			out = append(out, i)
		}
	}
	return out
}

func (db *fakeDB) Impl(id string) (*types.ImplDecl, bool) {
	for _, i := range db.impls {
		if i.ID == id {
			return i, true
		}
	}
	return nil, false
}

func (db *fakeDB) HasExplicitImpl(cap, adt string) bool {
	for _, i := range db.impls {
		if i.Cap == cap && i.Self.Kind == types.KindAdt && i.Self.Name == adt {
			return true
		}
	}
	return false
}

func (db *fakeDB) Capability(name string) (*types.Capability, bool) {
	c, ok := db.caps[name]
	return c, ok
}

func (db *fakeDB) RoleCapability(role types.Role) (string, bool) {
	for _, name := range db.capOrder {
		if db.caps[name].Role == role {
			return name, true
		}
	}
	return "", false
}

func (db *fakeDB) SuperReaches(sub, super string) bool {
	seen := map[string]bool{}
	work := []string{sub}
	for len(work) > 0 {
		c := work[0]
		work = work[1:]
		info, ok := db.caps[c]
		if !ok {
			continue
		}
		for _, s := range info.Supers {
			if s.Cap == super {
				return true
			}
			if !seen[s.Cap] {
				seen[s.Cap] = true
				work = append(work, s.Cap)
			}
		}
	}
	return false
}

func (db *fakeDB) Adt(name string) (*types.AdtDecl, bool) {
	a, ok := db.adts[name]
	return a, ok
}

func (db *fakeDB) Opaque(name string) (*types.OpaqueDecl, bool) {
	o, ok := db.opaques[name]
	return o, ok
}

// Common declarations.

var (
	capSized   = &types.Capability{Name: "Sized", Role: types.RoleSized}
	capSend    = &types.Capability{Name: "Send", Kind: types.CapAuto}
	capDisplay = &types.Capability{Name: "Display"}
	capClone   = &types.Capability{Name: "Clone", Role: types.RoleClone}
	capUnsize  = &types.Capability{Name: "Unsize", Role: types.RoleUnsize, Params: []string{"Target"}}
	capIter    = &types.Capability{
		Name:  "Iterator",
		Items: []types.AssocItem{{Name: "Item", Bounds: []types.BoundRef{{Cap: "Sized"}}}},
	}
)

func selfParam() *types.Type { return types.Param("Self") }

func trait(cap string, s *types.Type, args ...*types.Type) types.Predicate {
	return types.TraitPred(types.TraitRef{Cap: cap, Self: s, Args: args})
}

func newTestSolver(t *testing.T, db Database, cfg Config) *Solver {
	t.Helper()
	s, err := New(db, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func defaultSolver(t *testing.T, db Database) *Solver {
	t.Helper()
	return newTestSolver(t, db, DefaultConfig())
}

// evalCtxtWithVars returns an evaluation context whose goal has n canonical variables, and
// the instantiated variables.
func evalCtxtWithVars(t *testing.T, s *Solver, n int) (*EvalCtxt, []*types.Type) {
	t.Helper()
	args := make([]*types.Type, n)
	for i := range args {
		args[i] = types.BoundVar(i)
	}
	cg := infer.Canonical{Goal: types.NewGoal(types.Unit(), "Probe", args, types.Env{}), NumVars: n}
	ecx, _ := s.newEvalCtxt(newQuery(), cg)
	return ecx, ecx.vars
}

func catchInvariant(fn func()) (ie *InvariantError) {
	defer func() {
		if r := recover(); r != nil {
			ie, _ = r.(*InvariantError)
			if ie == nil {
				panic(r)
			}
		}
	}()
	fn()
	return nil
}

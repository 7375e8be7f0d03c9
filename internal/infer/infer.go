// Package infer provides the unification service used by the solver: inference variables,
// structural equality with binding, and probes with guaranteed rollback.
//
// Bindings live in a Mangle union-find. UnifyTermsExtend never mutates its base, so a
// snapshot is just the union-find value captured before a probe and restoring it discards
// every binding made since.
package infer

import (
	"errors"
	"fmt"
	"strconv"

	"capsolve/internal/types"

	"github.com/google/mangle/ast"
	"github.com/google/mangle/unionfind"
)

// ErrMismatch is returned when two types cannot be made equal.
var ErrMismatch = errors.New("type mismatch")

// Ctxt is an inference context. It is not safe for concurrent use.
type Ctxt struct {
	uf      unionfind.UnionFind
	nextVar int
	// interned maps the constant a variable is bound to back to the bound type. The table only
	// grows; rollback leaves entries unreachable rather than removing them.
	interned map[string]*types.Type
	nextKey  int
}

// New returns an empty inference context.
func New() *Ctxt {
	return &Ctxt{
		uf:       unionfind.New(),
		interned: make(map[string]*types.Type),
	}
}

// NewVar returns a fresh general inference variable.
func (c *Ctxt) NewVar() *types.Type {
	id := c.nextVar
	c.nextVar++
	return types.Infer(id)
}

// NewIntVar returns a fresh integer-literal variable.
func (c *Ctxt) NewIntVar() *types.Type {
	id := c.nextVar
	c.nextVar++
	return types.IntVar(id)
}

// NewFloatVar returns a fresh float-literal variable.
func (c *Ctxt) NewFloatVar() *types.Type {
	id := c.nextVar
	c.nextVar++
	return types.FloatVar(id)
}

func varTerm(t *types.Type) ast.Variable {
	return ast.Variable{Symbol: "V" + strconv.Itoa(t.Var)}
}

func varFromSymbol(sym string, kind types.Kind) *types.Type {
	id, err := strconv.Atoi(sym[1:])
	if err != nil {
		panic(fmt.Sprintf("infer: malformed variable symbol %q", sym))
	}
	return &types.Type{Kind: kind, Var: id}
}

// root returns the representative term of a variable: the variable itself when unbound and
// not unioned, another variable, or the constant it is bound to.
func (c *Ctxt) root(t *types.Type) ast.BaseTerm {
	v := varTerm(t)
	r := c.uf.Get(v)
	if r == nil {
		return v
	}
	return r
}

// Shallow resolves t one level: a bound variable is replaced by its binding (repeatedly) and
// an unbound variable by its representative.
func (c *Ctxt) Shallow(t *types.Type) *types.Type {
	for t != nil && t.IsVar() {
		switch r := c.root(t).(type) {
		case ast.Constant:
			bound, ok := c.interned[r.Symbol]
			if !ok {
				panic(fmt.Sprintf("infer: dangling binding %s for %s", r.Symbol, t))
			}
			t = bound
		case ast.Variable:
			if r.Symbol == varTerm(t).Symbol {
				return t
			}
			return varFromSymbol(r.Symbol, t.Kind)
		default:
			return t
		}
	}
	return t
}

// Resolve substitutes every bound variable in t, leaving unbound variables in their
// representative form.
func (c *Ctxt) Resolve(t *types.Type) *types.Type {
	if t == nil || !t.HasVars() {
		return t
	}
	return t.Map(func(n *types.Type) *types.Type {
		if !n.IsVar() {
			return n
		}
		s := c.Shallow(n)
		if s.IsVar() {
			return s
		}
		return c.Resolve(s)
	})
}

// ResolveGoal resolves every type in a goal.
func (c *Ctxt) ResolveGoal(g types.Goal) types.Goal {
	return g.Map(func(n *types.Type) *types.Type {
		if n.IsVar() {
			return c.Resolve(n)
		}
		return n
	})
}

func (c *Ctxt) bind(v, t *types.Type) error {
	key := "T" + strconv.Itoa(c.nextKey)
	c.nextKey++
	c.interned[key] = t
	uf, err := unionfind.UnifyTermsExtend([]ast.BaseTerm{varTerm(v)}, []ast.BaseTerm{ast.String(key)}, c.uf)
	if err != nil {
		return fmt.Errorf("bind %s: %w", v, err)
	}
	c.uf = uf
	return nil
}

func (c *Ctxt) union(a, b *types.Type) error {
	uf, err := unionfind.UnifyTermsExtend([]ast.BaseTerm{varTerm(a)}, []ast.BaseTerm{varTerm(b)}, c.uf)
	if err != nil {
		return fmt.Errorf("union %s %s: %w", a, b, err)
	}
	c.uf = uf
	return nil
}

// occurs reports whether variable v appears in t after resolution.
func (c *Ctxt) occurs(v, t *types.Type) bool {
	found := false
	c.Resolve(t).Walk(func(n *types.Type) bool {
		if n.IsVar() && n.Var == v.Var {
			found = true
		}
		return !found
	})
	return found
}

// Snapshot captures the current bindings.
type Snapshot struct {
	uf unionfind.UnionFind
}

// Snapshot returns a restorable copy of the binding state.
func (c *Ctxt) Snapshot() Snapshot { return Snapshot{uf: c.uf} }

// Rollback restores a snapshot.
func (c *Ctxt) Rollback(s Snapshot) { c.uf = s.uf }

// Probe runs fn speculatively. Every binding made inside fn is rolled back when fn returns,
// including when it panics. Probes nest.
func Probe[T any](c *Ctxt, fn func() T) T {
	snap := c.Snapshot()
	defer c.Rollback(snap)
	return fn()
}

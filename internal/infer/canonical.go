package infer

import (
	"capsolve/internal/types"
)

// Canonical is a goal with its unresolved inference variables replaced by Bound slots,
// numbered in order of first appearance. Two goals that differ only in variable identity have
// the same canonical form.
type Canonical struct {
	Goal    types.Goal
	NumVars int
}

// Key is the cache and recursion key of a canonical goal.
func (cg Canonical) Key() string { return cg.Goal.Key() }

// Canonicalize resolves g and abstracts its variables. It returns the canonical goal and the
// original variables, indexed by slot.
func (c *Ctxt) Canonicalize(g types.Goal) (Canonical, []*types.Type) {
	resolved := c.ResolveGoal(g)
	slots := make(map[int]int)
	var vars []*types.Type
	canon := resolved.Map(func(n *types.Type) *types.Type {
		if !n.IsVar() {
			if n.Kind == types.KindBound || n.Kind == types.KindFresh {
				panic("infer: canonicalizing a goal that already contains bound variables")
			}
			return n
		}
		idx, ok := slots[n.Var]
		if !ok {
			idx = len(vars)
			slots[n.Var] = idx
			vars = append(vars, n)
		}
		return boundSlot(idx, n.Kind)
	})
	return Canonical{Goal: canon, NumVars: len(vars)}, vars
}

// Instantiate replaces every Bound slot of a canonical goal with a fresh variable of the
// matching kind and returns the goal together with the variables, indexed by slot.
func (c *Ctxt) Instantiate(cg Canonical) (types.Goal, []*types.Type) {
	vars := make([]*types.Type, cg.NumVars)
	g := cg.Goal.Map(func(n *types.Type) *types.Type {
		if n.Kind != types.KindBound {
			return n
		}
		if vars[n.Var] == nil {
			vars[n.Var] = c.freshLike(n)
		}
		return vars[n.Var]
	})
	for i := range vars {
		if vars[i] == nil {
			vars[i] = c.NewVar()
		}
	}
	return g, vars
}

// CanonicalResponse builds a response from the current bindings of the given slot
// variables. Variables that are still unbound map back to their own slot; variables created
// since instantiation are numbered after the slots.
func (c *Ctxt) CanonicalResponse(cert types.Certainty, vars []*types.Type) types.Response {
	slotOf := make(map[int]int, len(vars))
	for i, v := range vars {
		r := c.Shallow(v)
		if r.IsVar() {
			if _, seen := slotOf[r.Var]; !seen {
				slotOf[r.Var] = i
			}
		}
	}
	next := len(vars)
	values := make([]*types.Type, len(vars))
	for i, v := range vars {
		values[i] = c.Resolve(v).Map(func(n *types.Type) *types.Type {
			if !n.IsVar() {
				return n
			}
			idx, ok := slotOf[n.Var]
			if !ok {
				idx = next
				next++
				slotOf[n.Var] = idx
			}
			return boundSlot(idx, n.Kind)
		})
	}
	return types.Response{Certainty: cert, VarValues: values}
}

// InstantiateResponse applies a response's constraints to the caller's variables.
func (c *Ctxt) InstantiateResponse(resp types.Response, vars []*types.Type) error {
	extra := make(map[int]*types.Type)
	for i, v := range vars {
		value := resp.VarValues[i].Map(func(n *types.Type) *types.Type {
			if n.Kind != types.KindBound {
				return n
			}
			if n.Var < len(vars) {
				return vars[n.Var]
			}
			if fresh, ok := extra[n.Var]; ok {
				return fresh
			}
			fresh := c.freshLike(n)
			extra[n.Var] = fresh
			return fresh
		})
		if err := c.Eq(v, value); err != nil {
			return err
		}
	}
	return nil
}

func (c *Ctxt) freshLike(bound *types.Type) *types.Type {
	switch bound.Name {
	case "int":
		return c.NewIntVar()
	case "float":
		return c.NewFloatVar()
	}
	return c.NewVar()
}

func boundSlot(idx int, kind types.Kind) *types.Type {
	b := types.BoundVar(idx)
	switch kind {
	case types.KindIntVar:
		b.Name = "int"
	case types.KindFloatVar:
		b.Name = "float"
	}
	return b
}

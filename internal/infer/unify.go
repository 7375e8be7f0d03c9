package infer

import (
	"fmt"

	"capsolve/internal/types"
)

// Eq makes a and b structurally equal, binding inference variables as needed. On failure the
// context may hold partial bindings; callers run Eq inside a probe.
//
// Aliases are compared structurally and never normalized here. Bound and fresh variables
// must have been instantiated before unification and cause a panic.
func (c *Ctxt) Eq(a, b *types.Type) error {
	a, b = c.Shallow(a), c.Shallow(b)
	if a == b {
		return nil
	}
	if a.Kind == types.KindBound || a.Kind == types.KindFresh || b.Kind == types.KindBound || b.Kind == types.KindFresh {
		panic(fmt.Sprintf("infer: uninstantiated variable in unification: %s == %s", a, b))
	}

	switch {
	case a.IsVar() && b.IsVar():
		return c.eqVars(a, b)
	case a.IsVar():
		return c.eqVarType(a, b)
	case b.IsVar():
		return c.eqVarType(b, a)
	}

	if a.Kind != b.Kind {
		return mismatch(a, b)
	}
	switch a.Kind {
	case types.KindBool, types.KindChar, types.KindStr, types.KindNever, types.KindError:
		return nil
	case types.KindInt, types.KindUint, types.KindFloat, types.KindForeign, types.KindParam, types.KindPlaceholder:
		if a.Name != b.Name {
			return mismatch(a, b)
		}
		return nil
	case types.KindAdt, types.KindGeneratorWitness:
		if a.Name != b.Name {
			return mismatch(a, b)
		}
		return c.eqAll(a.Args, b.Args)
	case types.KindTuple:
		return c.eqAll(a.Args, b.Args)
	case types.KindArray:
		if a.Len != b.Len {
			return mismatch(a, b)
		}
		return c.Eq(a.Elem, b.Elem)
	case types.KindSlice:
		return c.Eq(a.Elem, b.Elem)
	case types.KindRawPtr, types.KindRef:
		if a.Mut != b.Mut {
			return mismatch(a, b)
		}
		return c.Eq(a.Elem, b.Elem)
	case types.KindFnPtr:
		return c.eqSig(a.Sig, b.Sig)
	case types.KindFnDef:
		if a.Name != b.Name {
			return mismatch(a, b)
		}
		if err := c.eqAll(a.Args, b.Args); err != nil {
			return err
		}
		return c.eqSig(a.Sig, b.Sig)
	case types.KindClosure:
		if a.Name != b.Name || a.Clo != b.Clo {
			return mismatch(a, b)
		}
		if err := c.eqSig(a.Sig, b.Sig); err != nil {
			return err
		}
		return c.Eq(a.Upvar, b.Upvar)
	case types.KindGenerator:
		if a.Name != b.Name || a.Gen.Async != b.Gen.Async {
			return mismatch(a, b)
		}
		return c.eqAll(
			[]*types.Type{a.Gen.Resume, a.Gen.Yield, a.Gen.Return, a.Upvar, a.Wit},
			[]*types.Type{b.Gen.Resume, b.Gen.Yield, b.Gen.Return, b.Upvar, b.Wit},
		)
	case types.KindDynamic:
		if len(a.Preds) != len(b.Preds) {
			return mismatch(a, b)
		}
		for i := range a.Preds {
			pa, pb := a.Preds[i], b.Preds[i]
			if pa.Cap != pb.Cap || pa.Auto != pb.Auto {
				return mismatch(a, b)
			}
			if err := c.eqAll(pa.Args, pb.Args); err != nil {
				return err
			}
		}
		return nil
	case types.KindAlias:
		aa, ba := a.Alias, b.Alias
		if aa.Kind != ba.Kind || aa.Cap != ba.Cap || aa.Item != ba.Item {
			return mismatch(a, b)
		}
		return c.eqAll(aa.Args, ba.Args)
	default:
		panic(fmt.Sprintf("infer: unexpected type kind %s in unification", a.Kind))
	}
}

// EqAll unifies two type lists pairwise.
func (c *Ctxt) EqAll(as, bs []*types.Type) error { return c.eqAll(as, bs) }

// EqTraitRefs unifies two capability predicates.
func (c *Ctxt) EqTraitRefs(a, b types.TraitRef) error {
	if a.Cap != b.Cap {
		return fmt.Errorf("%w: capability %s != %s", ErrMismatch, a.Cap, b.Cap)
	}
	if err := c.Eq(a.Self, b.Self); err != nil {
		return err
	}
	return c.eqAll(a.Args, b.Args)
}

func (c *Ctxt) eqAll(as, bs []*types.Type) error {
	if len(as) != len(bs) {
		return fmt.Errorf("%w: arity %d != %d", ErrMismatch, len(as), len(bs))
	}
	for i := range as {
		if err := c.Eq(as[i], bs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Ctxt) eqSig(a, b *types.FnSig) error {
	if err := c.eqAll(a.Inputs, b.Inputs); err != nil {
		return err
	}
	return c.Eq(a.Output, b.Output)
}

func (c *Ctxt) eqVars(a, b *types.Type) error {
	if a.Var == b.Var && a.Kind == b.Kind {
		return nil
	}
	switch {
	case a.Kind == b.Kind:
		return c.union(a, b)
	case a.Kind == types.KindInfer:
		return c.bind(a, b)
	case b.Kind == types.KindInfer:
		return c.bind(b, a)
	}
	// Integer and float literal variables never unify with each other.
	return mismatch(a, b)
}

func (c *Ctxt) eqVarType(v, t *types.Type) error {
	switch v.Kind {
	case types.KindIntVar:
		if t.Kind != types.KindInt && t.Kind != types.KindUint {
			return mismatch(v, t)
		}
	case types.KindFloatVar:
		if t.Kind != types.KindFloat {
			return mismatch(v, t)
		}
	}
	if c.occurs(v, t) {
		return fmt.Errorf("%w: %s occurs in %s", ErrMismatch, v, c.Resolve(t))
	}
	return c.bind(v, t)
}

func mismatch(a, b *types.Type) error {
	return fmt.Errorf("%w: %s != %s", ErrMismatch, a, b)
}

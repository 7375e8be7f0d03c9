package solve

import (
	"capsolve/internal/types"
)

// Structural decomposition tables. Each maps a self type to the constituent types a built-in
// rule recurses into, ErrNoSolution when the rule never applies to that shape, or panics on
// shapes that must not reach dispatch.

// constituentTysForAutoTrait returns the components an auto capability must hold for.
func (ecx *EvalCtxt) constituentTysForAutoTrait(goal types.Goal, t *types.Type) ([]*types.Type, error) {
	switch t.Kind {
	case types.KindBool, types.KindChar, types.KindInt, types.KindUint, types.KindFloat,
		types.KindStr, types.KindNever, types.KindFnDef, types.KindFnPtr, types.KindError,
		types.KindIntVar, types.KindFloatVar:
		return nil, nil

	case types.KindDynamic, types.KindParam, types.KindForeign, types.KindPlaceholder:
		return nil, ErrNoSolution

	case types.KindAlias:
		if t.Alias.Kind == types.AliasProjection {
			return nil, ErrNoSolution
		}
		hidden, ok := ecx.revealOpaque(t)
		if !ok {
			return nil, ErrNoSolution
		}
		return []*types.Type{hidden}, nil

	case types.KindRawPtr, types.KindRef, types.KindArray, types.KindSlice:
		return []*types.Type{t.Elem}, nil

	case types.KindTuple:
		return t.Args, nil

	case types.KindClosure:
		return []*types.Type{t.Upvar}, nil

	case types.KindGenerator:
		return []*types.Type{t.Upvar, t.Wit}, nil

	case types.KindGeneratorWitness:
		return t.Args, nil

	case types.KindAdt:
		_, fields, ok := ecx.adtFields(t)
		if !ok {
			return nil, ErrNoSolution
		}
		return fields, nil

	case types.KindInfer, types.KindBound, types.KindFresh:
		bug("auto capability decomposition", t, &goal)
	}
	bug("auto capability decomposition", t, &goal)
	return nil, nil
}

// constituentTysForSizedTrait returns the components whose size determines t's.
func (ecx *EvalCtxt) constituentTysForSizedTrait(goal types.Goal, t *types.Type) ([]*types.Type, error) {
	switch t.Kind {
	case types.KindIntVar, types.KindFloatVar, types.KindInt, types.KindUint, types.KindFloat,
		types.KindBool, types.KindRawPtr, types.KindRef, types.KindFnDef, types.KindFnPtr,
		types.KindArray, types.KindGeneratorWitness, types.KindGenerator, types.KindClosure,
		types.KindNever, types.KindError, types.KindChar:
		return nil, nil

	case types.KindStr, types.KindSlice, types.KindDynamic, types.KindForeign, types.KindAlias,
		types.KindParam, types.KindPlaceholder:
		return nil, ErrNoSolution

	case types.KindTuple:
		if len(t.Args) == 0 {
			return nil, nil
		}
		return t.Args[len(t.Args)-1:], nil

	case types.KindAdt:
		decl, fields, ok := ecx.adtFields(t)
		if !ok {
			return nil, ErrNoSolution
		}
		// Every variant's fields of an enum are stored inline; a struct only has a tail.
		if decl.Enum || len(fields) == 0 {
			return fields, nil
		}
		return fields[len(fields)-1:], nil

	case types.KindInfer, types.KindBound, types.KindFresh:
		bug("sized decomposition", t, &goal)
	}
	bug("sized decomposition", t, &goal)
	return nil, nil
}

// constituentTysForCopyCloneTrait returns the components that must be copyable for t to be.
func (ecx *EvalCtxt) constituentTysForCopyCloneTrait(goal types.Goal, t *types.Type) ([]*types.Type, error) {
	switch t.Kind {
	case types.KindIntVar, types.KindFloatVar, types.KindFnDef, types.KindFnPtr, types.KindError:
		return nil, nil

	case types.KindUint, types.KindInt, types.KindFloat, types.KindBool, types.KindChar,
		types.KindRawPtr, types.KindNever:
		return nil, nil

	case types.KindRef:
		if t.Mut {
			return nil, ErrNoSolution
		}
		return nil, nil

	case types.KindDynamic, types.KindStr, types.KindSlice, types.KindGenerator,
		types.KindGeneratorWitness, types.KindForeign, types.KindAdt, types.KindAlias,
		types.KindParam, types.KindPlaceholder:
		return nil, ErrNoSolution

	case types.KindTuple:
		return t.Args, nil

	case types.KindClosure:
		return []*types.Type{t.Upvar}, nil

	case types.KindArray:
		return []*types.Type{t.Elem}, nil

	case types.KindInfer, types.KindBound, types.KindFresh:
		bug("copy/clone decomposition", t, &goal)
	}
	bug("copy/clone decomposition", t, &goal)
	return nil, nil
}

// callableSignature extracts the signature a callable type is known to be invocable with.
// It reports false when the closure kind is not yet known.
func callableSignature(goal types.Goal, t *types.Type, kind types.ClosureKind) (*types.FnSig, bool, error) {
	switch t.Kind {
	case types.KindFnDef, types.KindFnPtr:
		return t.Sig, true, nil

	case types.KindClosure:
		if t.Clo == types.ClosureUnknown {
			return nil, false, nil
		}
		if !t.Clo.Extends(kind) {
			return nil, false, ErrNoSolution
		}
		return t.Sig, true, nil

	case types.KindBool, types.KindChar, types.KindInt, types.KindUint, types.KindFloat,
		types.KindAdt, types.KindForeign, types.KindStr, types.KindArray, types.KindSlice,
		types.KindRawPtr, types.KindRef, types.KindDynamic, types.KindGenerator,
		types.KindGeneratorWitness, types.KindNever, types.KindTuple, types.KindAlias,
		types.KindParam, types.KindPlaceholder, types.KindIntVar, types.KindFloatVar,
		types.KindError:
		return nil, false, ErrNoSolution

	case types.KindInfer, types.KindBound, types.KindFresh:
		bug("callable signature", t, &goal)
	}
	bug("callable signature", t, &goal)
	return nil, false, nil
}

// isPointerSized reports whether t is laid out like a thin pointer.
func (ecx *EvalCtxt) isPointerSized(t *types.Type) bool {
	switch t.Kind {
	case types.KindRef, types.KindRawPtr:
		switch t.Elem.Kind {
		case types.KindStr, types.KindSlice, types.KindDynamic:
			return false
		}
		return true
	case types.KindFnPtr:
		return true
	case types.KindInt:
		return t.Name == "isize"
	case types.KindUint:
		return t.Name == "usize"
	case types.KindAdt:
		decl, ok := ecx.db.Adt(t.Name)
		return ok && decl.PointerSized
	}
	return false
}

// adtFields returns the field types of an ADT with its generics substituted.
func (ecx *EvalCtxt) adtFields(t *types.Type) (*types.AdtDecl, []*types.Type, bool) {
	decl, ok := ecx.db.Adt(t.Name)
	if !ok {
		return nil, nil, false
	}
	return decl, types.SubstAll(decl.Fields, genericSubst(decl.Generics, t.Args)), true
}

// revealOpaque returns the hidden type of an opaque alias when its declaration carries one.
func (ecx *EvalCtxt) revealOpaque(t *types.Type) (*types.Type, bool) {
	decl, ok := ecx.db.Opaque(t.Alias.Item)
	if !ok || decl.Hidden == nil {
		return nil, false
	}
	return decl.Hidden.Subst(genericSubst(decl.Generics, t.Alias.Args)), true
}

// unsizingParams returns the generics of a struct that occur in its tail field and nowhere
// else; only those may change when the struct is unsized.
func unsizingParams(decl *types.AdtDecl) map[string]bool {
	if decl.Enum || len(decl.Fields) == 0 {
		return nil
	}
	generic := make(map[string]bool, len(decl.Generics))
	for _, g := range decl.Generics {
		generic[g] = true
	}
	params := func(t *types.Type) map[string]bool {
		found := make(map[string]bool)
		t.Walk(func(n *types.Type) bool {
			if n.Kind == types.KindParam && generic[n.Name] {
				found[n.Name] = true
			}
			return true
		})
		return found
	}

	tail := params(decl.Fields[len(decl.Fields)-1])
	for _, f := range decl.Fields[:len(decl.Fields)-1] {
		for name := range params(f) {
			delete(tail, name)
		}
	}
	return tail
}

// discriminantTy returns the discriminant type of a concrete type.
func (ecx *EvalCtxt) discriminantTy(t *types.Type) *types.Type {
	switch t.Kind {
	case types.KindAdt:
		if decl, ok := ecx.db.Adt(t.Name); ok && decl.Enum {
			if decl.Discriminant != nil {
				return decl.Discriminant
			}
			return types.Int("isize")
		}
	case types.KindGenerator:
		return types.Uint("u32")
	}
	return types.Uint("u8")
}

package world

import (
	"slices"
	"strconv"
	"strings"

	"capsolve/internal/solve"
	"capsolve/internal/types"
)

// shapeOf is the lookup key of a type's outermost constructor. Two types whose shapes differ
// can never unify.
func shapeOf(t *types.Type) string {
	switch t.Kind {
	case types.KindInt, types.KindUint, types.KindFloat:
		return t.Kind.String() + ":" + t.Name
	case types.KindAdt, types.KindForeign, types.KindFnDef, types.KindClosure, types.KindGenerator,
		types.KindParam, types.KindPlaceholder:
		return t.Kind.String() + ":" + t.Name
	case types.KindTuple:
		return "tuple:" + strconv.Itoa(len(t.Args))
	case types.KindDynamic:
		p, _ := t.Principal()
		return "dyn:" + p.Cap
	case types.KindAlias:
		if t.Alias.Kind == types.AliasOpaque {
			return "opaque:" + t.Alias.Item
		}
		return "projection"
	}
	return t.Kind.String()
}

// implShape is the shape of an impl's self type, or blanketShape when the self type is one of
// the impl's generics.
func implShape(impl *types.ImplDecl) string {
	if impl.Self.Kind == types.KindParam && slices.Contains(impl.Generics, impl.Self.Name) {
		return blanketShape
	}
	return shapeOf(impl.Self)
}

// matchesAnyShape reports whether self may unify with a self type of any shape.
func matchesAnyShape(self *types.Type, policy solve.LookupPolicy) bool {
	switch self.Kind {
	case types.KindInfer, types.KindError, types.KindBound, types.KindFresh:
		return true
	case types.KindAlias:
		return self.Alias.Kind == types.AliasProjection && policy.LookThroughProjections
	}
	return false
}

// numericShapeMatches reports whether a numeric inference variable may unify with shape.
func numericShapeMatches(kind types.Kind, shape string) bool {
	if kind == types.KindFloatVar {
		return strings.HasPrefix(shape, "float:")
	}
	return strings.HasPrefix(shape, "int:") || strings.HasPrefix(shape, "uint:")
}

package infer

import (
	"errors"
	"testing"

	"capsolve/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqBindsVariable(t *testing.T) {
	c := New()
	v := c.NewVar()

	require.NoError(t, c.Eq(v, types.Adt("Vec", types.Int("i32"))))
	assert.True(t, c.Resolve(v).Equal(types.Adt("Vec", types.Int("i32"))))
	assert.False(t, c.Shallow(v).IsVar())
}

func TestEqStructural(t *testing.T) {
	c := New()
	a, b := c.NewVar(), c.NewVar()

	lhs := types.Tuple(types.Ref(a, false), types.Array(types.Bool(), 2))
	rhs := types.Tuple(types.Ref(types.Char(), false), types.Array(b, 2))
	require.NoError(t, c.Eq(lhs, rhs))
	assert.True(t, c.Resolve(a).Equal(types.Char()))
	assert.True(t, c.Resolve(b).Equal(types.Bool()))
}

func TestEqMismatch(t *testing.T) {
	tests := []struct {
		name string
		a, b *types.Type
	}{
		{"kinds", types.Bool(), types.Char()},
		{"widths", types.Int("i32"), types.Int("i64")},
		{"adt names", types.Adt("A"), types.Adt("B")},
		{"array lengths", types.Array(types.Bool(), 1), types.Array(types.Bool(), 2)},
		{"mutability", types.Ref(types.Bool(), true), types.Ref(types.Bool(), false)},
		{"tuple arity", types.Tuple(types.Bool()), types.Unit()},
		{"dyn bounds", types.Dynamic(types.Existential{Cap: "A"}), types.Dynamic(types.Existential{Cap: "B"})},
		{"alias items", types.Projection(types.Bool(), "C", "X"), types.Projection(types.Bool(), "C", "Y")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Eq(tt.a, tt.b)
			assert.True(t, errors.Is(err, ErrMismatch), "got %v", err)
		})
	}
}

func TestEqVariablesUnion(t *testing.T) {
	c := New()
	a, b := c.NewVar(), c.NewVar()

	require.NoError(t, c.Eq(a, b))
	require.NoError(t, c.Eq(b, types.Str()))
	assert.True(t, c.Resolve(a).Equal(types.Str()))
}

func TestEqOccursCheck(t *testing.T) {
	c := New()
	v := c.NewVar()
	err := c.Eq(v, types.Slice(v))
	assert.True(t, errors.Is(err, ErrMismatch))
}

func TestNumericVariables(t *testing.T) {
	c := New()
	i, f := c.NewIntVar(), c.NewFloatVar()

	assert.Error(t, c.Eq(i, types.Bool()))
	assert.Error(t, c.Eq(f, types.Int("i32")))
	assert.Error(t, c.Eq(i, f))

	require.NoError(t, c.Eq(i, types.Uint("u8")))
	require.NoError(t, c.Eq(f, types.Float("f32")))
	assert.True(t, c.Resolve(i).Equal(types.Uint("u8")))

	// A general variable takes on the numeric variable.
	c2 := New()
	g, n := c2.NewVar(), c2.NewIntVar()
	require.NoError(t, c2.Eq(g, n))
	assert.Equal(t, types.KindIntVar, c2.Shallow(g).Kind)
}

func TestEqPanicsOnBoundVariables(t *testing.T) {
	c := New()
	assert.Panics(t, func() { _ = c.Eq(types.BoundVar(0), types.Bool()) })
}

func TestProbeRollsBack(t *testing.T) {
	c := New()
	v := c.NewVar()

	ok := Probe(c, func() bool {
		return c.Eq(v, types.Bool()) == nil && !c.Shallow(v).IsVar()
	})
	assert.True(t, ok)
	assert.True(t, c.Shallow(v).IsVar())
}

func TestProbeRollsBackOnPanic(t *testing.T) {
	c := New()
	v := c.NewVar()
	assert.Panics(t, func() {
		Probe(c, func() int {
			_ = c.Eq(v, types.Bool())
			panic("boom")
		})
	})
	assert.True(t, c.Shallow(v).IsVar())
}

func TestNestedRollbackIsScoped(t *testing.T) {
	c := New()
	v, w := c.NewVar(), c.NewVar()

	Probe(c, func() struct{} {
		require.NoError(t, c.Eq(v, types.Bool()))
		Probe(c, func() struct{} {
			require.NoError(t, c.Eq(w, types.Char()))
			return struct{}{}
		})
		assert.True(t, c.Shallow(w).IsVar(), "inner scope rolled back")
		assert.True(t, c.Resolve(v).Equal(types.Bool()), "outer binding survives the inner scope")
		return struct{}{}
	})
	assert.True(t, c.Shallow(v).IsVar())
}

func TestCanonicalizeNumbersByFirstAppearance(t *testing.T) {
	c := New()
	a, b := c.NewVar(), c.NewVar()
	// b appears first.
	g := types.NewGoal(b, "Cap", []*types.Type{a, b}, types.Env{})

	cg, vars := c.Canonicalize(g)
	require.Equal(t, 2, cg.NumVars)
	// Slots hold the caller's variables (by identity, not pointer).
	assert.True(t, vars[0].Equal(b))
	assert.True(t, vars[1].Equal(a))
	assert.Equal(t, "^0: Cap<^1, ^0>", cg.Key())

	// Variable identity does not affect the canonical form.
	c2 := New()
	x, y := c2.NewVar(), c2.NewVar()
	cg2, _ := c2.Canonicalize(types.NewGoal(y, "Cap", []*types.Type{x, y}, types.Env{}))
	assert.Equal(t, cg.Key(), cg2.Key())
}

func TestCanonicalizeResolvesBindings(t *testing.T) {
	c := New()
	v := c.NewVar()
	require.NoError(t, c.Eq(v, types.Bool()))

	cg, vars := c.Canonicalize(types.NewGoal(v, "Cap", nil, types.Env{}))
	assert.Equal(t, 0, cg.NumVars)
	assert.Empty(t, vars)
}

func TestResponseRoundTrip(t *testing.T) {
	caller := New()
	v := caller.NewVar()
	cg, vars := caller.Canonicalize(types.NewGoal(types.Adt("Vec", v), "Cap", nil, types.Env{}))

	// The callee binds the instantiated variable and builds a response.
	callee := New()
	goal, slots := callee.Instantiate(cg)
	self := goal.SelfTy()
	require.NoError(t, callee.Eq(self, types.Adt("Vec", types.Int("i64"))))
	resp := callee.CanonicalResponse(types.Proven, slots)
	assert.True(t, resp.HasConstraints())

	require.NoError(t, caller.InstantiateResponse(resp, vars))
	assert.True(t, caller.Resolve(v).Equal(types.Int("i64")))
}

func TestIdentityResponseAppliesNothing(t *testing.T) {
	caller := New()
	v := caller.NewVar()
	_, vars := caller.Canonicalize(types.NewGoal(v, "Cap", nil, types.Env{}))

	require.NoError(t, caller.InstantiateResponse(types.IdentityResponse(types.Ambiguous, 1), vars))
	assert.True(t, caller.Shallow(v).IsVar())
}

func TestResponseExistentialVariables(t *testing.T) {
	caller := New()
	v := caller.NewVar()
	cg, vars := caller.Canonicalize(types.NewGoal(v, "Cap", nil, types.Env{}))

	callee := New()
	_, slots := callee.Instantiate(cg)
	inner := callee.NewVar()
	require.NoError(t, callee.Eq(slots[0], types.Slice(inner)))
	resp := callee.CanonicalResponse(types.Ambiguous, slots)
	require.Len(t, resp.VarValues, 1)
	assert.True(t, resp.VarValues[0].Equal(types.Slice(types.BoundVar(1))))

	require.NoError(t, caller.InstantiateResponse(resp, vars))
	got := caller.Resolve(v)
	require.Equal(t, types.KindSlice, got.Kind)
	assert.True(t, got.Elem.IsTyVar())
}

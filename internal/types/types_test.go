package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeStrings(t *testing.T) {
	tests := []struct {
		ty   *Type
		want string
	}{
		{Int("i32"), "i32"},
		{Adt("Vec", Bool()), "Vec<bool>"},
		{Array(Char(), 3), "[char; 3]"},
		{Slice(Str()), "[str]"},
		{Ref(Int("u8"), true), "&mut u8"},
		{RawPtr(Bool(), false), "*const bool"},
		{Tuple(Bool()), "(bool,)"},
		{Unit(), "()"},
		{FnPtr([]*Type{Bool()}, Never()), "fn(bool) -> !"},
		{Dynamic(Existential{Cap: "Any"}, Existential{Cap: "Send", Auto: true}), "dyn Any + Send"},
		{Projection(Param("T"), "Iterator", "Item"), "<T as Iterator>::Item"},
		{Projection(Param("T"), "Add", "Output", Int("i32")), "<T as Add<i32>>::Output"},
		{Opaque("Fut", Bool()), "impl#Fut<bool>"},
		{Infer(3), "?3"},
		{IntVar(1), "?int1"},
		{BoundVar(2), "^2"},
		{Placeholder("P"), "!P"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.ty.String())
	}
}

func TestTypeKeysTagNames(t *testing.T) {
	tests := []struct {
		ty   *Type
		want string
	}{
		{Int("i32"), "i32"},
		{Adt("T"), "adt:T"},
		{Param("T"), "param:T"},
		{Placeholder("T"), "placeholder:T"},
		{Adt("Vec", Param("T")), "adt:Vec<param:T>"},
		{Dynamic(Existential{Cap: "Any"}, Existential{Cap: "Send", Auto: true}), "dyn Any + auto:Send"},
		{Projection(Param("T"), "Iterator", "Item"), "<param:T as Iterator>::Item"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.ty.Key())
	}
}

func TestKeyDistinguishesSameNamedKinds(t *testing.T) {
	same := []*Type{Adt("T"), Param("T"), Placeholder("T"), Adt("i32"), Int("i32"), Adt("bool"), Bool()}
	for i, a := range same {
		for j, b := range same {
			if i != j {
				assert.False(t, a.Equal(b), "%s (%s) vs %s (%s)", a, a.Kind, b, b.Kind)
			}
		}
	}

	auto := Dynamic(Existential{Cap: "Send", Auto: true})
	plain := Dynamic(Existential{Cap: "Send"})
	assert.False(t, auto.Equal(plain))
	assert.Equal(t, auto.String(), plain.String())

	g1 := NewGoal(Adt("T"), "Display", nil, Env{})
	g2 := NewGoal(Param("T"), "Display", nil, Env{})
	assert.NotEqual(t, g1.Key(), g2.Key())
	assert.Equal(t, g1.String(), g2.String())
}

func TestDynamicNormalForm(t *testing.T) {
	a := Dynamic(Existential{Cap: "Display"}, Existential{Cap: "Sync", Auto: true}, Existential{Cap: "Send", Auto: true})
	b := Dynamic(Existential{Cap: "Send", Auto: true}, Existential{Cap: "Display"}, Existential{Cap: "Sync", Auto: true}, Existential{Cap: "Send", Auto: true})
	assert.True(t, a.Equal(b))
	assert.Equal(t, "dyn Display + Send + Sync", b.String())
	require.Len(t, b.Preds, 3)
}

func TestEqualIsStructural(t *testing.T) {
	assert.True(t, Adt("Vec", Int("i32")).Equal(Adt("Vec", Int("i32"))))
	assert.False(t, Adt("Vec", Int("i32")).Equal(Adt("Vec", Int("i64"))))
	assert.False(t, Ref(Bool(), true).Equal(Ref(Bool(), false)))
	assert.True(t, (*Type)(nil).Equal(nil))
	assert.False(t, Bool().Equal(nil))
}

func TestSubst(t *testing.T) {
	ty := Tuple(Param("T"), Slice(Param("U")), Param("V"))
	got := ty.Subst(map[string]*Type{"T": Bool(), "U": Char()})
	assert.Equal(t, "(bool, [char], V)", got.String())
	// The original is untouched.
	assert.Equal(t, "(T, [U], V)", ty.String())
}

func TestHasVarsAndWalk(t *testing.T) {
	assert.False(t, Adt("Vec", Bool()).HasVars())
	assert.True(t, Adt("Vec", Infer(0)).HasVars())
	assert.True(t, FnPtr([]*Type{Bool()}, BoundVar(0)).HasVars())
	assert.True(t, Dynamic(Existential{Cap: "C", Args: []*Type{IntVar(2)}}).HasVars())

	var kinds []Kind
	Ref(Array(Bool(), 1), false).Walk(func(n *Type) bool {
		kinds = append(kinds, n.Kind)
		return true
	})
	assert.Equal(t, []Kind{KindRef, KindArray, KindBool}, kinds)
}

func TestDynamicAccessors(t *testing.T) {
	d := Dynamic(Existential{Cap: "Send", Auto: true}, Existential{Cap: "Read"}, Existential{Cap: "Sync", Auto: true})
	p, ok := d.Principal()
	require.True(t, ok)
	assert.Equal(t, "Read", p.Cap)
	assert.Equal(t, []string{"Send", "Sync"}, d.AutoCaps())

	_, ok = Dynamic(Existential{Cap: "Send", Auto: true}).Principal()
	assert.False(t, ok)
}

func TestClosureKindExtends(t *testing.T) {
	assert.True(t, ClosureFn.Extends(ClosureFnOnce))
	assert.True(t, ClosureFnMut.Extends(ClosureFnMut))
	assert.False(t, ClosureFnOnce.Extends(ClosureFn))
	assert.False(t, ClosureUnknown.Extends(ClosureFnOnce))
}

func TestGoalAccessors(t *testing.T) {
	g := NewGoal(Int("i32"), "Add", []*Type{Int("i64")}, Env{})
	assert.Equal(t, "Add", g.Cap())
	assert.Equal(t, "i32", g.SelfTy().Key())
	assert.Equal(t, "i32: Add<i64>", g.String())

	moved := g.WithSelf(Bool())
	assert.Equal(t, "bool: Add<i64>", moved.String())
	assert.Equal(t, "i32: Add<i64>", g.String())

	p := Goal{Pred: NormalizesTo(Projection(Param("T"), "Add", "Output", Int("i64")), Infer(0))}
	assert.Equal(t, "Add", p.Cap())
	assert.Equal(t, "i64", p.CapArgs()[0].Key())
	assert.True(t, p.SelfTy().Equal(Param("T")))
	assert.Equal(t, "<bool as Add<i64>>::Output == ?0", p.WithSelf(Bool()).String())
}

func TestGoalKeyIncludesEnv(t *testing.T) {
	env := Env{Clauses: []Clause{{Pred: TraitPred(TraitRef{Cap: "Display", Self: Param("T")})}}}
	bare := NewGoal(Param("T"), "Display", nil, Env{})
	withEnv := NewGoal(Param("T"), "Display", nil, env)

	assert.Equal(t, "param:T: Display", bare.Key())
	assert.Equal(t, "param:T: Display | 0=param:T: Display", withEnv.Key())
	assert.Equal(t, "T: Display", withEnv.String())
}

func TestCertaintyAnd(t *testing.T) {
	tests := []struct {
		a, b, want Certainty
	}{
		{Proven, Proven, Proven},
		{Proven, Ambiguous, Ambiguous},
		{Overflow, Proven, Overflow},
		{Overflow, Overflow, Overflow},
		{Overflow, Ambiguous, Ambiguous},
		{Ambiguous, Ambiguous, Ambiguous},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.a.And(tt.b), "%s and %s", tt.a, tt.b)
		assert.Equal(t, tt.want, tt.b.And(tt.a), "%s and %s", tt.b, tt.a)
	}
}

func TestResponses(t *testing.T) {
	id := IdentityResponse(Ambiguous, 2)
	assert.False(t, id.HasConstraints())
	assert.Equal(t, "ambiguous", id.String())

	bound := Response{Certainty: Proven, VarValues: []*Type{BoundVar(0), Bool()}}
	assert.True(t, bound.HasConstraints())
	assert.Equal(t, "proven {^1 := bool}", bound.String())

	assert.True(t, id.Equal(IdentityResponse(Ambiguous, 2)))
	assert.False(t, id.Equal(IdentityResponse(Proven, 2)))
	assert.False(t, id.Equal(bound))
}

func TestCandidateString(t *testing.T) {
	c := Candidate{Origin: ImplOrigin("vec_clone"), Response: IdentityResponse(Proven, 0)}
	assert.Equal(t, "impl(vec_clone) => proven", c.String())
	assert.Equal(t, "env(2)", EnvOrigin(2).String())
	assert.Equal(t, "alias-bound(0)", AliasBoundOrigin(0).String())
	assert.Equal(t, "builtin", BuiltinOrigin().String())
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole("unsize")
	require.True(t, ok)
	assert.Equal(t, RoleUnsize, r)

	r, ok = ParseRole("")
	require.True(t, ok)
	assert.Equal(t, RoleNone, r)

	_, ok = ParseRole("teleport")
	assert.False(t, ok)

	k, ok := RoleFnMut.ClosureKind()
	require.True(t, ok)
	assert.Equal(t, ClosureFnMut, k)
}

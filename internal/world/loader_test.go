package world

import (
	"testing"

	"capsolve/internal/infer"
	"capsolve/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("capabilities:\n  - name: A\n    colour: red\n"))
	assert.Error(t, err)
}

func TestDeclsValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"duplicate capability", "capabilities: [{name: A}, {name: A}]"},
		{"unknown role", "capabilities: [{name: A, role: wings}]"},
		{"unknown kind", "capabilities: [{name: A, kind: magic}]"},
		{"unknown super", "capabilities: [{name: A, supers: [{cap: B}]}]"},
		{"clauses on ordinary", "capabilities: [{name: A, clauses: [{trait: {cap: A}}]}]"},
		{"impl of unknown capability", "impls: [{id: x, cap: A, self: {prim: i32}}]"},
		{"impl without self", "capabilities: [{name: A}]\nimpls: [{id: x, cap: A}]"},
		{"duplicate impl", "capabilities: [{name: A}]\nimpls: [{id: x, cap: A, self: {prim: bool}}, {id: x, cap: A, self: {prim: bool}}]"},
		{"unknown polarity", "capabilities: [{name: A}]\nimpls: [{id: x, cap: A, self: {prim: bool}, polarity: maybe}]"},
		{"variable in impl", "capabilities: [{name: A}]\nimpls: [{id: x, cap: A, self: {var: 0}}]"},
		{"unknown primitive", "capabilities: [{name: A}]\nimpls: [{id: x, cap: A, self: {prim: i31}}]"},
		{"discriminant on struct", "adts: [{name: S, discriminant: {prim: u8}}]"},
		{"auto flag on ordinary capability", "capabilities: [{name: A}]\nimpls: [{id: x, cap: A, self: {dyn: [{cap: A, auto: true}]}}]"},
		{"unknown dyn capability", "capabilities: [{name: A}]\nimpls: [{id: x, cap: A, self: {dyn: [{cap: Missing}]}}]"},
		{"unknown dyn capability in goal", "capabilities: [{name: A}]\ngoals: [{name: g, goal: {trait: {cap: A, self: {dyn: [{cap: Missing}]}}}}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.doc))
			require.NoError(t, err)
			_, err = f.Decls()
			assert.Error(t, err)
		})
	}
}

func TestDeclsConvertsTypes(t *testing.T) {
	doc := `
capabilities:
  - name: Shape
  - name: Send
    kind: auto
impls:
  - id: everything
    generics: [T]
    cap: Shape
    self:
      tuple:
        - ref: {slice: {prim: u8}}
          mut: true
        - array: {adt: Box, args: [{param: T}]}
          len: 4
        - fn_ptr: {inputs: [{prim: bool}], output: {prim: never}}
        - closure: c1
          kind: fn_mut
          inputs: [{prim: char}]
        - dyn: [{cap: Shape}, {cap: Send, auto: true}]
        - projection: {self: {param: T}, cap: Shape, item: Out}
        - generator: g1
          async: true
          return: {prim: str}
        - opaque: Hidden
          args: [{prim: f64}]
`
	f, err := Parse([]byte(doc))
	require.NoError(t, err)
	d, err := f.Decls()
	require.NoError(t, err)
	require.Len(t, d.Impls, 1)

	self := d.Impls[0].Self
	require.Equal(t, types.KindTuple, self.Kind)
	require.Len(t, self.Args, 8)

	assert.True(t, self.Args[0].Equal(types.Ref(types.Slice(types.Uint("u8")), true)))
	assert.True(t, self.Args[1].Equal(types.Array(types.Adt("Box", types.Param("T")), 4)))
	assert.True(t, self.Args[2].Equal(types.FnPtr([]*types.Type{types.Bool()}, types.Never())))
	assert.Equal(t, types.ClosureFnMut, self.Args[3].Clo)
	assert.True(t, self.Args[3].Sig.Output.Equal(types.Unit()))
	assert.Equal(t, []string{"Send"}, self.Args[4].AutoCaps())
	assert.True(t, self.Args[5].IsProjection())
	assert.True(t, self.Args[6].Gen.Async)
	assert.True(t, self.Args[6].Gen.Return.Equal(types.Str()))
	assert.True(t, self.Args[7].Equal(types.Opaque("Hidden", types.Float("f64"))))
}

func TestDynAutoFlagFollowsCapabilityKind(t *testing.T) {
	doc := `
capabilities:
  - name: Display
  - name: Send
    kind: auto
  - name: Sync
    kind: auto
impls:
  - {id: a, cap: Display, self: {dyn: [{cap: Display}, {cap: Sync}, {cap: Send, auto: true}]}}
  - {id: b, cap: Display, self: {dyn: [{cap: Send}, {cap: Sync}, {cap: Display}]}}
goals:
  - name: object
    goal:
      trait: {cap: Display, self: {dyn: [{cap: Send}, {cap: Display}]}}
`
	f, err := Parse([]byte(doc))
	require.NoError(t, err)
	d, err := f.Decls()
	require.NoError(t, err)
	require.Len(t, d.Impls, 2)

	a, b := d.Impls[0].Self, d.Impls[1].Self
	assert.True(t, a.Equal(b), "%s vs %s", a, b)
	assert.Equal(t, []string{"Send", "Sync"}, a.AutoCaps())

	goal, _, err := f.Goals[0].Build(infer.New())
	require.NoError(t, err)
	assert.Equal(t, []string{"Send"}, goal.SelfTy().AutoCaps())
	assert.True(t, goal.SelfTy().Equal(types.Dynamic(
		types.Existential{Cap: "Display"}, types.Existential{Cap: "Send", Auto: true})))
}

func TestGoalSpecBuildSharesVariables(t *testing.T) {
	doc := `
goals:
  - name: pair
    goal:
      trait:
        cap: Eq
        self: {var: 0}
        args: [{var: 0}, {var: 1}, {int_var: 0}]
`
	f, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, f.Goals, 1)

	infcx := infer.New()
	goal, vars, err := f.Goals[0].Build(infcx)
	require.NoError(t, err)
	require.Len(t, vars, 3)

	tr := goal.Pred.Trait
	assert.Same(t, tr.Self, tr.Args[0])
	assert.False(t, tr.Args[0].Equal(tr.Args[1]))
	assert.Equal(t, types.KindIntVar, tr.Args[2].Kind)
}

func TestGoalSpecExpected(t *testing.T) {
	c, none, ok, err := GoalSpec{Expect: "overflow"}.Expected()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, none)
	assert.Equal(t, types.Overflow, c)

	_, none, ok, err = GoalSpec{Expect: "no_solution"}.Expected()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, none)

	_, _, ok, err = GoalSpec{}.Expected()
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, _, err = GoalSpec{Name: "x", Expect: "maybe"}.Expected()
	assert.Error(t, err)
}

func TestShapeOf(t *testing.T) {
	tests := []struct {
		ty   *types.Type
		want string
	}{
		{types.Int("i32"), "int:i32"},
		{types.Uint("usize"), "uint:usize"},
		{types.Adt("Vec", types.Bool()), "adt:Vec"},
		{types.Tuple(types.Bool(), types.Bool()), "tuple:2"},
		{types.Unit(), "tuple:0"},
		{types.Dynamic(types.Existential{Cap: "Send", Auto: true}, types.Existential{Cap: "Any"}), "dyn:Any"},
		{types.Opaque("Hidden"), "opaque:Hidden"},
		{types.Projection(types.Bool(), "Iterator", "Item"), "projection"},
		{types.Ref(types.Str(), false), "ref"},
		{types.Param("T"), "param:T"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, shapeOf(tt.ty), tt.ty.String())
	}

	blanket := &types.ImplDecl{Generics: []string{"T"}, Self: types.Param("T")}
	assert.Equal(t, blanketShape, implShape(blanket))
	rigid := &types.ImplDecl{Self: types.Param("T")}
	assert.Equal(t, "param:T", implShape(rigid))
}

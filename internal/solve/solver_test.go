package solve

import (
	"testing"

	"capsolve/internal/infer"
	"capsolve/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRejectsZeroOverflowDepth(t *testing.T) {
	_, err := New(newFakeDB(), Config{}, nil)
	assert.Error(t, err)

	s, err := New(newFakeDB(), Config{OverflowDepth: 4}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().MaxFixpointIterations, s.Config().MaxFixpointIterations)
	assert.Nil(t, s.cache)
}

func displayDB() *fakeDB {
	return newFakeDB().cap(capDisplay).
		impl(&types.ImplDecl{ID: "display_i32", Cap: "Display", Self: types.Int("i32")}).
		impl(&types.ImplDecl{ID: "display_bool", Cap: "Display", Self: types.Bool()})
}

func TestEvaluateAppliesResponse(t *testing.T) {
	s := defaultSolver(t, displayDB())
	infcx := infer.New()
	v := infcx.NewIntVar()

	c, err := s.Evaluate(infcx, types.NewGoal(v, "Display", nil, types.Env{}))
	require.NoError(t, err)
	assert.Equal(t, types.Proven, c)
	assert.True(t, infcx.Resolve(v).Equal(types.Int("i32")))
}

func TestEvaluateAmbiguousLeavesVariable(t *testing.T) {
	db := displayDB().impl(&types.ImplDecl{ID: "display_u8", Cap: "Display", Self: types.Uint("u8")})
	s := defaultSolver(t, db)
	infcx := infer.New()
	v := infcx.NewIntVar()

	c, err := s.Evaluate(infcx, types.NewGoal(v, "Display", nil, types.Env{}))
	require.NoError(t, err)
	assert.Equal(t, types.Ambiguous, c)
	assert.Equal(t, types.KindIntVar, infcx.Shallow(v).Kind)
}

func TestEvaluateOverflow(t *testing.T) {
	db := newFakeDB().cap(&types.Capability{Name: "Deep"}).impl(&types.ImplDecl{
		ID:       "deep",
		Generics: []string{"T"},
		Cap:      "Deep",
		Self:     types.Param("T"),
		Where:    []types.Predicate{trait("Deep", types.Adt("Wrap", types.Param("T")))},
	})
	cfg := DefaultConfig()
	cfg.OverflowDepth = 8
	s := newTestSolver(t, db, cfg)

	c, err := s.Evaluate(infer.New(), types.NewGoal(types.Int("i32"), "Deep", nil, types.Env{}))
	require.NoError(t, err)
	assert.Equal(t, types.Overflow, c)
	assert.Zero(t, s.cache.Len(), "overflowed results are not cached")
}

func TestCoinductiveCycleHolds(t *testing.T) {
	db := newFakeDB().cap(capSend).adt(&types.AdtDecl{
		Name:   "List",
		Fields: []*types.Type{types.Int("i32"), types.Ref(types.Adt("List"), false)},
	})
	s := defaultSolver(t, db)

	c, err := s.Evaluate(infer.New(), types.NewGoal(types.Adt("List"), "Send", nil, types.Env{}))
	require.NoError(t, err)
	assert.Equal(t, types.Proven, c)
	// Only the cycle head is cached; everything above it saw a provisional answer.
	assert.True(t, s.cache.Contains("adt:List: Send"))
	assert.False(t, s.cache.Contains("&adt:List: Send"))
}

func TestInductiveCycleFails(t *testing.T) {
	db := newFakeDB().cap(&types.Capability{Name: "Loop"}).impl(&types.ImplDecl{
		ID:       "loop",
		Generics: []string{"T"},
		Cap:      "Loop",
		Self:     types.Param("T"),
		Where:    []types.Predicate{trait("Loop", types.Param("T"))},
	})
	s := defaultSolver(t, db)

	_, err := s.Evaluate(infer.New(), types.NewGoal(types.Int("i32"), "Loop", nil, types.Env{}))
	assert.ErrorIs(t, err, ErrNoSolution)
}

func TestCacheMemoizesAndPurges(t *testing.T) {
	db := displayDB()
	s := defaultSolver(t, db)
	goal := types.NewGoal(types.Int("i32"), "Display", nil, types.Env{})

	_, err := s.Evaluate(infer.New(), goal)
	require.NoError(t, err)
	lookups := db.lookups
	require.True(t, s.cache.Contains("i32: Display"))

	_, err = s.Evaluate(infer.New(), goal)
	require.NoError(t, err)
	assert.Equal(t, lookups, db.lookups, "second evaluation is served from the cache")

	_, err = s.Evaluate(infer.New(), types.NewGoal(types.Char(), "Display", nil, types.Env{}))
	assert.ErrorIs(t, err, ErrNoSolution)
	assert.True(t, s.cache.Contains("char: Display"), "failures are cached")
}

func TestCacheSeparatesAdtFromParamOfSameName(t *testing.T) {
	db := newFakeDB().cap(capDisplay).
		impl(&types.ImplDecl{ID: "display_adt_t", Cap: "Display", Self: types.Adt("T")})
	s := defaultSolver(t, db)

	c, err := s.Evaluate(infer.New(), types.NewGoal(types.Adt("T"), "Display", nil, types.Env{}))
	require.NoError(t, err)
	assert.Equal(t, types.Proven, c)

	_, err = s.Evaluate(infer.New(), types.NewGoal(types.Param("T"), "Display", nil, types.Env{}))
	assert.ErrorIs(t, err, ErrNoSolution)
	assert.Equal(t, 2, s.cache.Len())
}

func TestWithLoggerSharesCache(t *testing.T) {
	s := defaultSolver(t, displayDB())
	quiet := s.WithLogger(zap.NewNop())
	assert.Same(t, s.cache, quiet.cache)

	_, err := quiet.Evaluate(infer.New(), types.NewGoal(types.Bool(), "Display", nil, types.Env{}))
	require.NoError(t, err)
	assert.True(t, s.cache.Contains("bool: Display"))
}

func TestNormalizesToWithTerm(t *testing.T) {
	s := defaultSolver(t, iteratorDB())
	proj := types.Projection(types.Adt("Counter"), "Iterator", "Item")

	c, err := s.Evaluate(infer.New(), types.Goal{Pred: types.NormalizesTo(proj, types.Uint("u32"))})
	require.NoError(t, err)
	assert.Equal(t, types.Proven, c)

	_, err = s.Evaluate(infer.New(), types.Goal{Pred: types.NormalizesTo(proj, types.Bool())})
	assert.ErrorIs(t, err, ErrNoSolution)

	infcx := infer.New()
	v := infcx.NewVar()
	_, err = s.Evaluate(infcx, types.Goal{Pred: types.NormalizesTo(proj, v)})
	require.NoError(t, err)
	assert.True(t, infcx.Resolve(v).Equal(types.Uint("u32")))
}

func builtinDB() *fakeDB {
	return newFakeDB().cap(capSized).cap(capClone).cap(capUnsize).cap(capDisplay).
		cap(&types.Capability{Name: "Copy", Role: types.RoleCopy}).
		cap(&types.Capability{Name: "FnOnce", Role: types.RoleFnOnce, Params: []string{"Args"},
			Items: []types.AssocItem{{Name: "Output"}}}).
		cap(&types.Capability{Name: "Fn", Role: types.RoleFn, Params: []string{"Args"}}).
		cap(&types.Capability{Name: "Pointee", Role: types.RolePointee,
			Items: []types.AssocItem{{Name: "Metadata"}}}).
		cap(&types.Capability{Name: "DiscriminantKind", Role: types.RoleDiscriminantKind,
			Items: []types.AssocItem{{Name: "Discriminant"}}}).
		cap(&types.Capability{Name: "Future", Role: types.RoleFuture,
			Items: []types.AssocItem{{Name: "Output"}}}).
		cap(&types.Capability{Name: "PointerLike", Role: types.RolePointerLike}).
		impl(&types.ImplDecl{ID: "display_i32", Cap: "Display", Self: types.Int("i32")}).
		adt(&types.AdtDecl{Name: "Ordering", Enum: true, Discriminant: types.Int("i8")}).
		adt(&types.AdtDecl{Name: "Wrapper", Generics: []string{"T"}, Fields: []*types.Type{types.Bool(), types.Param("T")}})
}

func TestBuiltinCapabilityGoals(t *testing.T) {
	closure := func(k types.ClosureKind) *types.Type {
		return types.Closure("c", k, []*types.Type{types.Int("i32")}, types.Bool(), nil)
	}
	argsI32 := []*types.Type{types.Tuple(types.Int("i32"))}

	tests := []struct {
		name string
		goal types.Goal
		want types.Certainty
		none bool
	}{
		{"sized tuple", types.NewGoal(types.Tuple(types.Bool(), types.Char()), "Sized", nil, types.Env{}), types.Proven, false},
		{"unsized tail", types.NewGoal(types.Tuple(types.Bool(), types.Str()), "Sized", nil, types.Env{}), 0, true},
		{"sized struct tail", types.NewGoal(types.Adt("Wrapper", types.Slice(types.Bool())), "Sized", nil, types.Env{}), 0, true},
		{"copy shared ref", types.NewGoal(types.Ref(types.Str(), false), "Copy", nil, types.Env{}), types.Proven, false},
		{"copy mut ref", types.NewGoal(types.Ref(types.Str(), true), "Copy", nil, types.Env{}), 0, true},
		{"clone array", types.NewGoal(types.Array(types.Char(), 4), "Clone", nil, types.Env{}), types.Proven, false},
		{"fn closure as fn once", types.NewGoal(closure(types.ClosureFn), "FnOnce", argsI32, types.Env{}), types.Proven, false},
		{"fn once closure as fn", types.NewGoal(closure(types.ClosureFnOnce), "Fn", argsI32, types.Env{}), 0, true},
		{"closure of unknown kind", types.NewGoal(closure(types.ClosureUnknown), "Fn", argsI32, types.Env{}), types.Ambiguous, false},
		{"fn pointer", types.NewGoal(types.FnPtr([]*types.Type{types.Int("i32")}, types.Bool()), "Fn", argsI32, types.Env{}), types.Proven, false},
		{"array to slice", types.NewGoal(types.Array(types.Bool(), 2), "Unsize", []*types.Type{types.Slice(types.Bool())}, types.Env{}), types.Proven, false},
		{"value to object", types.NewGoal(types.Int("i32"), "Unsize", []*types.Type{types.Dynamic(types.Existential{Cap: "Display"})}, types.Env{}), types.Proven, false},
		{"unimplemented object", types.NewGoal(types.Bool(), "Unsize", []*types.Type{types.Dynamic(types.Existential{Cap: "Display"})}, types.Env{}), 0, true},
		{"struct tail unsize", types.NewGoal(types.Adt("Wrapper", types.Array(types.Bool(), 3)), "Unsize", []*types.Type{types.Adt("Wrapper", types.Slice(types.Bool()))}, types.Env{}), types.Proven, false},
		{"pointer like ref", types.NewGoal(types.Ref(types.Bool(), false), "PointerLike", nil, types.Env{}), types.Proven, false},
		{"pointer like tuple", types.NewGoal(types.Tuple(types.Bool(), types.Char()), "PointerLike", nil, types.Env{}), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := defaultSolver(t, builtinDB())
			c, err := s.Evaluate(infer.New(), tt.goal)
			if tt.none {
				assert.ErrorIs(t, err, ErrNoSolution)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c)
		})
	}
}

func TestUnsizeToObjectWithoutSizedCapability(t *testing.T) {
	db := newFakeDB().cap(capUnsize).cap(capDisplay).
		impl(&types.ImplDecl{ID: "display_i32", Cap: "Display", Self: types.Int("i32")})
	s := defaultSolver(t, db)
	obj := types.Dynamic(types.Existential{Cap: "Display"})

	c, err := s.Evaluate(infer.New(), types.NewGoal(types.Int("i32"), "Unsize", []*types.Type{obj}, types.Env{}))
	require.NoError(t, err)
	assert.Equal(t, types.Proven, c)

	_, err = s.Evaluate(infer.New(), types.NewGoal(types.Bool(), "Unsize", []*types.Type{obj}, types.Env{}))
	assert.ErrorIs(t, err, ErrNoSolution, "the object's bounds still apply")
}

func TestBuiltinProjections(t *testing.T) {
	closure := types.Closure("c", types.ClosureFn, []*types.Type{types.Int("i32")}, types.Bool(), nil)
	fut := types.Generator("g", types.GenSig{Async: true, Return: types.Char()}, nil, nil)
	obj := types.Dynamic(types.Existential{Cap: "Display"})

	tests := []struct {
		name  string
		alias *types.Type
		want  *types.Type
	}{
		{"closure output", types.Projection(closure, "FnOnce", "Output", types.Tuple(types.Int("i32"))), types.Bool()},
		{"sized metadata", types.Projection(types.Int("i32"), "Pointee", "Metadata"), types.Unit()},
		{"slice metadata", types.Projection(types.Slice(types.Bool()), "Pointee", "Metadata"), types.Uint("usize")},
		{"object metadata", types.Projection(obj, "Pointee", "Metadata"), types.Adt("DynMetadata", obj)},
		{"enum discriminant", types.Projection(types.Adt("Ordering"), "DiscriminantKind", "Discriminant"), types.Int("i8")},
		{"future output", types.Projection(fut, "Future", "Output"), types.Char()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := defaultSolver(t, builtinDB())
			infcx := infer.New()
			v := infcx.NewVar()
			c, err := s.Evaluate(infcx, types.Goal{Pred: types.NormalizesTo(tt.alias, v)})
			require.NoError(t, err)
			assert.Equal(t, types.Proven, c)
			assert.True(t, infcx.Resolve(v).Equal(tt.want), "got %s", infcx.Resolve(v))
		})
	}
}

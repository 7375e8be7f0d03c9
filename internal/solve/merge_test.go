package solve

import (
	"testing"

	"capsolve/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mergeDB() *fakeDB {
	return newFakeDB().cap(capClone).
		impl(&types.ImplDecl{ID: "plain", Cap: "Clone", Self: types.Bool()}).
		impl(&types.ImplDecl{ID: "reserved", Cap: "Clone", Self: types.Bool(), Polarity: types.PolarityReservation})
}

func cand(o types.Origin, r types.Response) types.Candidate {
	return types.Candidate{Origin: o, Response: r}
}

func TestMergeNoCandidates(t *testing.T) {
	ecx, _ := evalCtxtWithVars(t, defaultSolver(t, mergeDB()), 1)
	_, err := ecx.MergeCandidates(nil)
	assert.ErrorIs(t, err, ErrNoSolution)
}

func TestMergeSingleCandidate(t *testing.T) {
	ecx, _ := evalCtxtWithVars(t, defaultSolver(t, mergeDB()), 1)
	r := types.Response{Certainty: types.Proven, VarValues: []*types.Type{types.Bool()}}

	got, err := ecx.MergeCandidates([]types.Candidate{cand(types.EnvOrigin(0), r)})
	require.NoError(t, err)
	assert.True(t, got.Equal(r))
}

func TestMergeDowngradesReservationImpl(t *testing.T) {
	ecx, _ := evalCtxtWithVars(t, defaultSolver(t, mergeDB()), 1)
	r := types.Response{Certainty: types.Proven, VarValues: []*types.Type{types.Bool()}}

	got, err := ecx.MergeCandidates([]types.Candidate{cand(types.ImplOrigin("reserved"), r)})
	require.NoError(t, err)
	assert.True(t, got.Equal(types.IdentityResponse(types.Ambiguous, 1)), "got %s", got)

	// Among equal responses the last candidate is the one returned.
	got, err = ecx.MergeCandidates([]types.Candidate{
		cand(types.ImplOrigin("plain"), r),
		cand(types.ImplOrigin("reserved"), r),
	})
	require.NoError(t, err)
	assert.Equal(t, types.Ambiguous, got.Certainty)
	assert.False(t, got.HasConstraints())
}

func TestMergeIsIdempotentOnDuplicates(t *testing.T) {
	ecx, _ := evalCtxtWithVars(t, defaultSolver(t, mergeDB()), 1)
	r := types.Response{Certainty: types.Proven, VarValues: []*types.Type{types.Char()}}

	got, err := ecx.MergeCandidates([]types.Candidate{
		cand(types.ImplOrigin("plain"), r),
		cand(types.BuiltinOrigin(), r),
		cand(types.EnvOrigin(3), r),
	})
	require.NoError(t, err)
	assert.True(t, got.Equal(r))
}

func TestMergeDisagreement(t *testing.T) {
	bound := func(c types.Certainty, ty *types.Type) types.Response {
		return types.Response{Certainty: c, VarValues: []*types.Type{ty}}
	}
	tests := []struct {
		name  string
		cands []types.Candidate
		want  types.Certainty
	}{
		{
			name: "different bindings",
			cands: []types.Candidate{
				cand(types.EnvOrigin(0), bound(types.Proven, types.Bool())),
				cand(types.EnvOrigin(1), bound(types.Proven, types.Char())),
			},
			want: types.Ambiguous,
		},
		{
			name: "adt and param of the same name",
			cands: []types.Candidate{
				cand(types.EnvOrigin(0), bound(types.Proven, types.Adt("T"))),
				cand(types.EnvOrigin(1), bound(types.Proven, types.Param("T"))),
			},
			want: types.Ambiguous,
		},
		{
			name: "all overflow",
			cands: []types.Candidate{
				cand(types.BuiltinOrigin(), bound(types.Overflow, types.Bool())),
				cand(types.BuiltinOrigin(), types.IdentityResponse(types.Overflow, 1)),
			},
			want: types.Overflow,
		},
		{
			name: "overflow and proven",
			cands: []types.Candidate{
				cand(types.BuiltinOrigin(), types.IdentityResponse(types.Overflow, 1)),
				cand(types.ImplOrigin("plain"), types.IdentityResponse(types.Proven, 1)),
			},
			want: types.Ambiguous,
		},
		{
			name: "certainty only",
			cands: []types.Candidate{
				cand(types.EnvOrigin(0), types.IdentityResponse(types.Proven, 1)),
				cand(types.EnvOrigin(1), types.IdentityResponse(types.Ambiguous, 1)),
			},
			want: types.Ambiguous,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ecx, _ := evalCtxtWithVars(t, defaultSolver(t, mergeDB()), 1)
			got, err := ecx.MergeCandidates(tt.cands)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Certainty)
			assert.False(t, got.HasConstraints())
			assert.Len(t, got.VarValues, 1)
		})
	}
}

func TestWinnowKeepsEveryCandidate(t *testing.T) {
	ecx, _ := evalCtxtWithVars(t, defaultSolver(t, mergeDB()), 0)
	origins := []types.Origin{
		types.ImplOrigin("plain"), types.BuiltinOrigin(), types.EnvOrigin(0), types.AliasBoundOrigin(0),
	}
	var cands []types.Candidate
	for _, o := range origins {
		cands = append(cands, cand(o, types.IdentityResponse(types.Proven, 0)))
	}
	for _, a := range cands {
		for _, b := range cands {
			assert.False(t, candidateShouldBeDroppedInFavorOf(a, b))
		}
	}
	assert.Len(t, ecx.winnow(cands), len(cands))
}

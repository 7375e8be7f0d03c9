package solve

import (
	"capsolve/internal/types"

	"go.uber.org/zap"
)

// MergeCandidates reduces a candidate list to one canonical response. No candidates is
// ErrNoSolution. Candidates that still disagree after pruning give a response without
// constraints whose certainty is Overflow when every one of them overflowed and Ambiguous
// otherwise. Any winner from a reservation implementation is downgraded.
func (ecx *EvalCtxt) MergeCandidates(candidates []types.Candidate) (types.Response, error) {
	switch len(candidates) {
	case 0:
		ecx.logger.Debug("no candidates")
		return types.Response{}, ErrNoSolution
	case 1:
		return ecx.discardReservationImpl(candidates[0]).Response, nil
	}

	candidates = ecx.winnow(candidates)

	// If there are still several candidates with different responses, give up.
	if len(candidates) > 1 && !allResponsesEqual(candidates) {
		certainty := types.Ambiguous
		if allOverflow(candidates) {
			certainty = types.Overflow
		}
		ecx.logger.Debug("candidates disagree",
			zap.Int("count", len(candidates)),
			zap.Stringer("certainty", certainty))
		return ecx.neutralResponse(certainty), nil
	}

	// TODO: when several candidates share a response and one of them is a reservation
	// impl, only the last one decides whether the result is downgraded.
	return ecx.discardReservationImpl(candidates[len(candidates)-1]).Response, nil
}

// winnow drops every candidate dominated by another, until none is.
func (ecx *EvalCtxt) winnow(candidates []types.Candidate) []types.Candidate {
	candidates = append([]types.Candidate(nil), candidates...)
	i := 0
outer:
	for i < len(candidates) {
		for j := range candidates {
			if i != j && candidateShouldBeDroppedInFavorOf(candidates[i], candidates[j]) {
				ecx.logger.Debug("dropping candidate",
					zap.Int("index", i),
					zap.Int("count", len(candidates)),
					zap.Stringer("candidate", candidates[i]))
				last := len(candidates) - 1
				candidates[i] = candidates[last]
				candidates = candidates[:last]
				continue outer
			}
		}
		ecx.logger.Debug("retaining candidate",
			zap.Int("index", i),
			zap.Int("count", len(candidates)),
			zap.Stringer("candidate", candidates[i]))
		i++
	}
	return candidates
}

// candidateShouldBeDroppedInFavorOf is the domination predicate. No priority between
// origins is defined yet, so nothing is ever dropped.
func candidateShouldBeDroppedInFavorOf(candidate, other types.Candidate) bool {
	switch candidate.Origin.Kind {
	case types.OriginImpl, types.OriginEnv, types.OriginAliasBound, types.OriginBuiltin:
		return false
	}
	return false
}

// discardReservationImpl replaces the response of a candidate from a reservation
// implementation with an ambiguous response carrying no constraints.
func (ecx *EvalCtxt) discardReservationImpl(c types.Candidate) types.Candidate {
	if c.Origin.Kind != types.OriginImpl {
		return c
	}
	impl, ok := ecx.db.Impl(c.Origin.Impl)
	if !ok || impl.Polarity != types.PolarityReservation {
		return c
	}
	ecx.logger.Debug("selected reservation impl", zap.String("impl", impl.ID))
	c.Response = ecx.neutralResponse(types.Ambiguous)
	return c
}

func allResponsesEqual(candidates []types.Candidate) bool {
	for _, c := range candidates[1:] {
		if !c.Response.Equal(candidates[0].Response) {
			return false
		}
	}
	return true
}

func allOverflow(candidates []types.Candidate) bool {
	for _, c := range candidates {
		if c.Response.Certainty != types.Overflow {
			return false
		}
	}
	return true
}

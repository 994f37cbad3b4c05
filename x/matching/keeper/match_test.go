package keeper_test

import (
	"github.com/calctra/resmatch/testutil/sample"
	"github.com/calctra/resmatch/x/matching/types"
)

// TestMatchPreconditionOrder checks that when several preconditions fail the
// earliest one in the documented order is reported.
func (s *KeeperTestSuite) TestMatchPreconditionOrder() {
	stranger := sample.Identity("stranger")

	tests := []struct {
		name    string
		setup   func() (requestID, resourceID uint64)
		caller  types.Identity
		wantErr error
	}{
		{
			name: "unauthorized matcher before not pending",
			setup: func() (uint64, uint64) {
				r := s.registerResource(s.provider, 1, 1, 100, "US")
				q := s.submitRequest(s.requester, 50, 50, 1, "")
				s.Require().NoError(s.keeper.Cancel(s.ctx, q, s.requester))
				return q, r
			},
			caller:  stranger,
			wantErr: types.ErrUnauthorizedMatcher,
		},
		{
			name: "requester is not a matcher",
			setup: func() (uint64, uint64) {
				return s.submitRequest(s.requester, 1, 1, 10, ""), s.registerResource(s.provider, 1, 1, 1, "US")
			},
			caller:  s.requester,
			wantErr: types.ErrUnauthorizedMatcher,
		},
		{
			name: "not pending before inactive",
			setup: func() (uint64, uint64) {
				r := s.registerResource(s.provider, 1, 1, 100, "US")
				s.Require().NoError(s.keeper.SetResourceActive(s.ctx, r, s.provider, false))
				q := s.submitRequest(s.requester, 50, 50, 1, "")
				s.Require().NoError(s.keeper.Cancel(s.ctx, q, s.requester))
				return q, r
			},
			caller:  authority,
			wantErr: types.ErrRequestNotPending,
		},
		{
			name: "inactive before insufficient power",
			setup: func() (uint64, uint64) {
				r := s.registerResource(s.provider, 1, 1, 100, "US")
				s.Require().NoError(s.keeper.SetResourceActive(s.ctx, r, s.provider, false))
				return s.submitRequest(s.requester, 50, 50, 1, ""), r
			},
			caller:  authority,
			wantErr: types.ErrResourceNotActive,
		},
		{
			name: "power before memory",
			setup: func() (uint64, uint64) {
				return s.submitRequest(s.requester, 50, 50, 1, ""), s.registerResource(s.provider, 1, 1, 100, "US")
			},
			caller:  authority,
			wantErr: types.ErrInsufficientComputationPower,
		},
		{
			name: "memory before price",
			setup: func() (uint64, uint64) {
				return s.submitRequest(s.requester, 1, 50, 1, ""), s.registerResource(s.provider, 1, 1, 100, "US")
			},
			caller:  authority,
			wantErr: types.ErrInsufficientMemory,
		},
		{
			name: "price before reputation",
			setup: func() (uint64, uint64) {
				draft := sample.Request(s.requester, 1, 1, 1, "")
				draft.MinReputation = 5
				q, err := s.keeper.SubmitRequest(s.ctx, draft)
				s.Require().NoError(err)
				return q, s.registerResource(s.provider, 1, 1, 100, "US")
			},
			caller:  authority,
			wantErr: types.ErrPriceTooHigh,
		},
		{
			name: "reputation too low",
			setup: func() (uint64, uint64) {
				draft := sample.Request(s.requester, 1, 1, 100, "")
				draft.MinReputation = 5
				q, err := s.keeper.SubmitRequest(s.ctx, draft)
				s.Require().NoError(err)
				return q, s.registerResource(s.provider, 1, 1, 100, "US")
			},
			caller:  authority,
			wantErr: types.ErrReputationTooLow,
		},
		{
			name: "missing gpu",
			setup: func() (uint64, uint64) {
				draft := sample.Request(s.requester, 1, 1, 100, "")
				draft.Spec.GpuMemory = 8
				q, err := s.keeper.SubmitRequest(s.ctx, draft)
				s.Require().NoError(err)
				return q, s.registerResource(s.provider, 1, 1, 100, "US")
			},
			caller:  authority,
			wantErr: types.ErrInsufficientCapability,
		},
		{
			name: "unknown request",
			setup: func() (uint64, uint64) {
				return 999, s.registerResource(s.provider, 1, 1, 1, "US")
			},
			caller:  authority,
			wantErr: types.ErrRequestNotFound,
		},
		{
			name: "unknown resource",
			setup: func() (uint64, uint64) {
				return s.submitRequest(s.requester, 1, 1, 1, ""), 999
			},
			caller:  authority,
			wantErr: types.ErrResourceNotFound,
		},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			requestID, resourceID := tc.setup()
			before, err := s.keeper.GetSystemState(s.ctx)
			s.Require().NoError(err)

			_, err = s.keeper.Match(s.ctx, requestID, resourceID, tc.caller)
			s.Require().ErrorIs(err, tc.wantErr)

			after, err := s.keeper.GetSystemState(s.ctx)
			s.Require().NoError(err)
			s.Require().Equal(before, after)
		})
	}
	s.requireInvariants()
}

func (s *KeeperTestSuite) TestProviderMatchesOwnResource() {
	r := s.registerResource(s.provider, 4, 4, 1, "US")
	other := s.registerResource(sample.Identity("provider"), 4, 4, 1, "US")
	q := s.submitRequest(s.requester, 1, 1, 1, "")

	_, err := s.keeper.Match(s.ctx, q, other, s.provider)
	s.Require().ErrorIs(err, types.ErrUnauthorizedMatcher)

	_, err = s.keeper.Match(s.ctx, q, r, s.provider)
	s.Require().NoError(err)
}

func (s *KeeperTestSuite) TestSingleEngagementPerResource() {
	r := s.registerResource(s.provider, 4, 4, 1, "US")
	q1 := s.submitRequest(s.requester, 1, 1, 1, "")
	q2 := s.submitRequest(s.requester, 1, 1, 1, "")

	_, err := s.keeper.Match(s.ctx, q1, r, authority)
	s.Require().NoError(err)

	_, err = s.keeper.Match(s.ctx, q2, r, authority)
	s.Require().ErrorIs(err, types.ErrResourceEngaged)
	s.requireStatus(q2, types.RequestStatusPending)

	// Releasing the engagement frees the slot.
	_, err = s.keeper.Complete(s.ctx, q1, r, 1, false, authority)
	s.Require().NoError(err)
	_, err = s.keeper.Match(s.ctx, q2, r, authority)
	s.Require().NoError(err)
	s.requireInvariants()
}

func (s *KeeperTestSuite) TestConfigurableEngagementLimit() {
	params := types.DefaultParams()
	params.MaxMatchesPerResource = 2
	s.Require().NoError(s.keeper.UpdateParams(s.ctx, authority, params))

	r := s.registerResource(s.provider, 4, 4, 1, "US")
	for i := 0; i < 2; i++ {
		q := s.submitRequest(s.requester, 1, 1, 1, "")
		_, err := s.keeper.Match(s.ctx, q, r, authority)
		s.Require().NoError(err)
	}

	q := s.submitRequest(s.requester, 1, 1, 1, "")
	_, err := s.keeper.Match(s.ctx, q, r, authority)
	s.Require().ErrorIs(err, types.ErrResourceEngaged)

	res, err := s.keeper.GetResource(s.ctx, r)
	s.Require().NoError(err)
	s.Require().Equal(uint32(2), res.ActiveMatches)
	s.requireActiveMatches(2)
	s.requireInvariants()
}

func (s *KeeperTestSuite) TestLocationPreference() {
	us := s.registerResource(s.provider, 4, 4, 1, "US")

	// A preferred location alone is not a hard constraint.
	q := s.submitRequest(s.requester, 1, 1, 1, "EU")
	_, err := s.keeper.Match(s.ctx, q, us, authority)
	s.Require().NoError(err)
	_, err = s.keeper.Complete(s.ctx, q, us, 1, true, authority)
	s.Require().NoError(err)

	// A strict request must match its location.
	draft := sample.Request(s.requester, 1, 1, 1, "EU")
	draft.StrictLocation = true
	strict, err := s.keeper.SubmitRequest(s.ctx, draft)
	s.Require().NoError(err)
	_, err = s.keeper.Match(s.ctx, strict, us, authority)
	s.Require().ErrorIs(err, types.ErrLocationMismatch)

	// Locations compare case-insensitively.
	draft.PreferredLocation = "us"
	strictUS, err := s.keeper.SubmitRequest(s.ctx, draft)
	s.Require().NoError(err)
	_, err = s.keeper.Match(s.ctx, strictUS, us, authority)
	s.Require().NoError(err)
}

func (s *KeeperTestSuite) TestModuleWideStrictLocation() {
	params := types.DefaultParams()
	params.StrictLocation = true
	s.Require().NoError(s.keeper.UpdateParams(s.ctx, authority, params))

	us := s.registerResource(s.provider, 4, 4, 1, "US")
	q := s.submitRequest(s.requester, 1, 1, 1, "EU")
	_, err := s.keeper.Match(s.ctx, q, us, authority)
	s.Require().ErrorIs(err, types.ErrLocationMismatch)

	// Requests without a preference are unaffected.
	anywhere := s.submitRequest(s.requester, 1, 1, 1, "")
	_, err = s.keeper.Match(s.ctx, anywhere, us, authority)
	s.Require().NoError(err)
}

func (s *KeeperTestSuite) TestFindBestMatch() {
	cheapRemote := s.registerResource(s.provider, 8, 8, 1, "EU")
	local := s.registerResource(s.provider, 8, 8, 5, "US")
	cheapLocal := s.registerResource(s.provider, 8, 8, 1, "US")
	s.registerResource(s.provider, 1, 1, 1, "US")

	q := s.submitRequest(s.requester, 4, 4, 10, "US")
	best, ok, err := s.keeper.FindBestMatch(s.ctx, q)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Require().Equal(cheapLocal, best)

	ranked, err := s.keeper.RankCandidates(s.ctx, q)
	s.Require().NoError(err)
	ids := make([]uint64, len(ranked))
	for i, res := range ranked {
		ids[i] = res.Id
	}
	s.Require().Equal([]uint64{cheapLocal, local, cheapRemote}, ids)

	// Engaged resources leave the candidate pool.
	_, err = s.keeper.Match(s.ctx, q, best, authority)
	s.Require().NoError(err)
	q2 := s.submitRequest(s.requester, 4, 4, 10, "US")
	best, ok, err = s.keeper.FindBestMatch(s.ctx, q2)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Require().Equal(local, best)

	_, _, err = s.keeper.FindBestMatch(s.ctx, q)
	s.Require().ErrorIs(err, types.ErrRequestNotPending)
}

func (s *KeeperTestSuite) TestAutoMatch() {
	q := s.submitRequest(s.requester, 4, 4, 10, "")
	_, err := s.keeper.AutoMatch(s.ctx, q, authority)
	s.Require().ErrorIs(err, types.ErrNoEligibleResource)

	r := s.registerResource(s.provider, 8, 8, 5, "US")
	result, err := s.keeper.AutoMatch(s.ctx, q, authority)
	s.Require().NoError(err)
	s.Require().Equal(r, result.ResourceID)
	s.requireStatus(q, types.RequestStatusMatched)
}

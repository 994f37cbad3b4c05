package keeper_test

import (
	"github.com/calctra/resmatch/x/matching/keeper"
	"github.com/calctra/resmatch/x/matching/types"
)

type unknownMsg struct{}

func (unknownMsg) Type() string              { return "unknown" }
func (unknownMsg) GetSigner() types.Identity { return "someone" }
func (unknownMsg) ValidateBasic() error      { return nil }

func (s *KeeperTestSuite) TestMsgServerLifecycle() {
	server := keeper.NewMsgServerImpl(s.keeper)

	registered, err := server.RegisterResource(s.ctx, &types.MsgRegisterResource{
		Provider:     s.provider,
		ResourceType: "gpu",
		Spec:         types.ComputeSpec{ComputePower: 16, Memory: 64, GpuType: "A100", GpuMemory: 40},
		PricePerUnit: 3,
		Location:     "US",
	})
	s.Require().NoError(err)

	submitted, err := server.SubmitRequest(s.ctx, &types.MsgSubmitRequest{
		Requester:       s.requester,
		ComputationType: "training",
		Spec:            types.ComputeSpec{ComputePower: 8, Memory: 32, GpuType: "a100", GpuMemory: 20},
		MaxPricePerUnit: 5,
	})
	s.Require().NoError(err)

	matched, err := server.AutoMatch(s.ctx, &types.MsgAutoMatch{Matcher: authority, RequestId: submitted.RequestId})
	s.Require().NoError(err)
	s.Require().Equal(registered.ResourceId, matched.ResourceId)
	s.Require().Equal(uint64(1), matched.ActiveMatches)

	_, err = server.StartComputation(s.ctx, &types.MsgStartComputation{Caller: s.provider, RequestId: submitted.RequestId})
	s.Require().NoError(err)

	completed, err := server.CompleteComputation(s.ctx, &types.MsgCompleteComputation{
		Caller:         s.requester,
		RequestId:      submitted.RequestId,
		ResourceId:     registered.ResourceId,
		ActualDuration: 4,
		Success:        true,
	})
	s.Require().NoError(err)
	s.Require().Equal(types.RequestStatusCompleted, completed.Status)
	s.Require().Equal("12", completed.SettledAmount.String())

	_, err = server.UpdateResourcePrice(s.ctx, &types.MsgUpdateResourcePrice{
		Provider: s.provider, ResourceId: registered.ResourceId, PricePerUnit: 9,
	})
	s.Require().NoError(err)
	_, err = server.SetResourceActive(s.ctx, &types.MsgSetResourceActive{
		Provider: s.provider, ResourceId: registered.ResourceId, Active: false,
	})
	s.Require().NoError(err)

	params := types.DefaultParams()
	params.MaxMatchesPerResource = 4
	_, err = server.UpdateParams(s.ctx, &types.MsgUpdateParams{Authority: authority, Params: params})
	s.Require().NoError(err)
}

func (s *KeeperTestSuite) TestMsgServerValidatesBasic() {
	server := keeper.NewMsgServerImpl(s.keeper)

	_, err := server.MatchRequest(s.ctx, &types.MsgMatchRequest{Matcher: authority, RequestId: 0, ResourceId: 1})
	s.Require().ErrorIs(err, types.ErrInvalidMessage)

	_, err = server.CancelRequest(s.ctx, &types.MsgCancelRequest{RequestId: 1})
	s.Require().ErrorIs(err, types.ErrInvalidMessage)

	_, err = server.RegisterResource(s.ctx, &types.MsgRegisterResource{Provider: s.provider})
	s.Require().ErrorIs(err, types.ErrInvalidCapability)

	_, err = server.UpdateParams(s.ctx, &types.MsgUpdateParams{Authority: authority})
	s.Require().ErrorIs(err, types.ErrInvalidParams)

	state, err := s.keeper.GetSystemState(s.ctx)
	s.Require().NoError(err)
	s.Require().Zero(state.ResourceCount)
}

func (s *KeeperTestSuite) TestDispatch() {
	server := keeper.NewMsgServerImpl(s.keeper)

	resp, err := keeper.Dispatch(s.ctx, server, &types.MsgRegisterResource{
		Provider: s.provider, ResourceType: "cpu", Spec: types.ComputeSpec{ComputePower: 4, Memory: 4}, Location: "EU",
	})
	s.Require().NoError(err)
	registered, ok := resp.(*types.MsgRegisterResourceResponse)
	s.Require().True(ok)

	resp, err = keeper.Dispatch(s.ctx, server, &types.MsgSubmitRequest{Requester: s.requester, Spec: types.ComputeSpec{ComputePower: 1}})
	s.Require().NoError(err)
	submitted := resp.(*types.MsgSubmitRequestResponse)

	resp, err = keeper.Dispatch(s.ctx, server, &types.MsgMatchRequest{
		Matcher: s.provider, RequestId: submitted.RequestId, ResourceId: registered.ResourceId,
	})
	s.Require().NoError(err)
	s.Require().IsType(&types.MsgMatchRequestResponse{}, resp)

	_, err = keeper.Dispatch(s.ctx, server, &types.MsgCancelRequest{Caller: s.requester, RequestId: submitted.RequestId})
	s.Require().NoError(err)
	s.requireStatus(submitted.RequestId, types.RequestStatusCancelled)

	_, err = keeper.Dispatch(s.ctx, server, unknownMsg{})
	s.Require().ErrorIs(err, types.ErrInvalidMessage)
}

package keeper

import (
	"context"

	"github.com/calctra/resmatch/x/matching/types"
)

var _ types.MsgServer = msgServer{}

type msgServer struct {
	*Keeper
}

// NewMsgServerImpl returns an implementation of the MsgServer interface
func NewMsgServerImpl(keeper *Keeper) types.MsgServer {
	return &msgServer{Keeper: keeper}
}

// RegisterResource handles the registration of a new resource offer
func (ms msgServer) RegisterResource(ctx context.Context, msg *types.MsgRegisterResource) (*types.MsgRegisterResourceResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}

	id, err := ms.Keeper.RegisterResource(ctx, msg.Provider, msg.ResourceType, msg.Spec, msg.PricePerUnit, msg.Location)
	if err != nil {
		return nil, err
	}
	return &types.MsgRegisterResourceResponse{ResourceId: id}, nil
}

func (ms msgServer) SetResourceActive(ctx context.Context, msg *types.MsgSetResourceActive) (*types.MsgSetResourceActiveResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	if err := ms.Keeper.SetResourceActive(ctx, msg.ResourceId, msg.Provider, msg.Active); err != nil {
		return nil, err
	}
	return &types.MsgSetResourceActiveResponse{}, nil
}

func (ms msgServer) UpdateResourcePrice(ctx context.Context, msg *types.MsgUpdateResourcePrice) (*types.MsgUpdateResourcePriceResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	if err := ms.Keeper.UpdateResourcePrice(ctx, msg.ResourceId, msg.Provider, msg.PricePerUnit); err != nil {
		return nil, err
	}
	return &types.MsgUpdateResourcePriceResponse{}, nil
}

// SubmitRequest handles a new computation request
func (ms msgServer) SubmitRequest(ctx context.Context, msg *types.MsgSubmitRequest) (*types.MsgSubmitRequestResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}

	id, err := ms.Keeper.SubmitRequest(ctx, msg.ToRequest())
	if err != nil {
		return nil, err
	}
	return &types.MsgSubmitRequestResponse{RequestId: id}, nil
}

// MatchRequest binds a pending request to the named resource
func (ms msgServer) MatchRequest(ctx context.Context, msg *types.MsgMatchRequest) (*types.MsgMatchRequestResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}

	result, err := ms.Keeper.Match(ctx, msg.RequestId, msg.ResourceId, msg.Matcher)
	if err != nil {
		return nil, err
	}
	return matchResponse(result), nil
}

// AutoMatch binds a pending request to its best candidate
func (ms msgServer) AutoMatch(ctx context.Context, msg *types.MsgAutoMatch) (*types.MsgMatchRequestResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}

	result, err := ms.Keeper.AutoMatch(ctx, msg.RequestId, msg.Matcher)
	if err != nil {
		return nil, err
	}
	return matchResponse(result), nil
}

func matchResponse(result MatchResult) *types.MsgMatchRequestResponse {
	return &types.MsgMatchRequestResponse{
		RequestId:     result.RequestID,
		ResourceId:    result.ResourceID,
		ActiveMatches: result.ActiveMatches,
	}
}

func (ms msgServer) StartComputation(ctx context.Context, msg *types.MsgStartComputation) (*types.MsgStartComputationResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	if err := ms.Keeper.Start(ctx, msg.RequestId, msg.Caller); err != nil {
		return nil, err
	}
	return &types.MsgStartComputationResponse{}, nil
}

// CompleteComputation reports the outcome of an engaged request
func (ms msgServer) CompleteComputation(ctx context.Context, msg *types.MsgCompleteComputation) (*types.MsgCompleteComputationResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}

	result, err := ms.Keeper.Complete(ctx, msg.RequestId, msg.ResourceId, msg.ActualDuration, msg.Success, msg.Caller)
	if err != nil {
		return nil, err
	}
	return &types.MsgCompleteComputationResponse{
		Status:         result.Status,
		Reputation:     result.Reputation,
		TotalUsageTime: result.TotalUsageTime,
		SettledAmount:  result.SettledAmount,
	}, nil
}

func (ms msgServer) CancelRequest(ctx context.Context, msg *types.MsgCancelRequest) (*types.MsgCancelRequestResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	if err := ms.Keeper.Cancel(ctx, msg.RequestId, msg.Caller); err != nil {
		return nil, err
	}
	return &types.MsgCancelRequestResponse{}, nil
}

// UpdateParams handles a parameter change by the authority
func (ms msgServer) UpdateParams(ctx context.Context, msg *types.MsgUpdateParams) (*types.MsgUpdateParamsResponse, error) {
	if err := msg.ValidateBasic(); err != nil {
		return nil, err
	}
	if err := ms.Keeper.UpdateParams(ctx, msg.Authority, msg.Params); err != nil {
		return nil, err
	}
	return &types.MsgUpdateParamsResponse{}, nil
}

// Dispatch routes msg to its handler and returns the handler's response.
func Dispatch(ctx context.Context, server types.MsgServer, msg types.Msg) (any, error) {
	switch m := msg.(type) {
	case *types.MsgRegisterResource:
		return server.RegisterResource(ctx, m)
	case *types.MsgSetResourceActive:
		return server.SetResourceActive(ctx, m)
	case *types.MsgUpdateResourcePrice:
		return server.UpdateResourcePrice(ctx, m)
	case *types.MsgSubmitRequest:
		return server.SubmitRequest(ctx, m)
	case *types.MsgMatchRequest:
		return server.MatchRequest(ctx, m)
	case *types.MsgAutoMatch:
		return server.AutoMatch(ctx, m)
	case *types.MsgStartComputation:
		return server.StartComputation(ctx, m)
	case *types.MsgCompleteComputation:
		return server.CompleteComputation(ctx, m)
	case *types.MsgCancelRequest:
		return server.CancelRequest(ctx, m)
	case *types.MsgUpdateParams:
		return server.UpdateParams(ctx, m)
	default:
		return nil, types.ErrInvalidMessage.Wrapf("unrecognized %s message type: %T", types.ModuleName, msg)
	}
}

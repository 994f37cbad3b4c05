package types_test

import (
	"fmt"
	"testing"

	sdkerrors "cosmossdk.io/errors"
	"github.com/stretchr/testify/require"

	"github.com/calctra/resmatch/x/matching/types"
)

func TestErrorCodesAreDistinct(t *testing.T) {
	codes := make(map[uint32]string)
	for sentinel := range types.RecoverySuggestions {
		coded, ok := sentinel.(*sdkerrors.Error)
		require.True(t, ok, "%v is not a registered error", sentinel)
		require.Equal(t, types.ModuleName, coded.Codespace())

		if prev, dup := codes[coded.ABCICode()]; dup {
			t.Fatalf("code %d shared by %q and %q", coded.ABCICode(), prev, coded.Error())
		}
		codes[coded.ABCICode()] = coded.Error()
	}
}

func TestRecoverySuggestions(t *testing.T) {
	err := types.WrapWithRecovery(types.ErrResourceEngaged, "resource %d", 4)
	require.ErrorIs(t, err, types.ErrResourceEngaged)

	var withRecovery *types.ErrorWithRecovery
	require.ErrorAs(t, err, &withRecovery)
	require.Equal(t, types.RecoverySuggestions[types.ErrResourceEngaged], withRecovery.Recovery)

	wrapped := fmt.Errorf("match: %w", types.ErrPriceTooHigh.Wrap("price 9 exceeds max 5"))
	require.Equal(t, types.RecoverySuggestions[types.ErrPriceTooHigh], types.GetRecoverySuggestion(wrapped))

	require.Contains(t, types.GetRecoverySuggestion(fmt.Errorf("plain")), "No recovery suggestion")
}

func TestMsgValidateBasic(t *testing.T) {
	require.ErrorIs(t, (&types.MsgMatchRequest{Matcher: "a", RequestId: 1}).ValidateBasic(), types.ErrInvalidMessage)
	require.NoError(t, (&types.MsgMatchRequest{Matcher: "a", RequestId: 1, ResourceId: 2}).ValidateBasic())
	require.ErrorIs(t, (&types.MsgCompleteComputation{Caller: "", RequestId: 1, ResourceId: 1}).ValidateBasic(), types.ErrInvalidMessage)
	require.ErrorIs(t, (&types.MsgSubmitRequest{Requester: "r", StrictLocation: true}).ValidateBasic(), types.ErrInvalidCapability)

	msg := &types.MsgSubmitRequest{Requester: "r", MaxPricePerUnit: 4, PreferredLocation: "EU"}
	req := msg.ToRequest()
	require.Equal(t, types.RequestStatusPending, req.Status)
	require.Equal(t, types.Identity("r"), msg.GetSigner())
}

func TestJoinErrors(t *testing.T) {
	err := types.JoinErrors(
		types.ErrRequestNotPending.Wrapf("request %d is %s", 1, types.RequestStatusCancelled),
		types.ValidateTransition(types.RequestStatusCancelled, types.RequestStatusMatched),
	)
	require.ErrorIs(t, err, types.ErrRequestNotPending)
	require.ErrorIs(t, err, types.ErrInvalidStateTransition)
	require.Equal(t,
		"request 1 is CANCELLED: request is not in pending status: CANCELLED -> MATCHED: invalid request state transition",
		err.Error())

	var coded *sdkerrors.Error
	require.ErrorAs(t, err, &coded)
	require.Equal(t, types.ErrRequestNotPending.ABCICode(), coded.ABCICode())

	require.NoError(t, types.JoinErrors(nil, nil))
	require.Same(t, types.ErrPriceTooHigh, types.JoinErrors(nil, types.ErrPriceTooHigh))
}

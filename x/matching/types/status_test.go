package types_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calctra/resmatch/x/matching/types"
)

var allStatuses = []types.RequestStatus{
	types.RequestStatusPending,
	types.RequestStatusMatched,
	types.RequestStatusInProgress,
	types.RequestStatusCompleted,
	types.RequestStatusFailed,
	types.RequestStatusCancelled,
}

func TestTransitions(t *testing.T) {
	allowed := map[types.RequestStatus][]types.RequestStatus{
		types.RequestStatusPending:    {types.RequestStatusMatched, types.RequestStatusCancelled},
		types.RequestStatusMatched:    {types.RequestStatusInProgress, types.RequestStatusCompleted, types.RequestStatusFailed, types.RequestStatusCancelled},
		types.RequestStatusInProgress: {types.RequestStatusCompleted, types.RequestStatusFailed, types.RequestStatusCancelled},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := false
			for _, next := range allowed[from] {
				if next == to {
					want = true
				}
			}
			err := types.ValidateTransition(from, to)
			if want {
				require.NoError(t, err, "%s -> %s", from, to)
			} else {
				require.ErrorIs(t, err, types.ErrInvalidStateTransition, "%s -> %s", from, to)
			}
		}
	}
}

func TestTerminalAndEngaged(t *testing.T) {
	for _, s := range allStatuses {
		switch s {
		case types.RequestStatusCompleted, types.RequestStatusFailed, types.RequestStatusCancelled:
			require.True(t, s.IsTerminal(), s.String())
			require.False(t, s.IsEngaged(), s.String())
		case types.RequestStatusMatched, types.RequestStatusInProgress:
			require.True(t, s.IsEngaged(), s.String())
			require.False(t, s.IsTerminal(), s.String())
		default:
			require.False(t, s.IsEngaged(), s.String())
			require.False(t, s.IsTerminal(), s.String())
		}
	}
	require.False(t, types.RequestStatusUnspecified.IsValid())
}

func TestStatusNames(t *testing.T) {
	for _, s := range allStatuses {
		parsed, err := types.ParseRequestStatus(s.String())
		require.NoError(t, err)
		require.Equal(t, s, parsed)

		bz, err := json.Marshal(s)
		require.NoError(t, err)
		var decoded types.RequestStatus
		require.NoError(t, json.Unmarshal(bz, &decoded))
		require.Equal(t, s, decoded)
	}

	parsed, err := types.ParseRequestStatus(" in_progress ")
	require.NoError(t, err)
	require.Equal(t, types.RequestStatusInProgress, parsed)

	_, err = types.ParseRequestStatus("unspecified")
	require.Error(t, err)
	_, err = types.ParseRequestStatus("running")
	require.Error(t, err)
}

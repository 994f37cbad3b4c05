package types_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calctra/resmatch/x/matching/types"
)

func TestNewEvent(t *testing.T) {
	ev := types.NewEvent(types.EventTypeRequestMatched,
		types.AttributeKeyRequestID, "1",
		types.AttributeKeyResourceID, "2",
	)
	require.Equal(t, types.EventTypeRequestMatched, ev.Type)
	require.NotEmpty(t, ev.ID)

	v, ok := ev.Attribute(types.AttributeKeyResourceID)
	require.True(t, ok)
	require.Equal(t, "2", v)

	_, ok = ev.Attribute(types.AttributeKeyAmount)
	require.False(t, ok)
}

func TestEventBufferKeepsMostRecent(t *testing.T) {
	buf := types.NewEventBuffer(3)
	require.Empty(t, buf.Recent(0))

	for i := 0; i < 5; i++ {
		buf.Emit(context.Background(), types.NewEvent(fmt.Sprintf("e%d", i)))
	}

	var kinds []string
	for _, ev := range buf.Recent(0) {
		kinds = append(kinds, ev.Type)
	}
	require.Equal(t, []string{"e2", "e3", "e4"}, kinds)

	last := buf.Recent(1)
	require.Len(t, last, 1)
	require.Equal(t, "e4", last[0].Type)
}

func TestMultiSink(t *testing.T) {
	a, b := types.NewEventBuffer(4), types.NewEventBuffer(4)
	sink := types.MultiSink{a, nil, b}
	sink.Emit(context.Background(), types.NewEvent("x"))

	require.Len(t, a.Recent(0), 1)
	require.Len(t, b.Recent(0), 1)
}

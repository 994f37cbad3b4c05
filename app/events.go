package app

import (
	"context"

	"cosmossdk.io/log"

	"github.com/calctra/resmatch/x/matching/types"
)

// LoggingEventSink writes every matching event to the logger. Consistency
// faults are logged at error level, everything else at info.
type LoggingEventSink struct {
	logger log.Logger
}

var _ types.EventSink = LoggingEventSink{}

func NewLoggingEventSink(logger log.Logger) LoggingEventSink {
	return LoggingEventSink{logger: logger.With("module", "events")}
}

// Emit implements types.EventSink.
func (s LoggingEventSink) Emit(_ context.Context, ev types.Event) {
	kv := make([]any, 0, 4+2*len(ev.Attributes))
	kv = append(kv, "event_id", ev.ID, "type", ev.Type)
	for _, attr := range ev.Attributes {
		kv = append(kv, attr.Key, attr.Value)
	}

	if ev.Type == types.EventTypeConsistencyFault {
		s.logger.Error("matching event", kv...)
		return
	}
	s.logger.Info("matching event", kv...)
}

package registry

import (
	"encoding/json"
	"log/slog"

	"github.com/pluggable-systems/plugin-registry-backend/interfaces"
)

// SlogSink writes every registry event as a structured log record. It is the
// default observer surface when no external event pipeline is wired in.
type SlogSink struct {
	log *slog.Logger
}

// NewSlogSink creates an event sink logging through the given logger.
func NewSlogSink(log *slog.Logger) *SlogSink {
	return &SlogSink{log: log}
}

// Publish implements interfaces.EventSink.
func (s *SlogSink) Publish(event interfaces.Event) {
	encoded, err := json.Marshal(event)
	if err != nil {
		s.log.Warn("Failed to encode event", slog.String("event", event.EventName()), "err", err)
		return
	}
	s.log.Info("Registry event",
		slog.String("event", event.EventName()),
		slog.String("payload", string(encoded)))
}

// MultiSink fans events out to several sinks.
type MultiSink []interfaces.EventSink

// Publish implements interfaces.EventSink.
func (m MultiSink) Publish(event interfaces.Event) {
	for _, sink := range m {
		sink.Publish(event)
	}
}

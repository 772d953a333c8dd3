package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

// LogSink writes notifications to the structured log
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, n Notification) error {
	s.logger.Info().
		Str("recipient", n.Recipient).
		Str("template", string(n.Template)).
		Interface("payload", n.Payload).
		Msg("Notification")
	return nil
}

// Publisher pushes a payload to live subscribers of a topic
type Publisher interface {
	Publish(topic string, payload []byte) bool
}

// HubSink pushes notifications to connected websocket clients
type HubSink struct {
	hub Publisher
}

func NewHubSink(hub Publisher) *HubSink {
	return &HubSink{hub: hub}
}

func (s *HubSink) Name() string { return "websocket" }

func (s *HubSink) Send(_ context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	if !s.hub.Publish(n.Recipient, body) {
		return fmt.Errorf("websocket hub saturated")
	}
	return nil
}

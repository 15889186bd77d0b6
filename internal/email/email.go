// Package email defines the transactional email boundary. The server
// only ever talks to the Sender interface; swapping in a hosted
// provider is a wiring change.
package email

import (
	"context"

	"github.com/rs/zerolog"
)

// Sender dispatches transactional email.
type Sender interface {
	SendWelcome(ctx context.Context, to, name string) error
}

// LogSender records outbound email instead of sending it. Used in
// development and tests.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a Sender that only logs.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendWelcome logs the welcome email that would have been sent.
func (s *LogSender) SendWelcome(_ context.Context, to, name string) error {
	s.logger.Info().
		Str("to", to).
		Str("name", name).
		Msg("welcome email dispatched")
	return nil
}

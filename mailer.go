package kalam

import (
	"context"

	"github.com/rs/zerolog"
)

// Mailer delivers notifications for contact messages and newsletter signups.
type Mailer interface {
	SendContact(ctx context.Context, m ContactMessage) error
	SendWelcome(ctx context.Context, s Subscriber) error
}

// LogMailer only logs what it would send.
type LogMailer struct {
	log zerolog.Logger
}

// NewLogMailer returns a Mailer that writes each message to log.
func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendContact(_ context.Context, msg ContactMessage) error {
	m.log.Info().
		Str("from", msg.Email).
		Str("name", msg.Name).
		Str("subject", msg.Subject).
		Int("length", len(msg.Message)).
		Msg("contact message (simulated delivery)")
	return nil
}

func (m *LogMailer) SendWelcome(_ context.Context, s Subscriber) error {
	m.log.Info().
		Str("to", s.Email).
		Str("source", s.Source).
		Msg("newsletter welcome (simulated delivery)")
	return nil
}

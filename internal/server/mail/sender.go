// Package mail renders and dispatches account notification emails.
package mail

import (
	"context"

	"github.com/dmitrijs2005/gatekeeper/internal/logging"
)

type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	from   string
	logger logging.Logger
}

func NewLogSender(from string, logger logging.Logger) *LogSender {
	return &LogSender{from: from, logger: logger}
}

func (s *LogSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	s.logger.Info(ctx, "mail not delivered, log sender in use",
		"from", s.from, "to", to, "subject", subject, "body_bytes", len(htmlBody))
	return nil
}

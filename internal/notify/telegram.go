// Package notify sends the maintainer a one-message summary of each run
// over Telegram. Entirely optional: without a configured token the
// notifier is nil and every method is a no-op, so call sites never need to
// branch on whether notification is enabled.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// Summary is what the maintainer sees about a finished run.
type Summary struct {
	ReportRows  int
	Notices     int
	Escalations int
	Duration    time.Duration
	Err         error
}

// Notifier posts run summaries to one chat. A nil *Notifier is valid and
// silently does nothing.
type Notifier struct {
	bot    *telego.Bot
	chatID int64
}

// New creates a notifier, or nil when token is empty.
func New(token string, chatID int64) (*Notifier, error) {
	if token == "" {
		return nil, nil
	}
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: chatID}, nil
}

// SendRunSummary posts the summary. Failures are logged, never fatal: the
// audit result does not depend on the courtesy message.
func (n *Notifier) SendRunSummary(ctx context.Context, s Summary) {
	if n == nil {
		return
	}

	text := fmt.Sprintf(
		"rights-audit run finished in %s\nreport rows: %d\nnotices: %d\nescalations: %d",
		s.Duration.Round(time.Second), s.ReportRows, s.Notices, s.Escalations,
	)
	if s.Err != nil {
		text = fmt.Sprintf("rights-audit run FAILED after %s\n%v",
			s.Duration.Round(time.Second), s.Err)
	}

	_, err := n.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: n.chatID},
		Text:   text,
	})
	if err != nil {
		log.WithError(err).Warn("Failed to send run summary")
	}
}

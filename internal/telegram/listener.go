package telegram

import (
	"context"
	"log/slog"
	"time"
)

const (
	pollTimeoutSec = 50
	errorBackoff   = 5 * time.Second
)

// Listener long-polls one bot's updates and feeds them to its handler.
type Listener struct {
	bot     string
	client  *Client
	handler *Handler
}

// NewListener creates a listener for one persona.
func NewListener(bot string, client *Client, handler *Handler) *Listener {
	return &Listener{bot: bot, client: client, handler: handler}
}

// Run polls until the context is cancelled. Transient API errors back off and
// retry; the offset only advances past updates that were handed off.
func (l *Listener) Run(ctx context.Context) error {
	me, err := l.client.GetMe(ctx)
	if err != nil {
		return err
	}
	slog.Info("telegram listener started", "bot", l.bot, "username", me.Username)

	var offset int64
	for {
		if ctx.Err() != nil {
			slog.Info("telegram listener stopped", "bot", l.bot)
			return nil
		}

		updates, err := l.client.GetUpdates(ctx, offset, pollTimeoutSec)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("telegram listener stopped", "bot", l.bot)
				return nil
			}
			slog.Warn("polling updates", "bot", l.bot, "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(errorBackoff):
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.Message == nil {
				continue
			}
			l.handler.Handle(ctx, u.Message)
		}
	}
}

package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rodpglo1956/GloJohnStocky/internal/anthropic"
	"github.com/rodpglo1956/GloJohnStocky/internal/storage"
)

// MailboxTools exposes the inter-bot mailbox. peers lists the other bot names
// this bot may address.
func MailboxTools(store *storage.Store, peers []string) []Definition {
	return []Definition{
		{
			Spec: anthropic.Tool{
				Name:        "send_bot_message",
				Description: "Send a message to another bot's mailbox. The recipient sees it the next time it checks.",
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"to":      enumProp("Recipient bot.", peers...),
					"body":    strProp("Message body."),
					"context": strProp("Optional context: why the message is being sent."),
				}, "to", "body"),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				to, err := requireString(input, "to")
				if err != nil {
					return "", err
				}
				if !contains(peers, to) {
					return "", fmt.Errorf("unknown bot %q, valid recipients: %s", to, strings.Join(peers, ", "))
				}
				body, err := requireString(input, "body")
				if err != nil {
					return "", err
				}
				m := storage.BotMessage{
					ID:        uuid.NewString(),
					FromBot:   caller.Bot,
					ToBot:     to,
					Body:      body,
					Context:   stringArg(input, "context"),
					CreatedAt: time.Now(),
				}
				if err := store.SendBotMessage(m); err != nil {
					return "", fmt.Errorf("sending message: %w", err)
				}
				return fmt.Sprintf("Message delivered to %s.", to), nil
			},
		},
		{
			Spec: anthropic.Tool{
				Name:        "check_bot_messages",
				Description: "Fetch unread messages from other bots. Each message is delivered exactly once.",
				InputSchema: objSchema(nil),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				msgs, err := store.FetchUnread(caller.Bot)
				if err != nil {
					return "", fmt.Errorf("fetching messages: %w", err)
				}
				if len(msgs) == 0 {
					return "No new messages.", nil
				}
				var b strings.Builder
				for _, m := range msgs {
					fmt.Fprintf(&b, "From %s at %s:\n%s\n", m.FromBot, m.CreatedAt.Format(time.RFC3339), m.Body)
					if m.Context != "" {
						fmt.Fprintf(&b, "(context: %s)\n", m.Context)
					}
					b.WriteByte('\n')
				}
				return strings.TrimRight(b.String(), "\n"), nil
			},
		},
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

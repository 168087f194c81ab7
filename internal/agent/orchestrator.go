// Package agent runs the model loop: it sends conversation history and the
// tool catalog to the model, executes requested tools, and feeds results back
// until the model produces a final reply.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rodpglo1956/GloJohnStocky/internal/anthropic"
	"github.com/rodpglo1956/GloJohnStocky/internal/storage"
	"github.com/rodpglo1956/GloJohnStocky/internal/tools"
)

const (
	// historyWindow is how many stored turns are loaded per request.
	historyWindow = 40

	// loopCeiling bounds tool-use round trips within a single user turn.
	loopCeiling = 15

	defaultMaxTokens = 4096

	degradedReply = "I ran out of steam before finishing that. Could you break the request into smaller steps?"
)

// LLM is the model surface the orchestrator needs. *anthropic.Client
// satisfies it; tests substitute a scripted fake.
type LLM interface {
	Messages(ctx context.Context, req anthropic.MessagesRequest) (*anthropic.MessagesResponse, error)
}

// Orchestrator drives one bot persona's conversations.
type Orchestrator struct {
	bot      string
	llm      LLM
	registry *tools.Registry
	store    *storage.Store
	model    string
	system   string
}

// New creates an orchestrator for one bot. model is the process-wide default;
// individual chats may override it via chat settings.
func New(bot string, llm LLM, registry *tools.Registry, store *storage.Store, model string) *Orchestrator {
	return &Orchestrator{
		bot:      bot,
		llm:      llm,
		registry: registry,
		store:    store,
		model:    model,
		system:   SystemPrompt(bot),
	}
}

// Bot returns the persona name.
func (o *Orchestrator) Bot() string { return o.bot }

// Respond handles one inbound user message and returns the final reply text.
// Exactly two turns are persisted per call: the inbound user message and the
// final assistant text. Intermediate tool traffic stays in memory.
func (o *Orchestrator) Respond(ctx context.Context, chatID int64, userContent []anthropic.ContentBlock) (string, error) {
	if err := o.appendTurn(chatID, anthropic.RoleUser, userContent); err != nil {
		return "", fmt.Errorf("persisting user turn: %w", err)
	}

	messages, err := o.loadHistory(chatID)
	if err != nil {
		return "", fmt.Errorf("loading history: %w", err)
	}

	reply, err := o.runLoop(ctx, chatID, messages, true)
	if err != nil {
		return "", err
	}

	if err := o.appendTurn(chatID, anthropic.RoleAssistant, []anthropic.ContentBlock{anthropic.TextBlock(reply)}); err != nil {
		return "", fmt.Errorf("persisting assistant turn: %w", err)
	}
	return reply, nil
}

// OneShot runs a single prompt through the tool loop without touching stored
// history. Used by the task poller for research runs.
func (o *Orchestrator) OneShot(ctx context.Context, chatID int64, prompt string) (string, error) {
	return o.runLoop(ctx, chatID, []anthropic.Message{anthropic.UserText(prompt)}, false)
}

// runLoop is the tool-use state machine. allowRepair permits one recovery
// attempt when the API rejects the accumulated history as malformed.
func (o *Orchestrator) runLoop(ctx context.Context, chatID int64, messages []anthropic.Message, allowRepair bool) (string, error) {
	model, err := o.store.ChatModel(o.bot, chatID)
	if err != nil {
		return "", fmt.Errorf("reading chat model: %w", err)
	}
	if model == "" {
		model = o.model
	}

	repaired := false
	for round := 0; round < loopCeiling; round++ {
		resp, err := o.llm.Messages(ctx, anthropic.MessagesRequest{
			Model:     model,
			MaxTokens: defaultMaxTokens,
			System:    o.system,
			Tools:     o.registry.Catalog(),
			Messages:  messages,
		})
		if err != nil {
			if allowRepair && !repaired && anthropic.IsInvalidRequest(err) {
				// Stored history the API refuses to accept is unrecoverable;
				// drop it and retry with only the newest user message.
				slog.Warn("model rejected history, clearing it", "bot", o.bot, "chat_id", chatID, "error", err)
				messages, err = o.repairHistory(chatID, messages)
				if err != nil {
					return "", err
				}
				repaired = true
				round--
				continue
			}
			return "", fmt.Errorf("calling model: %w", err)
		}

		if resp.StopReason == anthropic.StopToolUse {
			uses := resp.ToolUses()
			if len(uses) == 0 {
				return "", fmt.Errorf("model stopped for tool use but requested no tools")
			}
			messages = append(messages, anthropic.Message{Role: anthropic.RoleAssistant, Content: resp.Content})

			// All results travel back in one user message, preserving
			// invocation order.
			results := make([]anthropic.ContentBlock, 0, len(uses))
			for _, use := range uses {
				res := o.registry.Execute(ctx, tools.Caller{Bot: o.bot, ChatID: chatID}, use.Name, use.Input)
				results = append(results, anthropic.ToolResultBlock(use.ID, res.Content, res.IsError))
			}
			messages = append(messages, anthropic.Message{Role: anthropic.RoleUser, Content: results})
			continue
		}

		text := resp.TextContent()
		if text == "" {
			// The model occasionally ends a tool-heavy turn with no text at
			// all. One explicit nudge recovers the reply in practice.
			messages = append(messages, anthropic.Message{Role: anthropic.RoleAssistant, Content: resp.Content})
			messages = append(messages, anthropic.UserText("Please summarize what you found for the user."))
			summary, err := o.llm.Messages(ctx, anthropic.MessagesRequest{
				Model:     model,
				MaxTokens: defaultMaxTokens,
				System:    o.system,
				Messages:  messages,
			})
			if err != nil {
				return "", fmt.Errorf("recovering empty reply: %w", err)
			}
			if text = summary.TextContent(); text == "" {
				return "", fmt.Errorf("model returned no text after summary nudge")
			}
		}
		return text, nil
	}

	slog.Warn("tool loop hit ceiling", "bot", o.bot, "chat_id", chatID, "ceiling", loopCeiling)
	return degradedReply, nil
}

// repairHistory clears stored turns and re-persists the newest user message so
// the conversation can continue from a clean slate.
func (o *Orchestrator) repairHistory(chatID int64, messages []anthropic.Message) ([]anthropic.Message, error) {
	if err := o.store.ClearTurns(o.bot, chatID); err != nil {
		return nil, fmt.Errorf("clearing history: %w", err)
	}

	var last anthropic.Message
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == anthropic.RoleUser {
			last = messages[i]
			break
		}
	}
	if last.Role == "" {
		return nil, fmt.Errorf("no user message to retry with")
	}

	if err := o.appendTurn(chatID, anthropic.RoleUser, last.Content); err != nil {
		return nil, fmt.Errorf("re-persisting user turn: %w", err)
	}
	return []anthropic.Message{last}, nil
}

// loadHistory builds the message list from stored turns, dropping anything
// unparsable and merging adjacent same-role turns so roles strictly alternate.
func (o *Orchestrator) loadHistory(chatID int64) ([]anthropic.Message, error) {
	turns, err := o.store.RecentTurns(o.bot, chatID, historyWindow)
	if err != nil {
		return nil, err
	}

	var messages []anthropic.Message
	for _, t := range turns {
		var content []anthropic.ContentBlock
		if err := json.Unmarshal([]byte(t.ContentJSON), &content); err != nil || len(content) == 0 {
			slog.Warn("dropping unreadable turn", "bot", o.bot, "chat_id", chatID, "turn", t.ID)
			continue
		}
		if len(messages) > 0 && messages[len(messages)-1].Role == t.Role {
			last := &messages[len(messages)-1]
			last.Content = append(last.Content, content...)
			continue
		}
		messages = append(messages, anthropic.Message{Role: t.Role, Content: content})
	}

	// The API requires the conversation to open with a user message.
	for len(messages) > 0 && messages[0].Role != anthropic.RoleUser {
		messages = messages[1:]
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("history is empty after sanitizing")
	}
	return messages, nil
}

func (o *Orchestrator) appendTurn(chatID int64, role string, content []anthropic.ContentBlock) error {
	data, err := json.Marshal(content)
	if err != nil {
		return err
	}
	return o.store.AppendTurn(storage.Turn{
		ID:          uuid.NewString(),
		Bot:         o.bot,
		ChatID:      chatID,
		Role:        role,
		ContentJSON: string(data),
		CreatedAt:   time.Now(),
	})
}

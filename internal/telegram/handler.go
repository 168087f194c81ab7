package telegram

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rodpglo1956/GloJohnStocky/internal/agent"
	"github.com/rodpglo1956/GloJohnStocky/internal/anthropic"
	"github.com/rodpglo1956/GloJohnStocky/internal/statement"
	"github.com/rodpglo1956/GloJohnStocky/internal/storage"
	"github.com/rodpglo1956/GloJohnStocky/internal/tools"
)

// Responder runs one inbound message through the model loop.
// *agent.Orchestrator satisfies it.
type Responder interface {
	Respond(ctx context.Context, chatID int64, content []anthropic.ContentBlock) (string, error)
}

// Sender is the outbound half of the bot API client used by the handler.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// Handler routes one persona's inbound messages: slash commands are answered
// directly from storage, everything else goes through the model loop.
type Handler struct {
	bot       string
	client    Sender
	responder Responder
	store     *storage.Store
	registry  *tools.Registry
	model     string
}

// NewHandler creates a message handler for one persona.
func NewHandler(bot string, client Sender, responder Responder, store *storage.Store, registry *tools.Registry, defaultModel string) *Handler {
	return &Handler{
		bot:       bot,
		client:    client,
		responder: responder,
		store:     store,
		registry:  registry,
		model:     defaultModel,
	}
}

// Handle processes one inbound message and sends the reply.
func (h *Handler) Handle(ctx context.Context, msg *Message) {
	if msg == nil {
		return
	}
	chatID := msg.Chat.ID

	reply, err := h.dispatch(ctx, msg)
	if err != nil {
		slog.Error("handling message", "bot", h.bot, "chat_id", chatID, "error", err)
		reply = errorReply(err)
	}
	if reply == "" {
		return
	}
	if err := h.client.SendMessage(ctx, chatID, reply); err != nil {
		slog.Error("sending reply", "bot", h.bot, "chat_id", chatID, "error", err)
	}
}

// errorReply picks the user-facing text for a failed dispatch. Transient
// upstream failures (rate limits, 5xx, timeouts) get a retry suggestion;
// everything else stays generic.
func errorReply(err error) string {
	if anthropic.IsRetryable(err) {
		return "My model service is briefly unavailable. Please try again shortly."
	}
	return "Something went wrong on my side. Please try again."
}

func (h *Handler) dispatch(ctx context.Context, msg *Message) (string, error) {
	chatID := msg.Chat.ID

	switch {
	case msg.Voice != nil:
		return "I can't listen to voice messages yet. Could you type that out?", nil

	case msg.Document != nil:
		return h.handleDocument(ctx, msg)

	case len(msg.Photo) > 0:
		return h.handlePhoto(ctx, msg)

	case strings.HasPrefix(msg.Text, "/"):
		return h.handleCommand(ctx, chatID, msg.Text)

	case msg.Text != "":
		return h.respond(ctx, chatID, []anthropic.ContentBlock{anthropic.TextBlock(msg.Text)})
	}

	return "", nil
}

// respond shows a typing indicator while the model loop runs.
func (h *Handler) respond(ctx context.Context, chatID int64, content []anthropic.ContentBlock) (string, error) {
	if err := h.client.SendChatAction(ctx, chatID, "typing"); err != nil {
		slog.Debug("sending chat action", "bot", h.bot, "error", err)
	}
	return h.responder.Respond(ctx, chatID, content)
}

// handlePhoto downloads the largest rendition and passes it to the model as
// an inline image alongside any caption.
func (h *Handler) handlePhoto(ctx context.Context, msg *Message) (string, error) {
	largest := msg.Photo[0]
	for _, p := range msg.Photo[1:] {
		if p.Width*p.Height > largest.Width*largest.Height {
			largest = p
		}
	}

	data, err := h.client.DownloadFile(ctx, largest.FileID)
	if err != nil {
		return "", fmt.Errorf("downloading photo: %w", err)
	}

	caption := msg.Caption
	if caption == "" {
		caption = "The user sent this photo."
	}
	content := []anthropic.ContentBlock{
		anthropic.ImageBlock("image/jpeg", base64.StdEncoding.EncodeToString(data)),
		anthropic.TextBlock(caption),
	}
	return h.respond(ctx, msg.Chat.ID, content)
}

// handleDocument imports PDF bank statements for the money persona; anything
// else is declined.
func (h *Handler) handleDocument(ctx context.Context, msg *Message) (string, error) {
	doc := msg.Document
	isPDF := doc.MimeType == "application/pdf" || strings.HasSuffix(strings.ToLower(doc.FileName), ".pdf")
	if h.bot != agent.BotMoney || !isPDF {
		return "I can't read that kind of file. PDF bank statements go to the money assistant.", nil
	}

	data, err := h.client.DownloadFile(ctx, doc.FileID)
	if err != nil {
		return "", fmt.Errorf("downloading statement: %w", err)
	}
	entries, err := statement.Parse(data)
	if err != nil {
		return fmt.Sprintf("I couldn't read that statement: %v", err), nil
	}
	n, err := statement.Import(h.store, h.bot, msg.Chat.ID, entries)
	if err != nil {
		return "", fmt.Errorf("importing statement: %w", err)
	}
	return fmt.Sprintf("Imported %d transactions from %s.", n, doc.FileName), nil
}

// handleCommand answers slash commands directly from storage, without a model
// round trip.
func (h *Handler) handleCommand(ctx context.Context, chatID int64, text string) (string, error) {
	fields := strings.Fields(text)
	cmd := strings.TrimSuffix(fields[0], "@"+h.bot)
	cmd, _, _ = strings.Cut(cmd, "@")

	switch cmd {
	case "/start":
		return h.greeting(), nil

	case "/help":
		return h.helpText(), nil

	case "/reset":
		if err := h.store.ClearTurns(h.bot, chatID); err != nil {
			return "", fmt.Errorf("clearing history: %w", err)
		}
		return "Conversation history cleared.", nil

	case "/model":
		return h.handleModel(chatID, fields[1:])

	case "/tasks":
		return h.formatTasks()

	case "/portfolio":
		return h.formatPortfolio(ctx, chatID), nil

	default:
		return "Unknown command. Try /help.", nil
	}
}

func (h *Handler) handleModel(chatID int64, args []string) (string, error) {
	if len(args) == 0 {
		current, err := h.store.ChatModel(h.bot, chatID)
		if err != nil {
			return "", fmt.Errorf("reading chat model: %w", err)
		}
		if current == "" {
			return fmt.Sprintf("Using the default model (%s). Send /model <name> to override for this chat.", h.model), nil
		}
		return fmt.Sprintf("This chat uses %s. Send /model default to go back.", current), nil
	}

	name := args[0]
	if name == "default" {
		name = ""
	}
	if err := h.store.SetChatModel(h.bot, chatID, name); err != nil {
		return "", fmt.Errorf("setting chat model: %w", err)
	}
	if name == "" {
		return fmt.Sprintf("Back to the default model (%s).", h.model), nil
	}
	return fmt.Sprintf("This chat now uses %s.", name), nil
}

func (h *Handler) formatTasks() (string, error) {
	tasks, err := h.store.ListTasks(h.bot, 15)
	if err != nil {
		return "", fmt.Errorf("listing tasks: %w", err)
	}
	if len(tasks) == 0 {
		return "No tasks scheduled.", nil
	}
	var b strings.Builder
	b.WriteString("Tasks:\n")
	for _, t := range tasks {
		fmt.Fprintf(&b, "• %s (%s) due %s: %s", t.Kind, t.Status, t.DueAt.Format(time.RFC3339), t.Description)
		if t.LastError != "" {
			fmt.Fprintf(&b, " — %s", t.LastError)
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func (h *Handler) formatPortfolio(ctx context.Context, chatID int64) string {
	caller := tools.Caller{Bot: h.bot, ChatID: chatID}

	account := h.registry.Execute(ctx, caller, "get_account", nil)
	if account.IsError {
		return "I don't have a brokerage account to report on."
	}
	positions := h.registry.Execute(ctx, caller, "get_positions", nil)
	if positions.IsError {
		return account.Content
	}
	return account.Content + "\n\n" + positions.Content
}

func (h *Handler) greeting() string {
	switch h.bot {
	case agent.BotMoney:
		return "Hi! I track your spending, income and savings goals. Tell me about a purchase or send a PDF bank statement to get started."
	case agent.BotStocky:
		return "John Stocky here. I run your paper-trading portfolio: ask me to research a ticker, place an order, or send /portfolio."
	case agent.BotHannah:
		return "Hi, I'm Hannah. Give me a topic and I'll research it, keep notes, and report back."
	default:
		return "Hello!"
	}
}

func (h *Handler) helpText() string {
	return strings.Join([]string{
		"Commands:",
		"/reset — clear this conversation's history",
		"/model <name> — use a different model in this chat (/model default to revert)",
		"/tasks — list scheduled tasks",
		"/portfolio — show the brokerage account and positions",
		"",
		"Everything else is just chat: I'll use my tools as needed.",
	}, "\n")
}

package telegram

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rodpglo1956/GloJohnStocky/internal/anthropic"
	"github.com/rodpglo1956/GloJohnStocky/internal/storage"
	"github.com/rodpglo1956/GloJohnStocky/internal/tools"
)

type fakeSender struct {
	sent     []string
	actions  []string
	fileData []byte
}

func (f *fakeSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSender) SendChatAction(ctx context.Context, chatID int64, action string) error {
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeSender) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	if f.fileData == nil {
		return nil, fmt.Errorf("no file")
	}
	return f.fileData, nil
}

type fakeResponder struct {
	reply   string
	err     error
	content []anthropic.ContentBlock
}

func (f *fakeResponder) Respond(ctx context.Context, chatID int64, content []anthropic.ContentBlock) (string, error) {
	f.content = content
	return f.reply, f.err
}

func testStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func emptyRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r, err := tools.NewRegistry()
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	return r
}

func newTestHandler(t *testing.T, bot string, sender *fakeSender, responder *fakeResponder, store *storage.Store) *Handler {
	t.Helper()
	return NewHandler(bot, sender, responder, store, emptyRegistry(t), "model-default")
}

func textMessage(chatID int64, text string) *Message {
	return &Message{Chat: Chat{ID: chatID, Type: "private"}, Text: text}
}

func TestTextGoesThroughResponder(t *testing.T) {
	sender := &fakeSender{}
	responder := &fakeResponder{reply: "hi back"}
	h := newTestHandler(t, "money", sender, responder, testStore(t))

	h.Handle(context.Background(), textMessage(1, "hello"))

	if len(sender.sent) != 1 || sender.sent[0] != "hi back" {
		t.Fatalf("sent = %v", sender.sent)
	}
	if len(sender.actions) != 1 || sender.actions[0] != "typing" {
		t.Errorf("actions = %v", sender.actions)
	}
}

func TestTransientModelErrorSuggestsRetry(t *testing.T) {
	sender := &fakeSender{}
	overloaded := fmt.Errorf("calling model: %w", &anthropic.APIError{StatusCode: 529, Type: "overloaded_error", Message: "overloaded"})
	h := newTestHandler(t, "money", sender, &fakeResponder{err: overloaded}, testStore(t))

	h.Handle(context.Background(), textMessage(1, "hello"))

	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "try again shortly") {
		t.Fatalf("sent = %v", sender.sent)
	}
}

func TestFatalErrorGetsGenericReply(t *testing.T) {
	sender := &fakeSender{}
	invalid := fmt.Errorf("calling model: %w", &anthropic.APIError{StatusCode: 400, Type: "invalid_request_error", Message: "bad request"})
	h := newTestHandler(t, "money", sender, &fakeResponder{err: invalid}, testStore(t))

	h.Handle(context.Background(), textMessage(1, "hello"))

	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "Something went wrong") {
		t.Fatalf("sent = %v", sender.sent)
	}
}

func TestVoiceGetsPoliteDecline(t *testing.T) {
	sender := &fakeSender{}
	h := newTestHandler(t, "money", sender, &fakeResponder{}, testStore(t))

	h.Handle(context.Background(), &Message{Chat: Chat{ID: 1}, Voice: &Voice{FileID: "v1"}})

	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "voice") {
		t.Fatalf("sent = %v", sender.sent)
	}
}

func TestResetClearsHistory(t *testing.T) {
	store := testStore(t)
	if err := store.AppendTurn(storage.Turn{ID: "t1", Bot: "money", ChatID: 1, Role: "user", ContentJSON: "[]"}); err != nil {
		t.Fatalf("seeding turn: %v", err)
	}

	sender := &fakeSender{}
	h := newTestHandler(t, "money", sender, &fakeResponder{}, store)
	h.Handle(context.Background(), textMessage(1, "/reset"))

	turns, _ := store.RecentTurns("money", 1, 10)
	if len(turns) != 0 {
		t.Errorf("history not cleared: %d turns", len(turns))
	}
}

func TestModelCommandSetsAndClearsOverride(t *testing.T) {
	store := testStore(t)
	sender := &fakeSender{}
	h := newTestHandler(t, "money", sender, &fakeResponder{}, store)

	h.Handle(context.Background(), textMessage(1, "/model fancy-model"))
	if m, _ := store.ChatModel("money", 1); m != "fancy-model" {
		t.Errorf("override = %q", m)
	}

	h.Handle(context.Background(), textMessage(1, "/model default"))
	if m, _ := store.ChatModel("money", 1); m != "" {
		t.Errorf("override not cleared: %q", m)
	}

	// Another chat is unaffected throughout.
	if m, _ := store.ChatModel("money", 2); m != "" {
		t.Errorf("other chat has override: %q", m)
	}
}

func TestUnknownCommand(t *testing.T) {
	sender := &fakeSender{}
	h := newTestHandler(t, "money", sender, &fakeResponder{}, testStore(t))
	h.Handle(context.Background(), textMessage(1, "/frobnicate"))
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "/help") {
		t.Fatalf("sent = %v", sender.sent)
	}
}

func TestPhotoBecomesImageBlock(t *testing.T) {
	sender := &fakeSender{fileData: []byte{0xFF, 0xD8, 0xFF}}
	responder := &fakeResponder{reply: "nice chart"}
	h := newTestHandler(t, "stocky", sender, responder, testStore(t))

	h.Handle(context.Background(), &Message{
		Chat:    Chat{ID: 1},
		Caption: "what do you think?",
		Photo: []PhotoSize{
			{FileID: "small", Width: 90, Height: 90},
			{FileID: "large", Width: 800, Height: 600},
		},
	})

	if len(responder.content) != 2 {
		t.Fatalf("content blocks = %d, want 2", len(responder.content))
	}
	if responder.content[0].Type != anthropic.BlockImage {
		t.Errorf("first block type = %s", responder.content[0].Type)
	}
	if responder.content[1].Text != "what do you think?" {
		t.Errorf("caption = %q", responder.content[1].Text)
	}
}

func TestNonPDFDocumentDeclined(t *testing.T) {
	sender := &fakeSender{fileData: []byte("data")}
	h := newTestHandler(t, "money", sender, &fakeResponder{}, testStore(t))

	h.Handle(context.Background(), &Message{
		Chat:     Chat{ID: 1},
		Document: &Document{FileID: "d1", FileName: "notes.docx", MimeType: "application/msword"},
	})
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "can't read") {
		t.Fatalf("sent = %v", sender.sent)
	}
}

func TestPDFOnNonMoneyBotDeclined(t *testing.T) {
	sender := &fakeSender{fileData: []byte("%PDF-1.4")}
	h := newTestHandler(t, "hannah", sender, &fakeResponder{}, testStore(t))

	h.Handle(context.Background(), &Message{
		Chat:     Chat{ID: 1},
		Document: &Document{FileID: "d1", FileName: "statement.pdf", MimeType: "application/pdf"},
	})
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "money") {
		t.Fatalf("sent = %v", sender.sent)
	}
}

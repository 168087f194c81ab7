package scheduler

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rodpglo1956/GloJohnStocky/internal/anthropic"
	"github.com/rodpglo1956/GloJohnStocky/internal/storage"
	"github.com/rodpglo1956/GloJohnStocky/internal/tools"
)

type fakeNotifier struct {
	sent    []string
	chatIDs []int64
	fail    bool
}

func (f *fakeNotifier) SendMessage(ctx context.Context, chatID int64, text string) error {
	if f.fail {
		return fmt.Errorf("telegram unavailable")
	}
	f.sent = append(f.sent, text)
	f.chatIDs = append(f.chatIDs, chatID)
	return nil
}

type fakeResearcher struct {
	reply string
	err   error
}

func (f *fakeResearcher) OneShot(ctx context.Context, chatID int64, prompt string) (string, error) {
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

func registryWith(t *testing.T, defs ...tools.Definition) *tools.Registry {
	t.Helper()
	r, err := tools.NewRegistry(defs)
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	return r
}

func stubTool(name, reply string, fail bool) tools.Definition {
	return tools.Definition{
		Spec: anthropic.Tool{Name: name},
		Handler: func(ctx context.Context, caller tools.Caller, input map[string]any) (string, error) {
			if fail {
				return "", fmt.Errorf("%s failed", name)
			}
			return reply, nil
		},
	}
}

func dueTask(t *testing.T, store *storage.Store, bot, kind, description, payload string) string {
	t.Helper()
	id := uuid.NewString()
	err := store.CreateTask(storage.Task{
		ID:          id,
		Bot:         bot,
		ChatID:      42,
		Kind:        kind,
		Description: description,
		PayloadJSON: payload,
		DueAt:       time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("creating task: %v", err)
	}
	return id
}

func taskStatus(t *testing.T, store *storage.Store, bot, id string) storage.Task {
	t.Helper()
	list, err := store.ListTasks(bot, 50)
	if err != nil {
		t.Fatalf("listing tasks: %v", err)
	}
	for _, task := range list {
		if task.ID == id {
			return task
		}
	}
	t.Fatalf("task %s not found", id)
	return storage.Task{}
}

func TestReminderSendsAndCompletes(t *testing.T) {
	store := testStore(t)
	notifier := &fakeNotifier{}
	id := dueTask(t, store, "money", storage.TaskReminder, "pay rent", "")

	p := New(store, map[string]BotRuntime{
		"money": {Registry: registryWith(t), Notifier: notifier},
	})
	p.RunOnce(context.Background())

	if len(notifier.sent) != 1 || notifier.sent[0] != "pay rent" {
		t.Fatalf("sent = %v", notifier.sent)
	}
	if notifier.chatIDs[0] != 42 {
		t.Errorf("chat id = %d", notifier.chatIDs[0])
	}
	if got := taskStatus(t, store, "money", id); got.Status != storage.TaskCompleted {
		t.Errorf("status = %s", got.Status)
	}
}

func TestResearchRunsOneShot(t *testing.T) {
	store := testStore(t)
	notifier := &fakeNotifier{}
	id := dueTask(t, store, "hannah", storage.TaskResearch, "solar panels", "")

	p := New(store, map[string]BotRuntime{
		"hannah": {Registry: registryWith(t), Researcher: &fakeResearcher{reply: "panels are cheap now"}, Notifier: notifier},
	})
	p.RunOnce(context.Background())

	if len(notifier.sent) != 1 || notifier.sent[0] != "panels are cheap now" {
		t.Fatalf("sent = %v", notifier.sent)
	}
	if got := taskStatus(t, store, "hannah", id); got.Status != storage.TaskCompleted {
		t.Errorf("status = %s", got.Status)
	}
}

func TestTradeTaskPlacesOrder(t *testing.T) {
	store := testStore(t)
	notifier := &fakeNotifier{}
	id := dueTask(t, store, "stocky", storage.TaskTrade, "buy apple", `{"symbol":"AAPL","qty":5,"side":"buy"}`)

	p := New(store, map[string]BotRuntime{
		"stocky": {Registry: registryWith(t, stubTool("place_order", "Order ord-1 accepted", false)), Notifier: notifier},
	})
	p.RunOnce(context.Background())

	if got := taskStatus(t, store, "stocky", id); got.Status != storage.TaskCompleted {
		t.Errorf("status = %s", got.Status)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("sent = %v", notifier.sent)
	}
}

func TestFailedTradeTaskIsTerminal(t *testing.T) {
	store := testStore(t)
	notifier := &fakeNotifier{}
	id := dueTask(t, store, "stocky", storage.TaskTrade, "buy apple", `{"symbol":"AAPL","qty":5,"side":"buy"}`)

	p := New(store, map[string]BotRuntime{
		"stocky": {Registry: registryWith(t, stubTool("place_order", "", true)), Notifier: notifier},
	})
	p.RunOnce(context.Background())

	got := taskStatus(t, store, "stocky", id)
	if got.Status != storage.TaskFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.LastError == "" {
		t.Error("failed task missing last_error")
	}

	// A second poll must not pick the task up again.
	p.RunOnce(context.Background())
	if again := taskStatus(t, store, "stocky", id); again.UpdatedAt != got.UpdatedAt {
		t.Error("failed task was retried")
	}
}

func TestReportTaskComposesPortfolio(t *testing.T) {
	store := testStore(t)
	notifier := &fakeNotifier{}
	dueTask(t, store, "stocky", storage.TaskReport, "weekly report", "")

	p := New(store, map[string]BotRuntime{
		"stocky": {
			Registry: registryWith(t,
				stubTool("get_account", "cash 1000", false),
				stubTool("get_positions", "AAPL: 10 shares", false),
			),
			Notifier: notifier,
		},
	})
	p.RunOnce(context.Background())

	if len(notifier.sent) != 1 {
		t.Fatalf("sent = %v", notifier.sent)
	}
	report := notifier.sent[0]
	for _, want := range []string{"cash 1000", "AAPL: 10 shares"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q: %s", want, report)
		}
	}
}

func TestNotifierFailureFailsTask(t *testing.T) {
	store := testStore(t)
	id := dueTask(t, store, "money", storage.TaskReminder, "pay rent", "")

	p := New(store, map[string]BotRuntime{
		"money": {Registry: registryWith(t), Notifier: &fakeNotifier{fail: true}},
	})
	p.RunOnce(context.Background())

	if got := taskStatus(t, store, "money", id); got.Status != storage.TaskFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
}

func TestUnknownBotFailsTask(t *testing.T) {
	store := testStore(t)
	id := dueTask(t, store, "nobody", storage.TaskReminder, "hello", "")

	p := New(store, map[string]BotRuntime{})
	p.RunOnce(context.Background())

	if got := taskStatus(t, store, "nobody", id); got.Status != storage.TaskFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
}

func TestFutureTasksAreLeftAlone(t *testing.T) {
	store := testStore(t)
	id := uuid.NewString()
	err := store.CreateTask(storage.Task{
		ID: id, Bot: "money", ChatID: 1, Kind: storage.TaskReminder,
		Description: "later", DueAt: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("creating task: %v", err)
	}

	notifier := &fakeNotifier{}
	p := New(store, map[string]BotRuntime{
		"money": {Registry: registryWith(t), Notifier: notifier},
	})
	p.RunOnce(context.Background())

	if len(notifier.sent) != 0 {
		t.Errorf("future task ran early: %v", notifier.sent)
	}
	if got := taskStatus(t, store, "money", id); got.Status != storage.TaskPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
}

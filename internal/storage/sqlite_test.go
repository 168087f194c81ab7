package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// migrations are not re-applied.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) == 0 || len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestTurnsWindowOldestFirst(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		err := s.AppendTurn(Turn{
			ID:          uuid.NewString(),
			Bot:         "money",
			ChatID:      1,
			Role:        "user",
			ContentJSON: fmt.Sprintf(`[{"type":"text","text":"msg %d"}]`, i),
			CreatedAt:   time.Now(),
		})
		if err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}

	turns, err := s.RecentTurns("money", 1, 3)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("len = %d, want 3", len(turns))
	}
	// Window keeps the newest 3 but returns them oldest-first.
	for i, want := range []string{"msg 2", "msg 3", "msg 4"} {
		if turns[i].ContentJSON != fmt.Sprintf(`[{"type":"text","text":"%s"}]`, want) {
			t.Errorf("turn %d = %s, want %s", i, turns[i].ContentJSON, want)
		}
	}
}

func TestTurnsScopedAndCleared(t *testing.T) {
	s := openTestStore(t)

	for _, tc := range []struct {
		bot    string
		chatID int64
	}{{"money", 1}, {"money", 2}, {"stocky", 1}} {
		err := s.AppendTurn(Turn{
			ID: uuid.NewString(), Bot: tc.bot, ChatID: tc.chatID,
			Role: "user", ContentJSON: "[]", CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}

	if err := s.ClearTurns("money", 1); err != nil {
		t.Fatalf("ClearTurns: %v", err)
	}

	for _, tc := range []struct {
		bot    string
		chatID int64
		want   int
	}{{"money", 1, 0}, {"money", 2, 1}, {"stocky", 1, 1}} {
		turns, err := s.RecentTurns(tc.bot, tc.chatID, 10)
		if err != nil {
			t.Fatalf("RecentTurns: %v", err)
		}
		if len(turns) != tc.want {
			t.Errorf("%s/%d: len = %d, want %d", tc.bot, tc.chatID, len(turns), tc.want)
		}
	}
}

func TestClaimDueTaskLifecycle(t *testing.T) {
	s := openTestStore(t)

	now := time.Now()
	due := Task{
		ID: uuid.NewString(), Bot: "stocky", ChatID: 7, Kind: TaskReminder,
		Description: "due now", DueAt: now.Add(-time.Minute),
	}
	future := Task{
		ID: uuid.NewString(), Bot: "stocky", ChatID: 7, Kind: TaskReminder,
		Description: "later", DueAt: now.Add(time.Hour),
	}
	for _, task := range []Task{future, due} {
		if err := s.CreateTask(task); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}

	claimed, err := s.ClaimDueTask(now)
	if err != nil {
		t.Fatalf("ClaimDueTask: %v", err)
	}
	if claimed == nil || claimed.ID != due.ID {
		t.Fatalf("claimed = %+v, want %s", claimed, due.ID)
	}
	if claimed.Status != TaskRunning {
		t.Errorf("status = %q, want running", claimed.Status)
	}

	// The same task cannot be claimed twice, and the future task is not due.
	again, err := s.ClaimDueTask(now)
	if err != nil {
		t.Fatalf("second ClaimDueTask: %v", err)
	}
	if again != nil {
		t.Fatalf("claimed %s twice", again.ID)
	}

	if err := s.CompleteTask(claimed.ID); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	tasks, err := s.ListTasks("stocky", 10)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	for _, task := range tasks {
		if task.ID == claimed.ID && task.Status != TaskCompleted {
			t.Errorf("status = %q, want completed", task.Status)
		}
	}
}

func TestFailTaskIsTerminal(t *testing.T) {
	s := openTestStore(t)

	task := Task{
		ID: uuid.NewString(), Bot: "money", Kind: TaskReminder,
		Description: "x", DueAt: time.Now().Add(-time.Minute),
	}
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	claimed, err := s.ClaimDueTask(time.Now())
	if err != nil || claimed == nil {
		t.Fatalf("ClaimDueTask: %v %v", claimed, err)
	}
	if err := s.FailTask(claimed.ID, "boom"); err != nil {
		t.Fatalf("FailTask: %v", err)
	}

	// Failed tasks never come back.
	again, err := s.ClaimDueTask(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("ClaimDueTask: %v", err)
	}
	if again != nil {
		t.Fatalf("failed task was re-claimed")
	}

	tasks, _ := s.ListTasks("money", 1)
	if tasks[0].Status != TaskFailed || tasks[0].LastError != "boom" {
		t.Errorf("task = %+v", tasks[0])
	}
}

func TestCancelTaskOnlyPending(t *testing.T) {
	s := openTestStore(t)

	task := Task{
		ID: uuid.NewString(), Bot: "money", Kind: TaskReminder,
		Description: "x", DueAt: time.Now().Add(-time.Minute),
	}
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if err := s.CancelTask(task.ID); err != nil {
		t.Fatalf("CancelTask: %v", err)
	}
	if err := s.CancelTask(task.ID); err != ErrNotFound {
		t.Errorf("cancelling a cancelled task: err = %v, want ErrNotFound", err)
	}
}

func TestMemoryUpsertExactKey(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetMemory("user/currency", "USD", "money"); err != nil {
		t.Fatalf("SetMemory: %v", err)
	}
	if err := s.SetMemory("user/currency", "EUR", "hannah"); err != nil {
		t.Fatalf("SetMemory upsert: %v", err)
	}

	e, err := s.GetMemory("user/currency")
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if e.Value != "EUR" || e.CreatedBy != "money" || e.UpdatedBy != "hannah" {
		t.Errorf("entry = %+v", e)
	}

	// Exact match only.
	if _, err := s.GetMemory("user/curr"); err != ErrNotFound {
		t.Errorf("partial key: err = %v, want ErrNotFound", err)
	}

	entries, err := s.ListMemory("user/")
	if err != nil {
		t.Fatalf("ListMemory: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("len = %d, want 1", len(entries))
	}
}

func TestMailboxExactlyOnce(t *testing.T) {
	s := openTestStore(t)

	msg := BotMessage{
		ID: uuid.NewString(), FromBot: "money", ToBot: "stocky",
		Body: "user wants to save for a bike", CreatedAt: time.Now(),
	}
	if err := s.SendBotMessage(msg); err != nil {
		t.Fatalf("SendBotMessage: %v", err)
	}

	first, err := s.FetchUnread("stocky")
	if err != nil {
		t.Fatalf("FetchUnread: %v", err)
	}
	if len(first) != 1 || first[0].Body != msg.Body {
		t.Fatalf("first fetch = %+v", first)
	}

	second, err := s.FetchUnread("stocky")
	if err != nil {
		t.Fatalf("second FetchUnread: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("message delivered twice")
	}
}

func TestSpendingByCategory(t *testing.T) {
	s := openTestStore(t)

	now := time.Now()
	rows := []struct {
		cents int64
		cat   string
		at    time.Time
	}{
		{-1250, "groceries", now},
		{-300, "groceries", now},
		{-4000, "rent", now},
		{-999, "groceries", now.Add(-60 * 24 * time.Hour)}, // outside window
		{5000, "salary", now},                              // income ignored
	}
	for _, r := range rows {
		err := s.AddTransaction(Transaction{
			ID: uuid.NewString(), Bot: "money", ChatID: 1,
			AmountCents: r.cents, Category: r.cat, OccurredAt: r.at, CreatedAt: now,
		})
		if err != nil {
			t.Fatalf("AddTransaction: %v", err)
		}
	}

	sums, err := s.SpendingByCategory("money", 1, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("SpendingByCategory: %v", err)
	}
	if sums["groceries"] != 1550 {
		t.Errorf("groceries = %d, want 1550", sums["groceries"])
	}
	if sums["rent"] != 4000 {
		t.Errorf("rent = %d, want 4000", sums["rent"])
	}
	if _, ok := sums["salary"]; ok {
		t.Errorf("income counted as spending")
	}
}

func TestGoals(t *testing.T) {
	s := openTestStore(t)

	g := Goal{
		ID: uuid.NewString(), Bot: "money", ChatID: 1,
		Name: "bike", TargetCents: 50000, SavedCents: 1000,
	}
	if err := s.AddGoal(g); err != nil {
		t.Fatalf("AddGoal: %v", err)
	}
	if err := s.UpdateGoal(g.ID, 50000, GoalReached); err != nil {
		t.Fatalf("UpdateGoal: %v", err)
	}

	got, err := s.GetGoal(g.ID)
	if err != nil {
		t.Fatalf("GetGoal: %v", err)
	}
	if got.SavedCents != 50000 || got.Status != GoalReached {
		t.Errorf("goal = %+v", got)
	}
	if !got.Deadline.IsZero() {
		t.Errorf("deadline = %v, want zero", got.Deadline)
	}

	if err := s.UpdateGoal("nope", 0, GoalActive); err != ErrNotFound {
		t.Errorf("unknown goal: err = %v, want ErrNotFound", err)
	}
}

func TestTradeLogOrder(t *testing.T) {
	s := openTestStore(t)

	for i, status := range []string{"accepted", "rejected", "filled"} {
		err := s.LogTrade(TradeRecord{
			ID: uuid.NewString(), Bot: "stocky", Symbol: "AAPL",
			Side: "buy", Qty: "1", OrderType: "market",
			Status: status, CreatedAt: time.Now().Add(time.Duration(i) * time.Millisecond),
		})
		if err != nil {
			t.Fatalf("LogTrade: %v", err)
		}
	}

	trades, err := s.RecentTrades("stocky", 2)
	if err != nil {
		t.Fatalf("RecentTrades: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("len = %d, want 2", len(trades))
	}
	if trades[0].Status != "filled" {
		t.Errorf("newest first: got %q", trades[0].Status)
	}
}

func TestChatModelOverride(t *testing.T) {
	s := openTestStore(t)

	model, err := s.ChatModel("money", 1)
	if err != nil {
		t.Fatalf("ChatModel: %v", err)
	}
	if model != "" {
		t.Errorf("unset override = %q, want empty", model)
	}

	if err := s.SetChatModel("money", 1, "claude-opus-4-1-20250805"); err != nil {
		t.Fatalf("SetChatModel: %v", err)
	}
	if err := s.SetChatModel("money", 2, "claude-3-5-haiku-20241022"); err != nil {
		t.Fatalf("SetChatModel: %v", err)
	}

	model, _ = s.ChatModel("money", 1)
	if model != "claude-opus-4-1-20250805" {
		t.Errorf("model = %q", model)
	}

	// Clearing resets to the default.
	if err := s.SetChatModel("money", 1, ""); err != nil {
		t.Fatalf("clear SetChatModel: %v", err)
	}
	model, _ = s.ChatModel("money", 1)
	if model != "" {
		t.Errorf("cleared model = %q, want empty", model)
	}
}

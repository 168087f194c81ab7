package tools

import (
	"context"
	"strings"
	"testing"
)

func execute(t *testing.T, defs []Definition, name string, input map[string]any) Result {
	t.Helper()
	r, err := NewRegistry(defs)
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	return r.Execute(context.Background(), Caller{Bot: "money", ChatID: 7}, name, input)
}

func TestAddAndListTransactions(t *testing.T) {
	store := testStore(t)
	defs := FinanceTools(store)

	res := execute(t, defs, "add_transaction", map[string]any{
		"amount":   -12.50,
		"category": "groceries",
		"note":     "weekly shop",
	})
	if res.IsError {
		t.Fatalf("add_transaction failed: %s", res.Content)
	}

	res = execute(t, defs, "list_transactions", nil)
	if res.IsError {
		t.Fatalf("list_transactions failed: %s", res.Content)
	}
	if !strings.Contains(res.Content, "groceries") || !strings.Contains(res.Content, "-12.50") {
		t.Errorf("listing missing transaction: %s", res.Content)
	}
}

func TestAddTransactionRequiresAmount(t *testing.T) {
	res := execute(t, FinanceTools(testStore(t)), "add_transaction", map[string]any{"category": "misc"})
	if !res.IsError {
		t.Fatal("expected error for missing amount")
	}
}

func TestSpendingSummaryIgnoresIncome(t *testing.T) {
	store := testStore(t)
	defs := FinanceTools(store)

	execute(t, defs, "add_transaction", map[string]any{"amount": -40.0, "category": "food"})
	execute(t, defs, "add_transaction", map[string]any{"amount": 1000.0, "category": "salary"})

	res := execute(t, defs, "spending_summary", map[string]any{"days": 7})
	if res.IsError {
		t.Fatalf("spending_summary failed: %s", res.Content)
	}
	if !strings.Contains(res.Content, "food: 40.00") {
		t.Errorf("summary missing spending: %s", res.Content)
	}
	if strings.Contains(res.Content, "salary") {
		t.Errorf("summary should not include income: %s", res.Content)
	}
}

func TestGoalLifecycle(t *testing.T) {
	store := testStore(t)
	defs := FinanceTools(store)

	res := execute(t, defs, "add_goal", map[string]any{"name": "vacation", "target": 500.0})
	if res.IsError {
		t.Fatalf("add_goal failed: %s", res.Content)
	}
	id := extractID(t, res.Content)

	// Saving past the target flips the goal to reached.
	res = execute(t, defs, "update_goal", map[string]any{"id": id, "saved": 500.0})
	if res.IsError {
		t.Fatalf("update_goal failed: %s", res.Content)
	}
	if !strings.Contains(res.Content, "reached") {
		t.Errorf("goal should be reached: %s", res.Content)
	}

	res = execute(t, defs, "list_goals", nil)
	if !strings.Contains(res.Content, "vacation") {
		t.Errorf("listing missing goal: %s", res.Content)
	}
}

func TestUpdateGoalScopedToChat(t *testing.T) {
	store := testStore(t)
	defs := FinanceTools(store)

	res := execute(t, defs, "add_goal", map[string]any{"name": "bike", "target": 300.0})
	id := extractID(t, res.Content)

	r, err := NewRegistry(defs)
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	// Another chat must not be able to touch the goal.
	other := r.Execute(context.Background(), Caller{Bot: "money", ChatID: 99}, "update_goal", map[string]any{"id": id, "saved": 10.0})
	if !other.IsError {
		t.Fatal("expected error updating goal from another chat")
	}
}

// extractID pulls the trailing "(id <uuid>)" out of a tool reply.
func extractID(t *testing.T, content string) string {
	t.Helper()
	idx := strings.LastIndex(content, "(id ")
	if idx < 0 {
		t.Fatalf("no id in reply: %s", content)
	}
	return strings.TrimSuffix(content[idx+len("(id "):], ")")
}

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

// FinanceTools exposes the personal-finance ledger and savings goals.
func FinanceTools(store *storage.Store) []Definition {
	return []Definition{
		{
			Spec: anthropic.Tool{
				Name:        "add_transaction",
				Description: "Record a money transaction. Negative amounts are spending, positive amounts are income.",
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"amount":   numProp("Amount in dollars. Negative for spending, positive for income."),
					"category": strProp("Category such as groceries, rent, salary."),
					"note":     strProp("Optional free-form note."),
					"date":     strProp("When the transaction happened, ISO date or timestamp. Defaults to now."),
				}, "amount", "category"),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				amount, ok := floatArg(input, "amount")
				if !ok {
					return "", fmt.Errorf("amount is required")
				}
				category, err := requireString(input, "category")
				if err != nil {
					return "", err
				}
				occurred, err := timeArg(input, "date")
				if err != nil {
					return "", err
				}
				if occurred.IsZero() {
					occurred = time.Now()
				}

				t := storage.Transaction{
					ID:          uuid.NewString(),
					Bot:         caller.Bot,
					ChatID:      caller.ChatID,
					AmountCents: cents(amount),
					Category:    category,
					Note:        stringArg(input, "note"),
					OccurredAt:  occurred,
					CreatedAt:   time.Now(),
				}
				if err := store.AddTransaction(t); err != nil {
					return "", fmt.Errorf("storing transaction: %w", err)
				}
				return fmt.Sprintf("Recorded %s %.2f in %s (id %s)", sign(amount), abs(amount), category, t.ID), nil
			},
		},
		{
			Spec: anthropic.Tool{
				Name:        "list_transactions",
				Description: "List the most recent transactions for this chat, newest first.",
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"limit": numProp("Maximum entries to return. Defaults to 20."),
				}),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				limit := intArg(input, "limit", 20)
				txs, err := store.ListTransactions(caller.Bot, caller.ChatID, limit)
				if err != nil {
					return "", fmt.Errorf("listing transactions: %w", err)
				}
				if len(txs) == 0 {
					return "No transactions recorded yet.", nil
				}
				var b strings.Builder
				for _, t := range txs {
					fmt.Fprintf(&b, "%s  %+.2f  %s", t.OccurredAt.Format("2006-01-02"), dollars(t.AmountCents), t.Category)
					if t.Note != "" {
						fmt.Fprintf(&b, "  (%s)", t.Note)
					}
					fmt.Fprintf(&b, "  [%s]\n", t.ID)
				}
				return b.String(), nil
			},
		},
		{
			Spec: anthropic.Tool{
				Name:        "spending_summary",
				Description: "Summarize spending per category over a recent period.",
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"days": numProp("How many days back to include. Defaults to 30."),
				}),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				days := intArg(input, "days", 30)
				if days <= 0 {
					days = 30
				}
				since := time.Now().AddDate(0, 0, -days)
				byCat, err := store.SpendingByCategory(caller.Bot, caller.ChatID, since)
				if err != nil {
					return "", fmt.Errorf("summarizing spending: %w", err)
				}
				if len(byCat) == 0 {
					return fmt.Sprintf("No spending in the last %d days.", days), nil
				}
				var total int64
				var b strings.Builder
				fmt.Fprintf(&b, "Spending over the last %d days:\n", days)
				for cat, c := range byCat {
					fmt.Fprintf(&b, "  %s: %.2f\n", cat, dollars(c))
					total += c
				}
				fmt.Fprintf(&b, "Total: %.2f", dollars(total))
				return b.String(), nil
			},
		},
		{
			Spec: anthropic.Tool{
				Name:        "add_goal",
				Description: "Create a savings goal with a target amount and optional deadline.",
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"name":     strProp("Short goal name, e.g. 'vacation fund'."),
					"target":   numProp("Target amount in dollars."),
					"deadline": strProp("Optional ISO date by which the goal should be reached."),
				}, "name", "target"),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				name, err := requireString(input, "name")
				if err != nil {
					return "", err
				}
				target, ok := floatArg(input, "target")
				if !ok || target <= 0 {
					return "", fmt.Errorf("target must be a positive amount")
				}
				deadline, err := timeArg(input, "deadline")
				if err != nil {
					return "", err
				}

				g := storage.Goal{
					ID:          uuid.NewString(),
					Bot:         caller.Bot,
					ChatID:      caller.ChatID,
					Name:        name,
					TargetCents: cents(target),
					Deadline:    deadline,
					Status:      storage.GoalActive,
				}
				if err := store.AddGoal(g); err != nil {
					return "", fmt.Errorf("storing goal: %w", err)
				}
				return fmt.Sprintf("Goal %q created with target %.2f (id %s)", name, target, g.ID), nil
			},
		},
		{
			Spec: anthropic.Tool{
				Name:        "update_goal",
				Description: "Update the saved amount or status of a savings goal.",
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"id":     strProp("Goal id as returned by add_goal or list_goals."),
					"saved":  numProp("New total saved amount in dollars."),
					"status": enumProp("New status.", storage.GoalActive, storage.GoalReached, storage.GoalAbandoned),
				}, "id"),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				id, err := requireString(input, "id")
				if err != nil {
					return "", err
				}
				g, err := store.GetGoal(id)
				if err != nil {
					return "", fmt.Errorf("looking up goal: %w", err)
				}
				if g.Bot != caller.Bot || g.ChatID != caller.ChatID {
					return "", storage.ErrNotFound
				}

				saved := g.SavedCents
				if v, ok := floatArg(input, "saved"); ok {
					saved = cents(v)
				}
				status := g.Status
				if s := stringArg(input, "status"); s != "" {
					switch s {
					case storage.GoalActive, storage.GoalReached, storage.GoalAbandoned:
						status = s
					default:
						return "", fmt.Errorf("unknown status %q", s)
					}
				}
				if status == storage.GoalActive && saved >= g.TargetCents {
					status = storage.GoalReached
				}

				if err := store.UpdateGoal(id, saved, status); err != nil {
					return "", fmt.Errorf("updating goal: %w", err)
				}
				return fmt.Sprintf("Goal %q: %.2f of %.2f saved, status %s", g.Name, dollars(saved), dollars(g.TargetCents), status), nil
			},
		},
		{
			Spec: anthropic.Tool{
				Name:        "list_goals",
				Description: "List savings goals for this chat with progress.",
				InputSchema: objSchema(nil),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				goals, err := store.ListGoals(caller.Bot, caller.ChatID)
				if err != nil {
					return "", fmt.Errorf("listing goals: %w", err)
				}
				if len(goals) == 0 {
					return "No goals set yet.", nil
				}
				var b strings.Builder
				for _, g := range goals {
					fmt.Fprintf(&b, "%s: %.2f of %.2f (%s)", g.Name, dollars(g.SavedCents), dollars(g.TargetCents), g.Status)
					if !g.Deadline.IsZero() {
						fmt.Fprintf(&b, " by %s", g.Deadline.Format("2006-01-02"))
					}
					fmt.Fprintf(&b, "  [%s]\n", g.ID)
				}
				return b.String(), nil
			},
		},
	}
}

func sign(amount float64) string {
	if amount < 0 {
		return "spending"
	}
	return "income"
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

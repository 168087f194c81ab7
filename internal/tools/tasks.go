package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rodpglo1956/GloJohnStocky/internal/anthropic"
	"github.com/rodpglo1956/GloJohnStocky/internal/storage"
)

// TaskTools exposes durable task scheduling. Tasks run once at their due time;
// a failed task stays failed and must be rescheduled explicitly.
func TaskTools(store *storage.Store) []Definition {
	return []Definition{
		{
			Spec: anthropic.Tool{
				Name:        "schedule_task",
				Description: "Schedule a one-shot task for a future time. Kinds: reminder (send the description back), research (run a research prompt and send the findings), trade (place a brokerage order), alert (same as reminder), report (send a portfolio summary).",
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"kind":        enumProp("Task kind.", storage.TaskReminder, storage.TaskResearch, storage.TaskTrade, storage.TaskAlert, storage.TaskReport),
					"description": strProp("What the task should do. For reminders this is the message; for research this is the prompt."),
					"due_at":      strProp("When to run, ISO timestamp."),
					"payload":     strProp("Optional JSON payload. Trade tasks need {\"symbol\",\"qty\",\"side\"} and optionally \"type\"."),
				}, "kind", "description", "due_at"),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				kind, err := requireString(input, "kind")
				if err != nil {
					return "", err
				}
				description, err := requireString(input, "description")
				if err != nil {
					return "", err
				}
				dueAt, err := timeArg(input, "due_at")
				if err != nil {
					return "", err
				}
				if dueAt.IsZero() {
					return "", fmt.Errorf("due_at is required")
				}

				payload := stringArg(input, "payload")
				if err := ValidateTask(kind, payload); err != nil {
					return "", err
				}

				t := storage.Task{
					ID:          uuid.NewString(),
					Bot:         caller.Bot,
					ChatID:      caller.ChatID,
					Kind:        kind,
					Description: description,
					PayloadJSON: payload,
					DueAt:       dueAt,
				}
				if err := store.CreateTask(t); err != nil {
					return "", fmt.Errorf("scheduling task: %w", err)
				}
				return fmt.Sprintf("Scheduled %s task for %s (id %s)", kind, dueAt.Format(time.RFC3339), t.ID), nil
			},
		},
		{
			Spec: anthropic.Tool{
				Name:        "list_tasks",
				Description: "List scheduled tasks with their status.",
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"limit": numProp("Maximum tasks to return. Defaults to 20."),
				}),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				tasks, err := store.ListTasks(caller.Bot, intArg(input, "limit", 20))
				if err != nil {
					return "", fmt.Errorf("listing tasks: %w", err)
				}
				if len(tasks) == 0 {
					return "No tasks scheduled.", nil
				}
				var b strings.Builder
				for _, t := range tasks {
					fmt.Fprintf(&b, "%s %s due %s: %s", t.Kind, t.Status, t.DueAt.Format(time.RFC3339), t.Description)
					if t.LastError != "" {
						fmt.Fprintf(&b, " (error: %s)", t.LastError)
					}
					fmt.Fprintf(&b, "  [%s]\n", t.ID)
				}
				return b.String(), nil
			},
		},
		{
			Spec: anthropic.Tool{
				Name:        "cancel_task",
				Description: "Cancel a pending task. Tasks already running or finished cannot be cancelled.",
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"id": strProp("Task id as returned by schedule_task or list_tasks."),
				}, "id"),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				id, err := requireString(input, "id")
				if err != nil {
					return "", err
				}
				err = store.CancelTask(id)
				if errors.Is(err, storage.ErrNotFound) {
					return "", fmt.Errorf("task %s is not pending (already running, finished, or unknown)", id)
				}
				if err != nil {
					return "", fmt.Errorf("cancelling task: %w", err)
				}
				return fmt.Sprintf("Task %s cancelled.", id), nil
			},
		},
	}
}

// ValidateTask checks a task kind and payload before the task is persisted.
// Both schedule paths use it, so a trade task never reaches the poller with a
// payload it cannot execute.
func ValidateTask(kind, payload string) error {
	switch kind {
	case storage.TaskReminder, storage.TaskResearch, storage.TaskTrade, storage.TaskAlert, storage.TaskReport:
	default:
		return fmt.Errorf("unknown task kind %q", kind)
	}
	if payload != "" && !json.Valid([]byte(payload)) {
		return fmt.Errorf("payload must be valid JSON")
	}
	if kind == storage.TaskTrade {
		return validateTradePayload(payload)
	}
	return nil
}

// TradePayload is the payload schema for trade tasks, shared with the poller.
type TradePayload struct {
	Symbol string  `json:"symbol"`
	Qty    float64 `json:"qty"`
	Side   string  `json:"side"`
	Type   string  `json:"type,omitempty"`
}

func validateTradePayload(payload string) error {
	if payload == "" {
		return fmt.Errorf("trade tasks need a payload with symbol, qty and side")
	}
	var p TradePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return fmt.Errorf("parsing trade payload: %w", err)
	}
	if p.Symbol == "" || p.Qty <= 0 {
		return fmt.Errorf("trade payload needs a symbol and a positive qty")
	}
	if p.Side != "buy" && p.Side != "sell" {
		return fmt.Errorf("trade payload side must be buy or sell")
	}
	return nil
}

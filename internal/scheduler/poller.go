// Package scheduler executes due tasks. A single poller claims tasks across
// all bot personas and routes each to its kind-specific runner.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rodpglo1956/GloJohnStocky/internal/storage"
	"github.com/rodpglo1956/GloJohnStocky/internal/tools"
)

const defaultInterval = 60 * time.Second

// Notifier delivers task output to the chat that scheduled it.
// *telegram.Client satisfies it.
type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Researcher runs a detached prompt through the tool loop.
// *agent.Orchestrator satisfies it.
type Researcher interface {
	OneShot(ctx context.Context, chatID int64, prompt string) (string, error)
}

// BotRuntime bundles everything the poller needs to execute tasks for one
// persona.
type BotRuntime struct {
	Registry   *tools.Registry
	Researcher Researcher
	Notifier   Notifier
}

// Poller claims due tasks and runs them. Each task gets exactly one terminal
// status write; failed tasks are never retried.
type Poller struct {
	store    *storage.Store
	bots     map[string]BotRuntime
	interval time.Duration
}

// New creates a poller over the given per-bot runtimes.
func New(store *storage.Store, bots map[string]BotRuntime) *Poller {
	return &Poller{store: store, bots: bots, interval: defaultInterval}
}

// NewWithInterval creates a poller with a custom tick interval (for testing).
func NewWithInterval(store *storage.Store, bots map[string]BotRuntime, interval time.Duration) *Poller {
	return &Poller{store: store, bots: bots, interval: interval}
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	slog.Info("task poller started", "interval", p.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("task poller stopped")
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce drains every task that is due right now.
func (p *Poller) RunOnce(ctx context.Context) {
	for {
		task, err := p.store.ClaimDueTask(time.Now())
		if err != nil {
			slog.Error("claiming task", "error", err)
			return
		}
		if task == nil {
			return
		}
		p.runTask(ctx, task)
	}
}

func (p *Poller) runTask(ctx context.Context, task *storage.Task) {
	slog.Info("running task", "id", task.ID, "bot", task.Bot, "kind", task.Kind)

	err := p.execute(ctx, task)
	if err != nil {
		slog.Warn("task failed", "id", task.ID, "kind", task.Kind, "error", err)
		if ferr := p.store.FailTask(task.ID, err.Error()); ferr != nil {
			slog.Error("recording task failure", "id", task.ID, "error", ferr)
		}
		return
	}
	if cerr := p.store.CompleteTask(task.ID); cerr != nil {
		slog.Error("recording task completion", "id", task.ID, "error", cerr)
	}
}

func (p *Poller) execute(ctx context.Context, task *storage.Task) error {
	rt, ok := p.bots[task.Bot]
	if !ok {
		return fmt.Errorf("no runtime for bot %q", task.Bot)
	}

	switch task.Kind {
	case storage.TaskReminder, storage.TaskAlert:
		return rt.Notifier.SendMessage(ctx, task.ChatID, task.Description)

	case storage.TaskResearch:
		findings, err := rt.Researcher.OneShot(ctx, task.ChatID, task.Description)
		if err != nil {
			return fmt.Errorf("research run: %w", err)
		}
		return rt.Notifier.SendMessage(ctx, task.ChatID, findings)

	case storage.TaskTrade:
		return p.runTrade(ctx, rt, task)

	case storage.TaskReport:
		return p.runReport(ctx, rt, task)

	default:
		return fmt.Errorf("unknown task kind %q", task.Kind)
	}
}

// runTrade places the order described by the task payload. A brokerage
// rejection fails the task; the trade log already holds the attempt.
func (p *Poller) runTrade(ctx context.Context, rt BotRuntime, task *storage.Task) error {
	var payload tools.TradePayload
	if err := json.Unmarshal([]byte(task.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing trade payload: %w", err)
	}

	input := map[string]any{
		"symbol": payload.Symbol,
		"qty":    payload.Qty,
		"side":   payload.Side,
	}
	if payload.Type != "" {
		input["type"] = payload.Type
	}

	caller := tools.Caller{Bot: task.Bot, ChatID: task.ChatID}
	res := rt.Registry.Execute(ctx, caller, "place_order", input)
	if res.IsError {
		// Tell the chat before failing, so the user learns why nothing happened.
		msg := fmt.Sprintf("Scheduled trade (%s) failed: %s", task.Description, res.Content)
		if err := rt.Notifier.SendMessage(ctx, task.ChatID, msg); err != nil {
			slog.Warn("notifying trade failure", "task", task.ID, "error", err)
		}
		return fmt.Errorf("placing order: %s", res.Content)
	}
	return rt.Notifier.SendMessage(ctx, task.ChatID, fmt.Sprintf("Scheduled trade executed: %s", res.Content))
}

func (p *Poller) runReport(ctx context.Context, rt BotRuntime, task *storage.Task) error {
	caller := tools.Caller{Bot: task.Bot, ChatID: task.ChatID}

	var b strings.Builder
	b.WriteString("Portfolio report\n\n")
	account := rt.Registry.Execute(ctx, caller, "get_account", nil)
	if account.IsError {
		return fmt.Errorf("fetching account: %s", account.Content)
	}
	b.WriteString(account.Content)
	b.WriteString("\n\n")

	positions := rt.Registry.Execute(ctx, caller, "get_positions", nil)
	if positions.IsError {
		return fmt.Errorf("fetching positions: %s", positions.Content)
	}
	b.WriteString(positions.Content)

	return rt.Notifier.SendMessage(ctx, task.ChatID, b.String())
}

package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Turn is one conversation turn for a (bot, chat) pair. ContentJSON holds the
// ordered content blocks exactly as sent to or received from the model.
type Turn struct {
	ID          string
	Bot         string
	ChatID      int64
	Role        string // "user" or "assistant"
	ContentJSON string
	CreatedAt   time.Time
}

// Task statuses. Transitions are monotonic: pending -> running -> completed|failed.
const (
	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// Task kinds understood by the poller.
const (
	TaskReminder = "reminder"
	TaskResearch = "research"
	TaskTrade    = "trade"
	TaskAlert    = "alert"
	TaskReport   = "report"
)

// Task is a durable record of a future action, executed once by the poller.
// Failed tasks stay failed; running one again requires scheduling a new task.
type Task struct {
	ID          string    `json:"id"`
	Bot         string    `json:"bot"`
	ChatID      int64     `json:"chat_id"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	PayloadJSON string    `json:"payload"`
	DueAt       time.Time `json:"due_at"`
	Status      string    `json:"status"`
	LastError   string    `json:"last_error"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MemoryEntry is a shared key/value record visible to every bot persona.
type MemoryEntry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedBy string    `json:"created_by"`
	UpdatedBy string    `json:"updated_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BotMessage is one inter-bot mailbox entry. Write-once by the sender; the
// read flag flips exactly once when the recipient fetches its unread mail.
type BotMessage struct {
	ID        string
	FromBot   string
	ToBot     string
	Body      string
	Context   string
	Read      bool
	CreatedAt time.Time
}

// Transaction is one ledger entry for the money persona. Amounts are cents;
// negative is spending, positive is income.
type Transaction struct {
	ID          string
	Bot         string
	ChatID      int64
	AmountCents int64
	Category    string
	Note        string
	OccurredAt  time.Time
	CreatedAt   time.Time
}

// Goal statuses.
const (
	GoalActive    = "active"
	GoalReached   = "reached"
	GoalAbandoned = "abandoned"
)

// Goal is a savings goal tracked by the money persona.
type Goal struct {
	ID          string
	Bot         string
	ChatID      int64
	Name        string
	TargetCents int64
	SavedCents  int64
	Deadline    time.Time
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TradeRecord is an audit entry for every brokerage order attempt, successful
// or not. Never deleted.
type TradeRecord struct {
	ID        string    `json:"id"`
	Bot       string    `json:"bot"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Qty       string    `json:"qty"`
	OrderType string    `json:"order_type"`
	Status    string    `json:"status"`
	OrderID   string    `json:"order_id"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

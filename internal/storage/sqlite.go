package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding all durable bot state: conversation
// turns, scheduled tasks, shared memory, the inter-bot mailbox, the money
// ledger, and the trade audit log.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "stocky.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

// AppliedMigrations returns the applied schema versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query(`SELECT version FROM schema_version ORDER BY version ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// fmtTime keeps nanosecond precision so records written within the same
// second still sort by insertion order.
func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// --- Conversation turns ---

// AppendTurn stores one conversation turn. Turns are append-only.
func (s *Store) AppendTurn(t Turn) error {
	_, err := s.db.Exec(`
		INSERT INTO turns (id, bot, chat_id, role, content_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Bot, t.ChatID, t.Role, t.ContentJSON, fmtTime(t.CreatedAt),
	)
	return err
}

// RecentTurns returns up to limit most recent turns for (bot, chat),
// ordered oldest-first so the result can be sent to the model directly.
func (s *Store) RecentTurns(bot string, chatID int64, limit int) ([]Turn, error) {
	rows, err := s.db.Query(`
		SELECT id, bot, chat_id, role, content_json, created_at FROM (
			SELECT id, bot, chat_id, role, content_json, created_at
			FROM turns WHERE bot = ? AND chat_id = ?
			ORDER BY created_at DESC, id DESC LIMIT ?
		) ORDER BY created_at ASC, id ASC`, bot, chatID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Turn
	for rows.Next() {
		var t Turn
		var createdAt string
		if err := rows.Scan(&t.ID, &t.Bot, &t.ChatID, &t.Role, &t.ContentJSON, &createdAt); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// ClearTurns deletes all stored history for (bot, chat). Used by the
// malformed-history recovery path and the /reset command.
func (s *Store) ClearTurns(bot string, chatID int64) error {
	_, err := s.db.Exec(`DELETE FROM turns WHERE bot = ? AND chat_id = ?`, bot, chatID)
	return err
}

// --- Scheduled tasks ---

// CreateTask inserts a pending task.
func (s *Store) CreateTask(t Task) error {
	now := fmtTime(time.Now())
	payload := t.PayloadJSON
	if payload == "" {
		payload = "{}"
	}
	_, err := s.db.Exec(`
		INSERT INTO tasks (id, bot, chat_id, kind, description, payload_json, due_at, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'pending', ?, ?)`,
		t.ID, t.Bot, t.ChatID, t.Kind, t.Description, payload, fmtTime(t.DueAt), now, now,
	)
	return err
}

// ClaimDueTask claims the earliest-due pending task whose due_at is at or
// before now, transitioning it pending -> running in one transaction.
// Returns nil when nothing is due.
func (s *Store) ClaimDueTask(now time.Time) (*Task, error) {
	nowStr := fmtTime(now)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}

	var t Task
	var dueAt, createdAt, updatedAt string
	err = tx.QueryRow(`
		SELECT id, bot, chat_id, kind, description, payload_json, due_at, status, last_error, created_at, updated_at
		FROM tasks
		WHERE status = 'pending' AND due_at <= ?
		ORDER BY due_at ASC, created_at ASC
		LIMIT 1`, nowStr,
	).Scan(&t.ID, &t.Bot, &t.ChatID, &t.Kind, &t.Description, &t.PayloadJSON, &dueAt, &t.Status, &t.LastError, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		tx.Rollback()
		return nil, nil
	}
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("selecting due task: %w", err)
	}

	res, err := tx.Exec(`UPDATE tasks SET status = 'running', updated_at = ? WHERE id = ? AND status = 'pending'`, nowStr, t.ID)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("claiming task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("checking claimed rows: %w", err)
	}
	if n != 1 {
		tx.Rollback()
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	t.Status = TaskRunning
	if t.DueAt, err = parseTime(dueAt); err != nil {
		return nil, fmt.Errorf("parsing due_at for task %s: %w", t.ID, err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at for task %s: %w", t.ID, err)
	}
	t.UpdatedAt = now.UTC()
	return &t, nil
}

// CompleteTask marks a task completed. Terminal.
func (s *Store) CompleteTask(id string) error {
	return s.finishTask(id, TaskCompleted, "")
}

// FailTask marks a task failed with the given error. Terminal; failed tasks
// are never retried automatically.
func (s *Store) FailTask(id, errMsg string) error {
	return s.finishTask(id, TaskFailed, errMsg)
}

func (s *Store) finishTask(id, status, errMsg string) error {
	res, err := s.db.Exec(`UPDATE tasks SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		status, errMsg, fmtTime(time.Now()), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelTask marks a still-pending task failed with a cancellation note.
// Running or finished tasks are left untouched and ErrNotFound is returned.
func (s *Store) CancelTask(id string) error {
	res, err := s.db.Exec(`UPDATE tasks SET status = 'failed', last_error = 'cancelled', updated_at = ? WHERE id = ? AND status = 'pending'`,
		fmtTime(time.Now()), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTasks returns the most recent tasks for a bot, newest first.
func (s *Store) ListTasks(bot string, limit int) ([]Task, error) {
	rows, err := s.db.Query(`
		SELECT id, bot, chat_id, kind, description, payload_json, due_at, status, last_error, created_at, updated_at
		FROM tasks WHERE bot = ? ORDER BY created_at DESC LIMIT ?`, bot, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

// PendingTasks returns pending tasks for a bot ordered by due time.
func (s *Store) PendingTasks(bot string, limit int) ([]Task, error) {
	rows, err := s.db.Query(`
		SELECT id, bot, chat_id, kind, description, payload_json, due_at, status, last_error, created_at, updated_at
		FROM tasks WHERE bot = ? AND status = 'pending' ORDER BY due_at ASC LIMIT ?`, bot, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

func scanTasks(rows *sql.Rows) ([]Task, error) {
	var results []Task
	for rows.Next() {
		var t Task
		var dueAt, createdAt, updatedAt string
		if err := rows.Scan(&t.ID, &t.Bot, &t.ChatID, &t.Kind, &t.Description, &t.PayloadJSON, &dueAt, &t.Status, &t.LastError, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		var err error
		if t.DueAt, err = parseTime(dueAt); err != nil {
			return nil, fmt.Errorf("parsing due_at: %w", err)
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// --- Shared memory ---

// SetMemory upserts a shared memory entry by exact key.
func (s *Store) SetMemory(key, value, by string) error {
	now := fmtTime(time.Now())
	_, err := s.db.Exec(`
		INSERT INTO memory_entries (key, value, created_by, updated_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_by = excluded.updated_by, updated_at = excluded.updated_at`,
		key, value, by, by, now, now,
	)
	return err
}

// GetMemory returns the entry for an exact key.
func (s *Store) GetMemory(key string) (MemoryEntry, error) {
	var e MemoryEntry
	var createdAt, updatedAt string
	err := s.db.QueryRow(`
		SELECT key, value, created_by, updated_by, created_at, updated_at
		FROM memory_entries WHERE key = ?`, key,
	).Scan(&e.Key, &e.Value, &e.CreatedBy, &e.UpdatedBy, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return MemoryEntry{}, ErrNotFound
	}
	if err != nil {
		return MemoryEntry{}, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return MemoryEntry{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return MemoryEntry{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return e, nil
}

// ListMemory enumerates entries whose key starts with prefix, sorted by key.
// An empty prefix lists everything.
func (s *Store) ListMemory(prefix string) ([]MemoryEntry, error) {
	rows, err := s.db.Query(`
		SELECT key, value, created_by, updated_by, created_at, updated_at
		FROM memory_entries WHERE key LIKE ? || '%' ORDER BY key ASC`, prefix,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		var createdAt, updatedAt string
		if err := rows.Scan(&e.Key, &e.Value, &e.CreatedBy, &e.UpdatedBy, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// --- Inter-bot mailbox ---

// SendBotMessage stores one mailbox entry.
func (s *Store) SendBotMessage(m BotMessage) error {
	_, err := s.db.Exec(`
		INSERT INTO bot_messages (id, from_bot, to_bot, body, context, read, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)`,
		m.ID, m.FromBot, m.ToBot, m.Body, m.Context, fmtTime(m.CreatedAt),
	)
	return err
}

// FetchUnread returns all unread messages for a bot, oldest first, and marks
// them read in the same transaction so each message is delivered exactly once.
func (s *Store) FetchUnread(toBot string) ([]BotMessage, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning fetch transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT id, from_bot, to_bot, body, context, created_at
		FROM bot_messages WHERE to_bot = ? AND read = 0 ORDER BY created_at ASC`, toBot,
	)
	if err != nil {
		return nil, err
	}

	var results []BotMessage
	for rows.Next() {
		var m BotMessage
		var createdAt string
		if err := rows.Scan(&m.ID, &m.FromBot, &m.ToBot, &m.Body, &m.Context, &createdAt); err != nil {
			rows.Close()
			return nil, err
		}
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		m.Read = true
		results = append(results, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(results) > 0 {
		if _, err := tx.Exec(`UPDATE bot_messages SET read = 1 WHERE to_bot = ? AND read = 0`, toBot); err != nil {
			return nil, fmt.Errorf("marking messages read: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing fetch: %w", err)
	}
	return results, nil
}

// --- Money ledger ---

// AddTransaction stores one ledger entry.
func (s *Store) AddTransaction(t Transaction) error {
	_, err := s.db.Exec(`
		INSERT INTO transactions (id, bot, chat_id, amount_cents, category, note, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Bot, t.ChatID, t.AmountCents, t.Category, t.Note,
		fmtTime(t.OccurredAt), fmtTime(t.CreatedAt),
	)
	return err
}

// ListTransactions returns the most recent transactions for (bot, chat).
func (s *Store) ListTransactions(bot string, chatID int64, limit int) ([]Transaction, error) {
	rows, err := s.db.Query(`
		SELECT id, bot, chat_id, amount_cents, category, note, occurred_at, created_at
		FROM transactions WHERE bot = ? AND chat_id = ?
		ORDER BY occurred_at DESC LIMIT ?`, bot, chatID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Transaction
	for rows.Next() {
		var t Transaction
		var occurredAt, createdAt string
		if err := rows.Scan(&t.ID, &t.Bot, &t.ChatID, &t.AmountCents, &t.Category, &t.Note, &occurredAt, &createdAt); err != nil {
			return nil, err
		}
		if t.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, fmt.Errorf("parsing occurred_at: %w", err)
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// SpendingByCategory sums negative amounts per category since the given time.
// Returned values are positive cents spent.
func (s *Store) SpendingByCategory(bot string, chatID int64, since time.Time) (map[string]int64, error) {
	rows, err := s.db.Query(`
		SELECT category, -SUM(amount_cents)
		FROM transactions
		WHERE bot = ? AND chat_id = ? AND amount_cents < 0 AND occurred_at >= ?
		GROUP BY category`, bot, chatID, fmtTime(since),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var cat string
		var cents int64
		if err := rows.Scan(&cat, &cents); err != nil {
			return nil, err
		}
		result[cat] = cents
	}
	return result, rows.Err()
}

// --- Goals ---

// AddGoal stores a new savings goal.
func (s *Store) AddGoal(g Goal) error {
	now := fmtTime(time.Now())
	deadline := ""
	if !g.Deadline.IsZero() {
		deadline = fmtTime(g.Deadline)
	}
	status := g.Status
	if status == "" {
		status = GoalActive
	}
	_, err := s.db.Exec(`
		INSERT INTO goals (id, bot, chat_id, name, target_cents, saved_cents, deadline, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Bot, g.ChatID, g.Name, g.TargetCents, g.SavedCents, deadline, status, now, now,
	)
	return err
}

// UpdateGoal sets the saved amount and status of a goal.
func (s *Store) UpdateGoal(id string, savedCents int64, status string) error {
	res, err := s.db.Exec(`UPDATE goals SET saved_cents = ?, status = ?, updated_at = ? WHERE id = ?`,
		savedCents, status, fmtTime(time.Now()), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListGoals returns all goals for (bot, chat), newest first.
func (s *Store) ListGoals(bot string, chatID int64) ([]Goal, error) {
	rows, err := s.db.Query(`
		SELECT id, bot, chat_id, name, target_cents, saved_cents, deadline, status, created_at, updated_at
		FROM goals WHERE bot = ? AND chat_id = ? ORDER BY created_at DESC`, bot, chatID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Goal
	for rows.Next() {
		var g Goal
		var deadline, createdAt, updatedAt string
		if err := rows.Scan(&g.ID, &g.Bot, &g.ChatID, &g.Name, &g.TargetCents, &g.SavedCents, &deadline, &g.Status, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if deadline != "" {
			if g.Deadline, err = parseTime(deadline); err != nil {
				return nil, fmt.Errorf("parsing deadline: %w", err)
			}
		}
		if g.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if g.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		results = append(results, g)
	}
	return results, rows.Err()
}

// GetGoal returns a goal by id.
func (s *Store) GetGoal(id string) (Goal, error) {
	var g Goal
	var deadline, createdAt, updatedAt string
	err := s.db.QueryRow(`
		SELECT id, bot, chat_id, name, target_cents, saved_cents, deadline, status, created_at, updated_at
		FROM goals WHERE id = ?`, id,
	).Scan(&g.ID, &g.Bot, &g.ChatID, &g.Name, &g.TargetCents, &g.SavedCents, &deadline, &g.Status, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Goal{}, ErrNotFound
	}
	if err != nil {
		return Goal{}, err
	}
	if deadline != "" {
		if g.Deadline, err = parseTime(deadline); err != nil {
			return Goal{}, fmt.Errorf("parsing deadline: %w", err)
		}
	}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return Goal{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if g.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Goal{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return g, nil
}

// --- Trade audit log ---

// LogTrade records one brokerage order attempt.
func (s *Store) LogTrade(t TradeRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO trade_log (id, bot, symbol, side, qty, order_type, status, order_id, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Bot, t.Symbol, t.Side, t.Qty, t.OrderType, t.Status, t.OrderID, t.Error, fmtTime(t.CreatedAt),
	)
	return err
}

// RecentTrades returns the most recent trade log entries for a bot.
func (s *Store) RecentTrades(bot string, limit int) ([]TradeRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, bot, symbol, side, qty, order_type, status, order_id, error, created_at
		FROM trade_log WHERE bot = ? ORDER BY created_at DESC LIMIT ?`, bot, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []TradeRecord
	for rows.Next() {
		var t TradeRecord
		var createdAt string
		if err := rows.Scan(&t.ID, &t.Bot, &t.Symbol, &t.Side, &t.Qty, &t.OrderType, &t.Status, &t.OrderID, &t.Error, &createdAt); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// --- Chat settings ---

// SetChatModel sets the model override for one (bot, chat) pair.
// Pass an empty model to clear the override.
func (s *Store) SetChatModel(bot string, chatID int64, model string) error {
	_, err := s.db.Exec(`
		INSERT INTO chat_settings (bot, chat_id, model, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(bot, chat_id) DO UPDATE SET model = excluded.model, updated_at = excluded.updated_at`,
		bot, chatID, model, fmtTime(time.Now()),
	)
	return err
}

// ChatModel returns the model override for (bot, chat), or "" when unset.
func (s *Store) ChatModel(bot string, chatID int64) (string, error) {
	var model string
	err := s.db.QueryRow(`SELECT model FROM chat_settings WHERE bot = ? AND chat_id = ?`, bot, chatID).Scan(&model)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return model, err
}

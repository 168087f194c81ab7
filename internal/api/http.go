// Package api exposes the management surface: a bearer-authed HTTP API for
// inspecting and driving the bots, and an MCP server mirroring the tool
// catalog.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rodpglo1956/GloJohnStocky/internal/agent"
	"github.com/rodpglo1956/GloJohnStocky/internal/storage"
	"github.com/rodpglo1956/GloJohnStocky/internal/tools"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Researcher runs a detached prompt through a bot's tool loop.
type Researcher interface {
	OneShot(ctx context.Context, chatID int64, prompt string) (string, error)
}

// AppDeps holds dependencies for the HTTP handler.
type AppDeps struct {
	Store       *storage.Store
	Token       string
	Registries  map[string]*tools.Registry
	Researchers map[string]Researcher
}

// NewAppHandler builds the management API router. /health is public;
// everything else requires the bearer token.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/chat", handleChat(deps))
		r.Get("/tasks", handleListTasks(deps))
		r.Post("/tasks", handleCreateTask(deps))
		r.Get("/portfolio", handlePortfolio(deps))
		r.Get("/memory", handleListMemory(deps))
		r.Get("/memory/*", handleGetMemory(deps))
		r.Put("/memory/*", handlePutMemory(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type chatRequest struct {
	Bot     string `json:"bot"`
	Message string `json:"message"`
	ChatID  int64  `json:"chat_id"`
}

func handleChat(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Bot == "" || req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "bot and message are required")
			return
		}
		researcher, ok := deps.Researchers[req.Bot]
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown bot %q", req.Bot)
			return
		}

		reply, err := researcher.OneShot(r.Context(), req.ChatID, req.Message)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "running prompt: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"reply": reply})
	}
}

func handleListTasks(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bot := r.URL.Query().Get("bot")
		if bot == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "bot query parameter is required")
			return
		}
		limit := parseIntParam(r, "limit", 20, 100)

		tasks, err := deps.Store.ListTasks(bot, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list tasks: %v", err)
			return
		}
		if tasks == nil {
			tasks = []storage.Task{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tasks)
	}
}

type createTaskRequest struct {
	Bot         string `json:"bot"`
	ChatID      int64  `json:"chat_id"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Payload     string `json:"payload"`
	DueAt       string `json:"due_at"`
}

func handleCreateTask(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req createTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if req.Bot == "" || req.Kind == "" || req.Description == "" || req.DueAt == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "bot, kind, description and due_at are required")
			return
		}
		if _, ok := deps.Registries[req.Bot]; !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown bot %q", req.Bot)
			return
		}
		if err := tools.ValidateTask(req.Kind, req.Payload); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid task: %v", err)
			return
		}
		dueAt, err := time.Parse(time.RFC3339, req.DueAt)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "due_at must be RFC3339: %v", err)
			return
		}

		task := storage.Task{
			ID:          uuid.NewString(),
			Bot:         req.Bot,
			ChatID:      req.ChatID,
			Kind:        req.Kind,
			Description: req.Description,
			PayloadJSON: req.Payload,
			DueAt:       dueAt,
		}
		if err := deps.Store.CreateTask(task); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create task: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": task.ID, "status": storage.TaskPending})
	}
}

func handlePortfolio(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		registry, ok := deps.Registries[agent.BotStocky]
		if !ok {
			httpError(w, http.StatusServiceUnavailable, "api_error", "trading persona is not running")
			return
		}

		caller := tools.Caller{Bot: agent.BotStocky}
		account := registry.Execute(r.Context(), caller, "get_account", nil)
		if account.IsError {
			httpError(w, http.StatusBadGateway, "api_error", "fetching account: %s", account.Content)
			return
		}
		positions := registry.Execute(r.Context(), caller, "get_positions", nil)
		if positions.IsError {
			httpError(w, http.StatusBadGateway, "api_error", "fetching positions: %s", positions.Content)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"account":   account.Content,
			"positions": positions.Content,
		})
	}
}

func handleListMemory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := deps.Store.ListMemory(r.URL.Query().Get("prefix"))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list memory: %v", err)
			return
		}
		if entries == nil {
			entries = []storage.MemoryEntry{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	}
}

func handleGetMemory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		entry, err := deps.Store.GetMemory(key)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "no value stored under %q", key)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read memory: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entry)
	}
}

type putMemoryRequest struct {
	Value string `json:"value"`
}

func handlePutMemory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req putMemoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if err := deps.Store.SetMemory(key, req.Value, "api"); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to store memory: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "stored"})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

// httpError writes a JSON error envelope.
func httpError(w http.ResponseWriter, status int, errType, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"type":    errType,
			"message": fmt.Sprintf(format, args...),
		},
	})
}

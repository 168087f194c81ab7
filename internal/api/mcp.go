package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rodpglo1956/GloJohnStocky/internal/agent"
	"github.com/rodpglo1956/GloJohnStocky/internal/storage"
	"github.com/rodpglo1956/GloJohnStocky/internal/tools"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store      *storage.Store
	Registries map[string]*tools.Registry
}

// NewMCPServer exposes every bot's tool catalog over MCP, with tool names
// prefixed by the bot ("stocky_place_order"). Invocations run through the same
// dispatcher the model loop uses, scoped to the bot with no chat attached.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"stocky",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("Telegram assistant swarm: finance tracking, paper trading, and web research."),
		server.WithRecovery(),
	)

	for bot, registry := range deps.Registries {
		for _, spec := range registry.Catalog() {
			schema, err := json.Marshal(spec.InputSchema)
			if err != nil {
				continue
			}
			name := bot + "_" + spec.Name
			s.AddTool(
				mcp.NewToolWithRawSchema(name, fmt.Sprintf("[%s] %s", bot, spec.Description), schema),
				mcpDispatch(registry, bot, spec.Name),
			)
		}
	}

	s.AddResource(
		mcp.NewResource(
			"stocky://memory",
			"Shared Memory",
			mcp.WithResourceDescription("All shared memory entries as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceMemory(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"stocky://trades",
			"Trade Log",
			mcp.WithResourceDescription("Recent brokerage order attempts as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceTrades(deps),
	)

	return s
}

func mcpDispatch(registry *tools.Registry, bot, tool string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := registry.Execute(ctx, tools.Caller{Bot: bot}, tool, req.GetArguments())
		if res.IsError {
			return mcpError(res.Content), nil
		}
		return mcpText(res.Content), nil
	}
}

func mcpResourceMemory(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		entries, err := deps.Store.ListMemory("")
		if err != nil {
			return nil, fmt.Errorf("listing memory: %w", err)
		}

		type memoryEntry struct {
			Key       string `json:"key"`
			Value     string `json:"value"`
			UpdatedBy string `json:"updated_by"`
			UpdatedAt string `json:"updated_at"`
		}
		out := make([]memoryEntry, len(entries))
		for i, e := range entries {
			out[i] = memoryEntry{
				Key:       e.Key,
				Value:     e.Value,
				UpdatedBy: e.UpdatedBy,
				UpdatedAt: e.UpdatedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("marshaling memory: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceTrades(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		trades, err := deps.Store.RecentTrades(agent.BotStocky, 50)
		if err != nil {
			return nil, fmt.Errorf("listing trades: %w", err)
		}

		type tradeEntry struct {
			Symbol    string `json:"symbol"`
			Side      string `json:"side"`
			Qty       string `json:"qty"`
			Status    string `json:"status"`
			OrderID   string `json:"order_id,omitempty"`
			Error     string `json:"error,omitempty"`
			CreatedAt string `json:"created_at"`
		}
		out := make([]tradeEntry, len(trades))
		for i, t := range trades {
			out[i] = tradeEntry{
				Symbol:    t.Symbol,
				Side:      t.Side,
				Qty:       t.Qty,
				Status:    t.Status,
				OrderID:   t.OrderID,
				Error:     t.Error,
				CreatedAt: t.CreatedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("marshaling trades: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

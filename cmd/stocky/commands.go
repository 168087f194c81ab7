package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/rodpglo1956/GloJohnStocky/internal/api"
	"github.com/rodpglo1956/GloJohnStocky/internal/config"
	"github.com/rodpglo1956/GloJohnStocky/internal/storage"
	"github.com/rodpglo1956/GloJohnStocky/internal/tools"
)

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <key> <value>",
	Short: "Store a secret in the platform secret store",
	Long: `Store a secret in the platform secret store.

Valid secret keys:
  ` + strings.Join(config.SecretKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetSecret(key, value); err != nil {
			return err
		}

		printSuccess("Stored secret %s", key)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetSecretCmd)
}

// --- tasks ---

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage scheduled tasks",
}

var tasksListCmd = &cobra.Command{
	Use:   "list <bot>",
	Short: "List scheduled tasks for a persona",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/tasks?bot=%s&limit=%d", url.QueryEscape(args[0]), limit)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var tasks []struct {
			ID          string `json:"id"`
			Kind        string `json:"kind"`
			Status      string `json:"status"`
			Description string `json:"description"`
			DueAt       string `json:"due_at"`
		}
		if err := decodeJSON(resp, &tasks); err != nil {
			return err
		}

		if len(tasks) == 0 {
			fmt.Println("No tasks found.")
			return nil
		}

		for _, t := range tasks {
			desc := t.Description
			if len(desc) > 60 {
				desc = desc[:60] + "..."
			}
			fmt.Printf("%s  %-8s %-9s %s  %s\n",
				colorize(colorCyan, t.ID[:8]),
				t.Kind,
				t.Status,
				t.DueAt,
				desc,
			)
		}
		return nil
	},
}

var tasksAddCmd = &cobra.Command{
	Use:   "add <bot> <kind> <description>",
	Short: "Schedule a task",
	Long: `Schedule a task for a persona.

Examples:
  stocky tasks add money reminder "Pay the electricity bill" --due 2026-09-01T09:00:00Z
  stocky tasks add stocky report "Weekly portfolio report" --due 2026-09-01T16:00:00Z
  stocky tasks add hannah research "Summarize this week's chip industry news" --due 2026-08-29T08:00:00Z`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		due, _ := cmd.Flags().GetString("due")
		chatID, _ := cmd.Flags().GetInt64("chat")
		payload, _ := cmd.Flags().GetString("payload")

		if due == "" {
			return fmt.Errorf("--due is required (RFC3339, e.g. %s)", time.Now().UTC().Format(time.RFC3339))
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{
			"bot":         args[0],
			"kind":        args[1],
			"description": args[2],
			"due_at":      due,
			"chat_id":     chatID,
		}
		if payload != "" {
			body["payload"] = payload
		}

		resp, err := client.post(cmd.Context(), "/tasks", body)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Scheduled task %s", result["id"])
		return nil
	},
}

func init() {
	tasksListCmd.Flags().Int("limit", 20, "maximum number of tasks to list")
	tasksAddCmd.Flags().String("due", "", "when the task is due (RFC3339)")
	tasksAddCmd.Flags().Int64("chat", 0, "chat to deliver the result to")
	tasksAddCmd.Flags().String("payload", "", "JSON payload for trade tasks")
	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksAddCmd)
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <bot> <message>",
	Short: "Run a one-shot prompt through a bot's tool loop",
	Long: `Sends a single prompt to the named bot and prints the reply.
The exchange runs through the bot's full tool loop but is not added to any
Telegram conversation history.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		chatID, _ := cmd.Flags().GetInt64("chat")

		resp, err := client.post(cmd.Context(), "/chat", map[string]any{
			"bot":     args[0],
			"message": strings.Join(args[1:], " "),
			"chat_id": chatID,
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		fmt.Println(result["reply"])
		return nil
	},
}

func init() {
	chatCmd.Flags().Int64("chat", 0, "chat id for per-chat model overrides")
}

// --- portfolio ---

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Show the paper trading account and positions",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/portfolio")
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Printf("%s\n%s\n\n%s\n%s\n",
			colorize(colorBold, "Account"), result["account"],
			colorize(colorBold, "Positions"), result["positions"],
		)
		return nil
	},
}

// --- memory ---

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and edit the shared key-value memory",
}

var memoryListCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List memory entries, optionally under a key prefix",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/memory"
		if len(args) == 1 {
			path += "?prefix=" + url.QueryEscape(args[0])
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var entries []struct {
			Key       string `json:"key"`
			Value     string `json:"value"`
			UpdatedBy string `json:"updated_by"`
		}
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No entries found.")
			return nil
		}

		for _, e := range entries {
			value := e.Value
			if len(value) > 80 {
				value = value[:80] + "..."
			}
			fmt.Printf("%s = %s  %s\n",
				colorize(colorBold, e.Key),
				value,
				colorize(colorCyan, "("+e.UpdatedBy+")"),
			)
		}
		return nil
	},
}

var memoryGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show a memory entry as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/memory/"+args[0])
		if err != nil {
			return err
		}

		var entry any
		if err := decodeJSON(resp, &entry); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entry)
	},
}

var memorySetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a memory entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.put(cmd.Context(), "/memory/"+args[0], map[string]string{"value": args[1]})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Set %s = %s", args[0], args[1])
		return nil
	},
}

func init() {
	memoryCmd.AddCommand(memoryListCmd)
	memoryCmd.AddCommand(memoryGetCmd)
	memoryCmd.AddCommand(memorySetCmd)
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the bot tool catalogs over MCP (stdio transport)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		registries := make(map[string]*tools.Registry)
		for bot, groups := range personaToolGroups(cfg, store) {
			registry, err := tools.NewRegistry(groups...)
			if err != nil {
				return fmt.Errorf("building %s registry: %w", bot, err)
			}
			registries[bot] = registry
		}

		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Store:      store,
			Registries: registries,
		})
		return server.NewStdioServer(mcpSrv).Listen(cmd.Context(), os.Stdin, os.Stdout)
	},
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rodpglo1956/GloJohnStocky/internal/agent"
	"github.com/rodpglo1956/GloJohnStocky/internal/alpaca"
	"github.com/rodpglo1956/GloJohnStocky/internal/anthropic"
	"github.com/rodpglo1956/GloJohnStocky/internal/api"
	"github.com/rodpglo1956/GloJohnStocky/internal/browse"
	"github.com/rodpglo1956/GloJohnStocky/internal/config"
	"github.com/rodpglo1956/GloJohnStocky/internal/github"
	"github.com/rodpglo1956/GloJohnStocky/internal/scheduler"
	"github.com/rodpglo1956/GloJohnStocky/internal/search"
	"github.com/rodpglo1956/GloJohnStocky/internal/storage"
	"github.com/rodpglo1956/GloJohnStocky/internal/telegram"
	"github.com/rodpglo1956/GloJohnStocky/internal/tools"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the bot server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running bot server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "stocky.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// botSetup holds everything wired up for one persona.
type botSetup struct {
	registry     *tools.Registry
	orchestrator *agent.Orchestrator
	tgClient     *telegram.Client
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "stocky version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Ensure the management API token exists in the platform secret store.
	apiToken, err := config.EnsureAPIToken(cfg)
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("stocky is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("stocky is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	llm := anthropic.NewClient(cfg.Model.AnthropicAPIKey)

	bots, err := buildBots(cfg, store, llm)
	if err != nil {
		return err
	}
	if len(bots) == 0 {
		return fmt.Errorf("no bot tokens configured; set at least one of STOCKY_TELEGRAM_MONEY_TOKEN, STOCKY_TELEGRAM_STOCKY_TOKEN, STOCKY_TELEGRAM_HANNAH_TOKEN")
	}

	registries := make(map[string]*tools.Registry, len(bots))
	researchers := make(map[string]api.Researcher, len(bots))
	runtimes := make(map[string]scheduler.BotRuntime, len(bots))
	for name, b := range bots {
		registries[name] = b.registry
		researchers[name] = b.orchestrator
		runtimes[name] = scheduler.BotRuntime{
			Registry:   b.registry,
			Researcher: b.orchestrator,
			Notifier:   b.tgClient,
		}
		slog.Info("persona configured", "bot", name, "tools", b.registry.Count())
	}

	// Build HTTP server for the management API.
	appHandler := api.NewAppHandler(api.AppDeps{
		Store:       store,
		Token:       apiToken,
		Registries:  registries,
		Researchers: researchers,
	})
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: appHandler,
	}

	poller := scheduler.New(store, runtimes)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "stocky listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		poller.Run(gctx)
		return nil
	})

	for name, b := range bots {
		listener := telegram.NewListener(name, b.tgClient, telegram.NewHandler(
			name, b.tgClient, b.orchestrator, store, b.registry, cfg.Model.DefaultModel,
		))
		g.Go(func() error {
			if err := listener.Run(gctx); err != nil {
				return fmt.Errorf("%s listener: %w", name, err)
			}
			return nil
		})
	}

	// Shut the HTTP server down once the context is cancelled; the poller and
	// listeners exit on their own.
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// personaToolGroups assembles the tool catalog of each persona. Tool groups
// that need credentials the config does not carry are left out.
func personaToolGroups(cfg config.Config, store *storage.Store) map[string][][]tools.Definition {
	var searcher tools.Searcher
	if cfg.Search.BraveAPIKey != "" {
		searcher = search.NewClient(cfg.Search.BraveAPIKey)
	}
	var gh *github.Client
	if cfg.GitHub.Token != "" {
		gh = github.NewClient(cfg.GitHub.Token)
	}

	shared := func(bot string) [][]tools.Definition {
		return [][]tools.Definition{
			tools.MemoryTools(store),
			tools.MailboxTools(store, agent.Peers(bot)),
			tools.TaskTools(store),
		}
	}

	moneyGroups := append([][]tools.Definition{tools.FinanceTools(store)}, shared(agent.BotMoney)...)
	if searcher != nil {
		moneyGroups = append(moneyGroups, tools.WebTools(searcher, nil))
	}

	var stockyGroups [][]tools.Definition
	if cfg.Alpaca.KeyID != "" && cfg.Alpaca.SecretKey != "" {
		broker := alpaca.NewClient(cfg.Alpaca.KeyID, cfg.Alpaca.SecretKey)
		stockyGroups = append(stockyGroups, tools.TradingTools(store, broker))
	}
	if gh != nil {
		if owner, repo, ok := config.SplitRepo(cfg.GitHub.StockyRepo); ok {
			stockyGroups = append(stockyGroups, tools.RepoTools(gh, owner, repo))
		}
	}
	stockyGroups = append(stockyGroups, shared(agent.BotStocky)...)
	if searcher != nil {
		stockyGroups = append(stockyGroups, tools.WebTools(searcher, nil))
	}

	var hannahGroups [][]tools.Definition
	if gh != nil {
		if owner, repo, ok := config.SplitRepo(cfg.GitHub.HannahRepo); ok {
			hannahGroups = append(hannahGroups, tools.RepoTools(gh, owner, repo))
		}
	}
	hannahGroups = append(hannahGroups, shared(agent.BotHannah)...)
	if searcher != nil {
		var renderer tools.Renderer
		if cfg.Browser.BaseURL != "" {
			renderer = browse.NewClient(cfg.Browser.BaseURL, cfg.Browser.Token)
		}
		hannahGroups = append(hannahGroups, tools.WebTools(searcher, renderer))
	}

	return map[string][][]tools.Definition{
		agent.BotMoney:  moneyGroups,
		agent.BotStocky: stockyGroups,
		agent.BotHannah: hannahGroups,
	}
}

// buildBots wires a tool registry, orchestrator, and Telegram client for every
// persona that has a bot token.
func buildBots(cfg config.Config, store *storage.Store, llm *anthropic.Client) (map[string]*botSetup, error) {
	tokens := map[string]string{
		agent.BotMoney:  cfg.Telegram.MoneyToken,
		agent.BotStocky: cfg.Telegram.StockyToken,
		agent.BotHannah: cfg.Telegram.HannahToken,
	}

	bots := make(map[string]*botSetup)
	for bot, groups := range personaToolGroups(cfg, store) {
		token := tokens[bot]
		if token == "" {
			continue
		}
		registry, err := tools.NewRegistry(groups...)
		if err != nil {
			return nil, fmt.Errorf("building %s registry: %w", bot, err)
		}
		bots[bot] = &botSetup{
			registry:     registry,
			orchestrator: agent.New(bot, llm, registry, store, cfg.Model.DefaultModel),
			tgClient:     telegram.NewClient(token),
		}
	}
	return bots, nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("stocky is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop stocky (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to stocky (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Model", "%s", cfg.Model.DefaultModel)

	personas := []struct {
		name  string
		token string
	}{
		{"Money bot", cfg.Telegram.MoneyToken},
		{"John Stocky", cfg.Telegram.StockyToken},
		{"Hannah", cfg.Telegram.HannahToken},
	}
	for _, p := range personas {
		if p.token != "" {
			printStatus(p.name, "configured")
		} else {
			printStatus(p.name, "no token")
		}
	}

	if cfg.Alpaca.KeyID != "" {
		printStatus("Brokerage", "configured (paper)")
	} else {
		printStatus("Brokerage", "not configured")
	}
	if cfg.Search.BraveAPIKey != "" {
		printStatus("Web search", "configured")
	} else {
		printStatus("Web search", "not configured")
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
)

// keychainService is the secret-store service name all secrets live under.
const keychainService = "stocky"

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	account string // secret-store account name, secrets only
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "STOCKY_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "STOCKY_SERVER_API_TOKEN",
		secret: true, account: "api_token",
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "model.anthropic_api_key", typ: kString, env: "STOCKY_ANTHROPIC_API_KEY",
		secret: true, account: "anthropic_api_key",
		apply:   func(cfg *Config, v any) { cfg.Model.AnthropicAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Model.AnthropicAPIKey },
	},
	{
		key: "model.default_model", typ: kString, env: "STOCKY_DEFAULT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Model.DefaultModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Model.DefaultModel },
	},
	{
		key: "storage.data_dir", typ: kString, env: "STOCKY_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "telegram.money_token", typ: kString, env: "STOCKY_TELEGRAM_MONEY_TOKEN",
		secret: true, account: "telegram_money_token",
		apply:   func(cfg *Config, v any) { cfg.Telegram.MoneyToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Telegram.MoneyToken },
	},
	{
		key: "telegram.stocky_token", typ: kString, env: "STOCKY_TELEGRAM_STOCKY_TOKEN",
		secret: true, account: "telegram_stocky_token",
		apply:   func(cfg *Config, v any) { cfg.Telegram.StockyToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Telegram.StockyToken },
	},
	{
		key: "telegram.hannah_token", typ: kString, env: "STOCKY_TELEGRAM_HANNAH_TOKEN",
		secret: true, account: "telegram_hannah_token",
		apply:   func(cfg *Config, v any) { cfg.Telegram.HannahToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Telegram.HannahToken },
	},
	{
		key: "alpaca.key_id", typ: kString, env: "STOCKY_ALPACA_KEY_ID",
		secret: true, account: "alpaca_key_id",
		apply:   func(cfg *Config, v any) { cfg.Alpaca.KeyID = v.(string) },
		extract: func(cfg Config) any { return cfg.Alpaca.KeyID },
	},
	{
		key: "alpaca.secret_key", typ: kString, env: "STOCKY_ALPACA_SECRET_KEY",
		secret: true, account: "alpaca_secret_key",
		apply:   func(cfg *Config, v any) { cfg.Alpaca.SecretKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Alpaca.SecretKey },
	},
	{
		key: "github.token", typ: kString, env: "STOCKY_GITHUB_TOKEN",
		secret: true, account: "github_token",
		apply:   func(cfg *Config, v any) { cfg.GitHub.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.GitHub.Token },
	},
	{
		key: "github.stocky_repo", typ: kString, env: "STOCKY_GITHUB_STOCKY_REPO",
		apply:   func(cfg *Config, v any) { cfg.GitHub.StockyRepo = v.(string) },
		extract: func(cfg Config) any { return cfg.GitHub.StockyRepo },
	},
	{
		key: "github.hannah_repo", typ: kString, env: "STOCKY_GITHUB_HANNAH_REPO",
		apply:   func(cfg *Config, v any) { cfg.GitHub.HannahRepo = v.(string) },
		extract: func(cfg Config) any { return cfg.GitHub.HannahRepo },
	},
	{
		key: "search.brave_api_key", typ: kString, env: "STOCKY_BRAVE_API_KEY",
		secret: true, account: "brave_api_key",
		apply:   func(cfg *Config, v any) { cfg.Search.BraveAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Search.BraveAPIKey },
	},
	{
		key: "browser.base_url", typ: kString, env: "STOCKY_BROWSER_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Browser.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Browser.BaseURL },
	},
	{
		key: "browser.token", typ: kString, env: "STOCKY_BROWSER_TOKEN",
		secret: true, account: "browser_token",
		apply:   func(cfg *Config, v any) { cfg.Browser.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Browser.Token },
	},
	{
		key: "log.level", typ: kString, env: "STOCKY_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

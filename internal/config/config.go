package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Server   ServerConfig
	Model    ModelConfig
	Storage  StorageConfig
	Telegram TelegramConfig
	Alpaca   AlpacaConfig
	GitHub   GitHubConfig
	Search   SearchConfig
	Browser  BrowserConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type ModelConfig struct {
	AnthropicAPIKey string
	DefaultModel    string
}

type StorageConfig struct {
	DataDir string
}

// TelegramConfig holds one bot token per persona. Personas without a token
// simply do not get a listener.
type TelegramConfig struct {
	MoneyToken  string
	StockyToken string
	HannahToken string
}

type AlpacaConfig struct {
	KeyID     string
	SecretKey string
}

// GitHubConfig names the notebook repository of each persona as "owner/repo".
type GitHubConfig struct {
	Token      string
	StockyRepo string
	HannahRepo string
}

type SearchConfig struct {
	BraveAPIKey string
}

type BrowserConfig struct {
	BaseURL string
	Token   string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Model: ModelConfig{
			DefaultModel: "claude-sonnet-4-20250514",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		GitHub: GitHubConfig{
			StockyRepo: "rodpglo1956/JohnStocky",
			HannahRepo: "rodpglo1956/GloResearchHannah",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.glostocky.app) and secrets
// fall back to macOS Keychain (service: stocky).
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/stocky/config.json
// and secrets live in $XDG_DATA_HOME/stocky/secrets.json or the environment.
//
// Environment variables (STOCKY_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret-store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, kc)

	if cfg.Model.AnthropicAPIKey == "" {
		msg := "missing required config: Anthropic API key. " +
			"Set it via environment variable STOCKY_ANTHROPIC_API_KEY" +
			apiKeyHint()
		return Config{}, fmt.Errorf("%s", msg)
	}
	if !cfg.Telegram.AnyToken() {
		return Config{}, fmt.Errorf("missing required config: no Telegram bot tokens. " +
			"Set at least one of STOCKY_TELEGRAM_MONEY_TOKEN, STOCKY_TELEGRAM_STOCKY_TOKEN, STOCKY_TELEGRAM_HANNAH_TOKEN")
	}

	return cfg, nil
}

// applySecrets fills any secret still empty from the platform secret store.
func applySecrets(cfg *Config, kc keychain) {
	for _, s := range specs {
		if !s.secret {
			continue
		}
		if s.extract(*cfg) != "" {
			continue
		}
		if v, err := kc.Get(keychainService, s.account); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}

// AnyToken reports whether at least one persona has a bot token.
func (t TelegramConfig) AnyToken() bool {
	return t.MoneyToken != "" || t.StockyToken != "" || t.HannahToken != ""
}

// SplitRepo splits an "owner/repo" value. Returns ok=false for anything else.
func SplitRepo(s string) (owner, repo string, ok bool) {
	owner, repo, ok = strings.Cut(s, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", false
	}
	return owner, repo, true
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGetSecret(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

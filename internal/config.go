package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultAPIURL is where the agent service listens out of the box
	DefaultAPIURL = "http://127.0.0.1:8001"

	envPrefix = "VAULT_AGENT"
	appDir    = "vault-agent"
)

// Config is the settings surface read by every component. It is loaded once
// by the command layer and passed to constructors explicitly.
type Config struct {
	APIURL              string    `mapstructure:"api_url" yaml:"api_url"`
	APIKey              string    `mapstructure:"api_key" yaml:"api_key"`
	ConversationContext bool      `mapstructure:"conversation_context" yaml:"conversation_context"`
	AutoConnect         bool      `mapstructure:"auto_connect" yaml:"auto_connect"`
	VaultPath           string    `mapstructure:"vault_path" yaml:"vault_path"`
	LedgerPath          string    `mapstructure:"ledger_path" yaml:"ledger_path"`
	LLM                 LLMConfig `mapstructure:"llm" yaml:"llm"`
	Log                 LogConfig `mapstructure:"log" yaml:"log"`
}

// LLMConfig is synced to the agent through the configure/reload/test endpoints
type LLMConfig struct {
	Provider   string `mapstructure:"provider" yaml:"provider"`
	Model      string `mapstructure:"model" yaml:"model"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`
	APIBase    string `mapstructure:"api_base" yaml:"api_base"`
	HybridMode bool   `mapstructure:"hybrid_mode" yaml:"hybrid_mode"`
	LocalModel string `mapstructure:"local_model" yaml:"local_model"`
}

// LogConfig controls the logger
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// flagKeys maps persistent CLI flags onto config keys
var flagKeys = map[string]string{
	"api-url": "api_url",
	"api-key": "api_key",
	"vault":   "vault_path",
	"ledger":  "ledger_path",
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		APIURL:              DefaultAPIURL,
		ConversationContext: true,
		AutoConnect:         true,
		VaultPath:           ".",
		LedgerPath:          DefaultLedgerPath(),
		LLM: LLMConfig{
			Provider:   "ollama",
			Model:      "qwen3:1.7b",
			LocalModel: "qwen3:1.7b",
		},
		Log: LogConfig{Level: "info"},
	}
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/vault-agent/config.yaml, falling back to ~/.config
func DefaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", appDir+".yaml")
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, appDir, "config.yaml")
}

// DefaultLedgerPath returns $XDG_DATA_HOME/vault-agent/ledger.db, falling back to ~/.local/share
func DefaultLedgerPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", appDir+"-ledger.db")
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, appDir, "ledger.db")
}

// LoadConfig reads the config file, environment (VAULT_AGENT_*) and any
// changed flags, in increasing order of precedence. An empty path means the
// default location, which may be absent; an explicit path must exist.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, &ConfigError{Key: key, Err: err}
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if explicit || !isNotExist(err) {
			return nil, &ConfigError{Key: path, Err: err}
		}
		LogDebug("No config file at %s, using defaults", path)
	} else {
		LogDebug("Loaded config from %s", v.ConfigFileUsed())
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &ConfigError{Key: path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("api_url", d.APIURL)
	v.SetDefault("api_key", d.APIKey)
	v.SetDefault("conversation_context", d.ConversationContext)
	v.SetDefault("auto_connect", d.AutoConnect)
	v.SetDefault("vault_path", d.VaultPath)
	v.SetDefault("ledger_path", d.LedgerPath)
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.api_base", d.LLM.APIBase)
	v.SetDefault("llm.hybrid_mode", d.LLM.HybridMode)
	v.SetDefault("llm.local_model", d.LLM.LocalModel)
	v.SetDefault("log.level", d.Log.Level)
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return true
	}
	return errors.Is(err, os.ErrNotExist)
}

// Validate checks the values the core depends on
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return &ConfigError{Key: "api_url", Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return &ConfigError{Key: "api_url", Err: fmt.Errorf("%q is not an http(s) URL", c.APIURL)}
	}
	if _, ok := LookupProvider(c.LLM.Provider); !ok {
		return &ConfigError{Key: "llm.provider", Err: fmt.Errorf("unknown provider %q (supported: %s)", c.LLM.Provider, strings.Join(ProviderIDs(), ", "))}
	}
	return nil
}

// WriteDefaultConfig writes DefaultConfig as YAML. Existing files are kept unless force is set.
func WriteDefaultConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return &ConfigError{Key: path, Err: os.ErrExist}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &ConfigError{Key: path, Err: err}
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return &ConfigError{Key: path, Err: fmt.Errorf("failed to marshal config: %w", err)}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return &ConfigError{Key: path, Err: err}
	}
	return nil
}

// Redacted returns a copy safe to print, with API keys masked
func (c Config) Redacted() Config {
	c.APIKey = MaskSecret(c.APIKey)
	c.LLM.APIKey = MaskSecret(c.LLM.APIKey)
	return c
}

// MaskSecret keeps the last four characters of a secret
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvPrefix is the prefix for environment variable overrides (e.g. HUBSYNC_HUBSPOT_TOKEN).
const EnvPrefix = "hubsync"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	HubSpot    HubSpotConfig    `toml:"hubspot"`
	MailerLite MailerLiteConfig `toml:"mailerlite"`
	Sync       SyncConfig       `toml:"sync"`
	Database   DatabaseConfig   `toml:"database"`
	Alert      AlertConfig      `toml:"alert"`
	Logging    LoggingConfig    `toml:"logging"`
	Mapping    []MappingConfig  `toml:"mapping" ignored:"true"`
}

// HubSpotConfig contains HubSpot CRM API settings.
type HubSpotConfig struct {
	Token             string  `toml:"token"`
	BaseURL           string  `toml:"base_url" split_words:"true"`
	PageSize          int     `toml:"page_size" split_words:"true"`
	RequestsPerSecond float64 `toml:"requests_per_second" split_words:"true"`
	TimeoutSeconds    int     `toml:"timeout_seconds" split_words:"true"`
}

// MailerLiteConfig contains MailerLite API settings.
type MailerLiteConfig struct {
	APIKey            string  `toml:"api_key" split_words:"true"`
	BaseURL           string  `toml:"base_url" split_words:"true"`
	PageSize          int     `toml:"page_size" split_words:"true"`
	RequestsPerSecond float64 `toml:"requests_per_second" split_words:"true"`
	TimeoutSeconds    int     `toml:"timeout_seconds" split_words:"true"`
}

// SyncConfig controls the reconciliation run.
type SyncConfig struct {
	RateLimitBackoffSeconds int    `toml:"rate_limit_backoff_seconds" split_words:"true"`
	NormalizeEmails         bool   `toml:"normalize_emails" split_words:"true"`
	DryRun                  bool   `toml:"dry_run" split_words:"true"`
	DumpDir                 string `toml:"dump_dir" split_words:"true"`
}

// DatabaseConfig contains database connection settings. An empty path disables run history.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns" split_words:"true"`
	MaxIdleConns int    `toml:"max_idle_conns" split_words:"true"`
}

// AlertConfig contains operator notification settings for fatal failures.
type AlertConfig struct {
	Slack SlackConfig `toml:"slack"`
	SMTP  SMTPConfig  `toml:"smtp"`
}

// SlackConfig configures the Slack incoming webhook notifier.
type SlackConfig struct {
	WebhookURL string `toml:"webhook_url" split_words:"true"`
}

// SMTPConfig configures the email notifier.
type SMTPConfig struct {
	Host     string   `toml:"host"`
	Port     int      `toml:"port"`
	Username string   `toml:"username"`
	Password string   `toml:"password"`
	From     string   `toml:"from"`
	To       []string `toml:"to"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `toml:"level"`
}

// MappingConfig is one source property to destination field entry of the field mapping table.
type MappingConfig struct {
	Source      string `toml:"source"`
	Destination string `toml:"destination"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides config values from HUBSYNC_* environment variables.
func ApplyEnv(config *Config) error {
	if err := envconfig.Process(EnvPrefix, config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks the settings a sync run cannot do without.
func (c *Config) Validate() error {
	if c.HubSpot.Token == "" {
		return fmt.Errorf("%w: hubspot.token", ErrMissingCredentials)
	}
	if c.MailerLite.APIKey == "" {
		return fmt.Errorf("%w: mailerlite.api_key", ErrMissingCredentials)
	}
	if c.Sync.RateLimitBackoffSeconds < 0 {
		return fmt.Errorf("%w: sync.rate_limit_backoff_seconds must not be negative", ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(c.Mapping))
	for i, m := range c.Mapping {
		if m.Source == "" || m.Destination == "" {
			return fmt.Errorf("%w: mapping entry %d needs source and destination", ErrInvalidConfig, i)
		}
		if seen[m.Destination] {
			return fmt.Errorf("%w: duplicate mapping destination %q", ErrInvalidConfig, m.Destination)
		}
		seen[m.Destination] = true
	}

	return nil
}

// Package config loads relaybot settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	PlatformDiscord = "discord"
	PlatformSlack   = "slack"
)

// Config is the flat process configuration.
type Config struct {
	Platform      string `envconfig:"PLATFORM" default:"discord"`
	DiscordToken  string `envconfig:"DISCORD_TOKEN"`
	SlackBotToken string `envconfig:"SLACK_BOT_TOKEN"`
	SlackAppToken string `envconfig:"SLACK_APP_TOKEN"`

	WebhookURL           string        `envconfig:"WEBHOOK_URL"`
	DMWebhookURL         string        `envconfig:"DM_WEBHOOK_URL"`
	WebhookTimeout       time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s"`
	WebhookRetryAttempts int           `envconfig:"WEBHOOK_RETRY_ATTEMPTS" default:"1"`
	WebhookRetryBackoff  time.Duration `envconfig:"WEBHOOK_RETRY_BACKOFF" default:"500ms"`

	APIHost   string `envconfig:"API_HOST"`
	APIPort   int    `envconfig:"API_PORT"`
	APISecret string `envconfig:"API_SECRET"`

	Debug    bool   `envconfig:"DEBUG"`
	LogFile  string `envconfig:"LOG_FILE" default:"logs/relaybot.log"`
	LogStore string `envconfig:"LOG_STORE" default:"file"`
	LogDB    string `envconfig:"LOG_DB" default:"logs/relaybot.db"`

	InputMode      string `envconfig:"INPUT_MODE" default:"composer"`
	DefaultChannel string `envconfig:"DEFAULT_CHANNEL" default:"general"`
	FactsURL       string `envconfig:"FACTS_URL"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC"`
}

// Load reads env files, then the process environment. The shared API secret
// falls back to the bot token. Load does not validate.
func Load() (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	cfg.Platform = strings.ToLower(strings.TrimSpace(cfg.Platform))
	cfg.InputMode = strings.ToLower(strings.TrimSpace(cfg.InputMode))
	cfg.LogStore = strings.ToLower(strings.TrimSpace(cfg.LogStore))
	if cfg.APISecret == "" {
		cfg.APISecret = cfg.BotToken()
	}
	return cfg, nil
}

// BotToken returns the token of the selected platform.
func (c *Config) BotToken() string {
	if c.Platform == PlatformSlack {
		return c.SlackBotToken
	}
	return c.DiscordToken
}

// Validate reports every missing or malformed required option.
func (c *Config) Validate() error {
	var errs []error
	switch c.Platform {
	case PlatformDiscord:
		if c.DiscordToken == "" {
			errs = append(errs, errors.New("DISCORD_TOKEN is not set"))
		}
	case PlatformSlack:
		if c.SlackBotToken == "" {
			errs = append(errs, errors.New("SLACK_BOT_TOKEN is not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("PLATFORM %q is not supported (discord, slack)", c.Platform))
	}
	if strings.TrimSpace(c.APIHost) == "" {
		errs = append(errs, errors.New("API_HOST is not set"))
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, errors.New("API_PORT is not set or out of range"))
	}
	switch c.InputMode {
	case "composer", "single":
	default:
		errs = append(errs, fmt.Errorf("INPUT_MODE %q is not supported (composer, single)", c.InputMode))
	}
	switch c.LogStore {
	case "file", "sqlite", "none":
	default:
		errs = append(errs, fmt.Errorf("LOG_STORE %q is not supported (file, sqlite, none)", c.LogStore))
	}
	if c.WebhookRetryAttempts < 1 {
		errs = append(errs, errors.New("WEBHOOK_RETRY_ATTEMPTS must be at least 1"))
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}
	return errors.Join(errs...)
}

// APIAddr is the listen address of the control server.
func (c *Config) APIAddr() string {
	return net.JoinHostPort(c.APIHost, strconv.Itoa(c.APIPort))
}

// HealthURL is the liveness endpoint of the local control server.
func (c *Config) HealthURL() string {
	host := c.APIHost
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.APIPort)) + "/healthz"
}

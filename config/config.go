package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/robmorgan/lightplan/chat"
	"github.com/robmorgan/lightplan/logger"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix = "LIGHTPLAN_"

	// MaxRuntimeAdjustMs bounds the runtime adjustment in either direction.
	MaxRuntimeAdjustMs = 30000
	// RuntimeAdjustStepMs is the step used by interactive adjust controls.
	RuntimeAdjustStepMs = 100
)

// Config represents options that configure the global behavior of the program
type Config struct {
	Chat     ChatConfig   `yaml:"chat"`
	Run      RunConfig    `yaml:"run"`
	OSC      ListenConfig `yaml:"osc"`
	Metrics  ListenConfig `yaml:"metrics"`
	LogLevel string       `yaml:"log_level"`
}

// ChatConfig holds the chat connection and retry settings.
type ChatConfig struct {
	Server         string        `yaml:"server"`
	Username       string        `yaml:"username"`
	Token          string        `yaml:"token"`
	Channel        string        `yaml:"channel"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// MaxRetries bounds automatic reconnects when running without a console.
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	// RateLimit is the number of messages allowed per 30 seconds. 0 disables the limit.
	RateLimit int `yaml:"rate_limit"`
}

// RunConfig holds the delay compensation applied to every run.
type RunConfig struct {
	StreamDelayMs int64 `yaml:"stream_delay_ms"`
	DelayAdjustMs int64 `yaml:"delay_adjust_ms"`
}

// ListenConfig is an optional listener address. An empty Listen disables it.
type ListenConfig struct {
	Listen string `yaml:"listen"`
}

// ValidationError lists every invalid setting found in a Config.
type ValidationError struct {
	Problems []string
}

func (err ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(err.Problems, "; ")
}

// NewConfig creates a Config object with reasonable defaults for real usage
func NewConfig() Config {
	return Config{
		Chat: ChatConfig{
			Server:         chat.DefaultServer,
			ConnectTimeout: chat.DefaultDialTimeout,
			MaxRetries:     3,
			RetryDelay:     5 * time.Second,
			RateLimit:      20,
		},
		LogLevel: logger.LevelInfo.String(),
	}
}

// Load reads the YAML file at path on top of the defaults, applies LIGHTPLAN_* environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with a custom environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := NewConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.WithStackTrace(err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.WithStackTrace(fmt.Errorf("parsing config %s: %w", path, err))
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"CHAT_SERVER":    &cfg.Chat.Server,
		"CHAT_USERNAME":  &cfg.Chat.Username,
		"CHAT_TOKEN":     &cfg.Chat.Token,
		"CHAT_CHANNEL":   &cfg.Chat.Channel,
		"OSC_LISTEN":     &cfg.OSC.Listen,
		"METRICS_LISTEN": &cfg.Metrics.Listen,
		"LOG_LEVEL":      &cfg.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int64{
		"STREAM_DELAY_MS": &cfg.Run.StreamDelayMs,
		"DELAY_ADJUST_MS": &cfg.Run.DelayAdjustMs,
	}
	for key, dst := range ints {
		v, ok := lookup(envPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return errors.WithStackTrace(fmt.Errorf("%s%s: %w", envPrefix, key, err))
		}
		*dst = n
	}

	if v, ok := lookup(envPrefix + "CHAT_RATE_LIMIT"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.WithStackTrace(fmt.Errorf("%sCHAT_RATE_LIMIT: %w", envPrefix, err))
		}
		cfg.Chat.RateLimit = n
	}

	return nil
}

// Validate checks the settings a run depends on.
func (cfg Config) Validate() error {
	var problems []string

	if cfg.Chat.Server == "" {
		problems = append(problems, "chat.server is required")
	}
	if cfg.Chat.MaxRetries < 0 {
		problems = append(problems, "chat.max_retries must not be negative")
	}
	if cfg.Chat.RetryDelay < 0 {
		problems = append(problems, "chat.retry_delay must not be negative")
	}
	if cfg.Chat.RateLimit < 0 {
		problems = append(problems, "chat.rate_limit must not be negative")
	}
	if cfg.Run.StreamDelayMs < 0 {
		problems = append(problems, "run.stream_delay_ms must not be negative")
	}
	if cfg.Run.DelayAdjustMs < -MaxRuntimeAdjustMs || cfg.Run.DelayAdjustMs > MaxRuntimeAdjustMs {
		problems = append(problems, fmt.Sprintf("run.delay_adjust_ms must be within ±%d", MaxRuntimeAdjustMs))
	}
	if _, err := logger.ParseLevel(cfg.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return errors.WithStackTrace(ValidationError{Problems: problems})
	}
	return nil
}

// ChatCredentialsSet reports whether enough is configured to log in to chat.
func (cfg Config) ChatCredentialsSet() bool {
	return cfg.Chat.Username != "" && cfg.Chat.Channel != ""
}

// ClientConfig converts the chat settings for chat.New.
func (c ChatConfig) ClientConfig() chat.Config {
	return chat.Config{
		Server:      c.Server,
		Nick:        c.Username,
		Secret:      c.Token,
		Channel:     c.Channel,
		DialTimeout: c.ConnectTimeout,
		RateLimit:   c.RateLimit,
	}
}

// ClampRuntimeAdjust bounds ms to ±MaxRuntimeAdjustMs.
func ClampRuntimeAdjust(ms int64) int64 {
	if ms > MaxRuntimeAdjustMs {
		return MaxRuntimeAdjustMs
	}
	if ms < -MaxRuntimeAdjustMs {
		return -MaxRuntimeAdjustMs
	}
	return ms
}

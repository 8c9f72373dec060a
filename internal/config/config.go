// Package config provides Viper-based configuration loading for the chat server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultAddr is the listen/dial address used when none is configured.
const DefaultAddr = "127.0.0.1:8080"

// ListenConfig holds TCP listener settings.
type ListenConfig struct {
	// Addr is the "host:port" bind address for the TCP listener.
	Addr string `mapstructure:"addr"`
	// ReadTimeout is the per-read timeout for client connections.
	// Zero disables read deadlines.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-write timeout for client connections.
	// Zero disables write deadlines.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ChatConfig holds protocol limits and buffer capacities.
type ChatConfig struct {
	// NicknameMaxLen is the maximum nickname length in runes; longer
	// nicknames are truncated.
	NicknameMaxLen int `mapstructure:"nickname_max_len"`
	// MessageMaxLen is the maximum chat message length in runes; longer
	// messages are truncated before broadcast.
	MessageMaxLen int `mapstructure:"message_max_len"`
	// FanoutBuffer is the per-subscriber fanout channel capacity.
	FanoutBuffer int `mapstructure:"fanout_buffer"`
	// OutboundBuffer is the per-client outbound queue capacity.
	OutboundBuffer int `mapstructure:"outbound_buffer"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Listen  ListenConfig  `mapstructure:"listen"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateListen(c.Listen); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateChat(c.Chat); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateListen(l ListenConfig) error {
	var errs []string
	if l.Addr == "" {
		errs = append(errs, "listen.addr must not be empty")
	}
	if l.ReadTimeout < 0 {
		errs = append(errs, "listen.read_timeout must not be negative")
	}
	if l.WriteTimeout < 0 {
		errs = append(errs, "listen.write_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateChat(c ChatConfig) error {
	var errs []string
	if c.NicknameMaxLen < 1 {
		errs = append(errs, fmt.Sprintf("chat.nickname_max_len must be >= 1, got %d", c.NicknameMaxLen))
	}
	if c.MessageMaxLen < 1 {
		errs = append(errs, fmt.Sprintf("chat.message_max_len must be >= 1, got %d", c.MessageMaxLen))
	}
	if c.FanoutBuffer < 1 {
		errs = append(errs, fmt.Sprintf("chat.fanout_buffer must be >= 1, got %d", c.FanoutBuffer))
	}
	if c.OutboundBuffer < 1 {
		errs = append(errs, fmt.Sprintf("chat.outbound_buffer must be >= 1, got %d", c.OutboundBuffer))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment
// variable overrides, and validates the result. An empty path skips the
// file and loads defaults plus environment overrides only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with CHATD_ prefix
	v.SetEnvPrefix("CHATD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen.addr", DefaultAddr)
	v.SetDefault("listen.read_timeout", "0s")
	v.SetDefault("listen.write_timeout", "30s")

	v.SetDefault("chat.nickname_max_len", 32)
	v.SetDefault("chat.message_max_len", 1000)
	v.SetDefault("chat.fanout_buffer", 1000)
	v.SetDefault("chat.outbound_buffer", 100)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Package config loads server configuration via viper, bound to the
// flags cmd/bedrockd registers with cobra, replacing the teacher's
// hard-coded loadConfig() struct literal in core/main.go.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/voidworks/bedrockd/internal/bedrock"
)

// Config is the immutable-by-reference server configuration every
// session's state machine is constructed with, per SPEC_FULL.md §9's
// "pass by reference through construction rather than as shared
// mutable global" design note.
type Config struct {
	BindAddress           string        `mapstructure:"bind_address"`
	ServerProtocolVersion int32         `mapstructure:"server_protocol_version"`
	Compression           string        `mapstructure:"compression"`
	CompressionThreshold  int           `mapstructure:"compression_threshold"`
	ThrottleEnabled       bool          `mapstructure:"throttle_enabled"`
	ThrottleThreshold     int           `mapstructure:"throttle_threshold"`
	ThrottleScalar        float64       `mapstructure:"throttle_scalar"`
	MTU                   int           `mapstructure:"mtu"`
	SessionTimeout        time.Duration `mapstructure:"session_timeout"`
	WorldPath             string        `mapstructure:"world_path"`
	LogLevel              string        `mapstructure:"log_level"`
}

// Defaults returns the configuration a fresh viper instance is seeded
// with before flags/env/file overrides apply.
func Defaults() Config {
	return Config{
		BindAddress:           "0.0.0.0:19132",
		ServerProtocolVersion: 712,
		Compression:           "deflate",
		CompressionThreshold:  256,
		ThrottleEnabled:       true,
		ThrottleThreshold:     5,
		ThrottleScalar:        0.1,
		MTU:                   1400,
		SessionTimeout:        5 * time.Second,
		WorldPath:             "world.bolt",
		LogLevel:              "info",
	}
}

// Load builds a Config from v, applying defaults for anything the
// caller's flags/env/file didn't set. v is expected to already have
// BindPFlags/SetEnvPrefix/AutomaticEnv/ReadInConfig (if a config file
// was given) called against it by cmd/bedrockd.
func Load(v *viper.Viper) (Config, error) {
	cfg := Defaults()
	v.SetDefault("bind_address", cfg.BindAddress)
	v.SetDefault("server_protocol_version", cfg.ServerProtocolVersion)
	v.SetDefault("compression", cfg.Compression)
	v.SetDefault("compression_threshold", cfg.CompressionThreshold)
	v.SetDefault("throttle_enabled", cfg.ThrottleEnabled)
	v.SetDefault("throttle_threshold", cfg.ThrottleThreshold)
	v.SetDefault("throttle_scalar", cfg.ThrottleScalar)
	v.SetDefault("mtu", cfg.MTU)
	v.SetDefault("session_timeout", cfg.SessionTimeout)
	v.SetDefault("world_path", cfg.WorldPath)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "config: unmarshal")
	}
	return cfg, nil
}

// CompressionAlgorithm resolves the configured compression name into
// the bedrock package's enum, defaulting to Deflate for any
// unrecognized value.
func (c Config) CompressionAlgorithm() bedrock.CompressionAlgorithm {
	switch strings.ToLower(c.Compression) {
	case "snappy":
		return bedrock.CompressionSnappy
	case "none":
		return bedrock.CompressionNone
	default:
		return bedrock.CompressionDeflate
	}
}

// StateMachineConfig narrows Config down to the fields
// internal/bedrock.StateMachine needs at construction.
func (c Config) StateMachineConfig() bedrock.Config {
	return bedrock.Config{
		ServerProtocolVersion: c.ServerProtocolVersion,
		Compression:           c.CompressionAlgorithm(),
		CompressionThreshold:  c.CompressionThreshold,
		ThrottleEnabled:       c.ThrottleEnabled,
		ThrottleThreshold:     byte(c.ThrottleThreshold),
		ThrottleScalar:        float32(c.ThrottleScalar),
	}
}

// Package config loads verifier configuration: defaults, an optional YAML
// file, then environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	ListenAddr    string        `koanf:"listen_addr"`
	PackDir       string        `koanf:"pack_dir"`
	Tier          string        `koanf:"tier"`
	RulesFile     string        `koanf:"rules_file"`
	AnchorsFile   string        `koanf:"anchors_file"`
	AnchorTimeout time.Duration `koanf:"anchor_timeout"`
	LogLevel      string        `koanf:"log_level"`
	LogJSON       bool          `koanf:"log_json"`
	ReadTimeout   time.Duration `koanf:"read_timeout"`
	WriteTimeout  time.Duration `koanf:"write_timeout"`
}

func defaults() Config {
	return Config{
		ListenAddr:    ":9020",
		AnchorTimeout: 10 * time.Second,
		LogLevel:      "info",
		ReadTimeout:   5 * time.Second,
		WriteTimeout:  30 * time.Second,
	}
}

// Load reads configuration. path may be empty (no file).
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := k.Unmarshal("", &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString("VCP_LISTEN_ADDR", &cfg.ListenAddr)
	setString("VCP_PACK_DIR", &cfg.PackDir)
	setString("VCP_TIER", &cfg.Tier)
	setString("VCP_RULES_FILE", &cfg.RulesFile)
	setString("VCP_ANCHORS_FILE", &cfg.AnchorsFile)
	setString("VCP_LOG_LEVEL", &cfg.LogLevel)

	if v := os.Getenv("VCP_LOG_JSON"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LogJSON = b
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	setDuration("VCP_ANCHOR_TIMEOUT", &cfg.AnchorTimeout)
	setDuration("VCP_READ_TIMEOUT", &cfg.ReadTimeout)
	setDuration("VCP_WRITE_TIMEOUT", &cfg.WriteTimeout)
}

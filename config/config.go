// Package config handles loading and managing application configuration
// from YAML files, an optional .env file and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// QR holds the default rendering parameters for QR codes.
type QR struct {
	Size        float64 `yaml:"size"`
	Level       string  `yaml:"level"`
	ClearArea   bool    `yaml:"clear_area"`
	OverlaySize float64 `yaml:"overlay_size"`
	Padding     float64 `yaml:"padding"`
	Foreground  string  `yaml:"foreground"`
	Background  string  `yaml:"background"`
	MemoSize    int     `yaml:"memo_size"`
	MaxSize     float64 `yaml:"max_size"`
}

// Config holds all application configuration values.
type Config struct {
	Port          int                 `yaml:"port"`
	DataDir       string              `yaml:"data_dir"`
	LogLevel      string              `yaml:"log_level"`
	Encoder       string              `yaml:"encoder"`
	QR            QR                  `yaml:"qr"`
	WebhookURL    string              `yaml:"webhook_url"`
	SessionTTL    Duration            `yaml:"session_ttl"`
	SweepInterval Duration            `yaml:"sweep_interval"`
	Network       string              `yaml:"network"`
	RPC           map[string][]string `yaml:"rpc"`
	RPCURL        string              `yaml:"rpc_url"`
	RPCTimeout    Duration            `yaml:"rpc_timeout"`
}

// Duration is a wrapper around time.Duration that supports YAML unmarshalling
// from human-readable strings like "30s", "5m", "1h".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// defaults returns a Config populated with sensible default values.
func defaults() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return &Config{
		Port:     8570,
		DataDir:  filepath.Join(homeDir, ".qrkit"),
		LogLevel: "info",
		Encoder:  "go-qrcode",
		QR: QR{
			Size:        280,
			Level:       "M",
			OverlaySize: 76,
			Padding:     10,
			Foreground:  "#000000",
			Background:  "#ffffff",
			MemoSize:    64,
			MaxSize:     4096,
		},
		SessionTTL:    Duration{5 * time.Minute},
		SweepInterval: Duration{30 * time.Second},
		Network:       "mainnet",
		RPCTimeout:    Duration{15 * time.Second},
	}
}

// Load reads configuration from the YAML file at path, falling back to
// defaults if the file does not exist. A .env file in the same directory is
// loaded into the process environment (existing variables win), then
// environment variables with the QRKIT_ prefix override any file or default
// values.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// File doesn't exist, proceed with defaults.
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides applies QRKIT_* environment variable overrides to cfg.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QRKIT_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("QRKIT_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("QRKIT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("QRKIT_ENCODER"); v != "" {
		cfg.Encoder = v
	}
	if v := os.Getenv("QRKIT_QR_LEVEL"); v != "" {
		cfg.QR.Level = v
	}
	if v := os.Getenv("QRKIT_QR_SIZE"); v != "" {
		if s, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.QR.Size = s
		}
	}
	if v := os.Getenv("QRKIT_QR_MAX_SIZE"); v != "" {
		if s, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.QR.MaxSize = s
		}
	}
	if v := os.Getenv("QRKIT_QR_CLEAR_AREA"); v != "" {
		if b, ok := parseBool(v); ok {
			cfg.QR.ClearArea = b
		}
	}
	if v := os.Getenv("QRKIT_WEBHOOK_URL"); v != "" {
		cfg.WebhookURL = v
	}
	if v := os.Getenv("QRKIT_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SessionTTL = Duration{d}
		}
	}
	if v := os.Getenv("QRKIT_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SweepInterval = Duration{d}
		}
	}
	if v := os.Getenv("QRKIT_NETWORK"); v != "" {
		cfg.Network = v
	}
	if v := os.Getenv("QRKIT_RPC_URL"); v != "" {
		cfg.RPCURL = v
	}
	if v := os.Getenv("QRKIT_RPC_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RPCTimeout = Duration{d}
		}
	}
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	}
	return false, false
}

// EnsureDataDir creates the DataDir if it does not already exist.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir %s: %w", c.DataDir, err)
	}
	return nil
}

// DBPath returns the location of the session database inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "sessions.db")
}

// Package config loads toolbox settings from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/toolbox/internal/engine"
	"github.com/roach88/toolbox/internal/ir"
	"github.com/roach88/toolbox/internal/kv"
	"github.com/roach88/toolbox/internal/store"
)

// Config is the complete toolbox configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Cart    CartConfig    `yaml:"cart"`
	Device  DeviceConfig  `yaml:"device"`
	Catalog CatalogConfig `yaml:"catalog"`
	Server  ServerConfig  `yaml:"server"`
}

// StorageConfig selects the durable backend.
type StorageConfig struct {
	Backend string `yaml:"backend"` // sqlite, badger or memory
	Path    string `yaml:"path"`
	Prefix  string `yaml:"prefix"`
}

// CartConfig tunes store and engine behavior.
type CartConfig struct {
	TTL            Duration `yaml:"ttl"`
	HistoryLimit   int      `yaml:"history_limit"`
	QuantityPolicy string   `yaml:"quantity_policy"` // trust or clamp
}

// DeviceConfig is written into cart metadata.
type DeviceConfig struct {
	UserAgent string `yaml:"user_agent"`
	Platform  string `yaml:"platform"`
}

// CatalogConfig points at the inventory file.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures `toolbox serve`.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Duration is a time.Duration that also accepts day suffixes ("30d").
type Duration time.Duration

// UnmarshalYAML parses Go duration strings plus "<n>d".
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration in Go syntax.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ParseDuration parses a Go duration or a whole number of days ("30d").
func ParseDuration(s string) (time.Duration, error) {
	if n, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(n)
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid duration %q: want a positive number of days", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("invalid duration %q: must be positive", s)
	}
	return parsed, nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Backend: string(kv.KindSQLite),
			Path:    "toolbox.db",
		},
		Cart: CartConfig{
			TTL:            Duration(store.DefaultTTL),
			HistoryLimit:   store.DefaultHistoryLimit,
			QuantityPolicy: engine.TrustCaller.String(),
		},
		Device: DeviceConfig{
			UserAgent: "toolbox-cli",
			Platform:  "cli",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
	}
}

// Load reads path and merges it over Default. Unknown keys are rejected.
// A missing file is an error; callers that treat the file as optional
// check os.IsNotExist themselves.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerations and bounds.
func (c Config) Validate() error {
	if _, err := kv.ParseKind(c.Storage.Backend); err != nil {
		return fmt.Errorf("storage.backend: %w", err)
	}
	if _, err := engine.ParseQuantityPolicy(c.Cart.QuantityPolicy); err != nil {
		return fmt.Errorf("cart.quantity_policy: %w", err)
	}
	if c.Cart.HistoryLimit < 1 {
		return fmt.Errorf("cart.history_limit: must be at least 1, got %d", c.Cart.HistoryLimit)
	}
	if c.Cart.TTL <= 0 {
		return errors.New("cart.ttl: must be positive")
	}
	return nil
}

// Kind returns the parsed storage backend.
func (c Config) Kind() kv.Kind {
	kind, _ := kv.ParseKind(c.Storage.Backend)
	return kind
}

// Policy returns the parsed quantity policy.
func (c Config) Policy() engine.QuantityPolicy {
	p, _ := engine.ParseQuantityPolicy(c.Cart.QuantityPolicy)
	return p
}

// StoreOptions translates the cart and device settings into store options.
func (c Config) StoreOptions() []store.Option {
	return []store.Option{
		store.WithTTL(time.Duration(c.Cart.TTL)),
		store.WithHistoryLimit(c.Cart.HistoryLimit),
		store.WithKeyPrefix(c.Storage.Prefix),
		store.WithDeviceInfo(deviceInfo(c.Device)),
	}
}

func deviceInfo(d DeviceConfig) ir.DeviceInfo {
	return ir.DeviceInfo{UserAgent: d.UserAgent, Platform: d.Platform}
}

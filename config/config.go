package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/fairfleet/engine/core/allocator"
	"github.com/fairfleet/engine/core/appeal"
	"github.com/fairfleet/engine/core/metrics"
)

type Config struct {
	Allocator allocator.Config `json:"allocator"`
	Appeal    AppealConfig     `json:"appeal"`
	Metrics   metrics.Config   `json:"metrics"`
}

// AppealConfig tunes the appeal resolver.
type AppealConfig struct {
	// Tolerance is the maximum fraction the total workload may grow by
	// when accepting a local move.
	Tolerance float64 `json:"tolerance"`
}

// SetDefaults applies sane defaults.
func (c *AppealConfig) SetDefaults() {
	if c.Tolerance == 0 {
		c.Tolerance = appeal.DefaultTolerance
	}
}

// Validate checks the appeal settings.
func (c AppealConfig) Validate() error {
	if c.Tolerance < 0 || c.Tolerance > 1 {
		return fmt.Errorf("appeal tolerance must be within [0,1], got %v", c.Tolerance)
	}
	return nil
}

// Default returns a configuration with every documented default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.Allocator.SetDefaults()
	cfg.Appeal.SetDefaults()
	cfg.Metrics.SetDefaults()
	return cfg
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("FF_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "ff_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Allocator.SetDefaults()
	cfg.Appeal.SetDefaults()
	cfg.Metrics.SetDefaults()
	if err := cfg.Allocator.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Appeal.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

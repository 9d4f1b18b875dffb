package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds all configuration for the extractor
type Config struct {
	Input      string `koanf:"input"`
	Output     string `koanf:"output"`
	Subgraph   string `koanf:"subgraph"`
	Seeds      string `koanf:"seeds"`
	Title      string `koanf:"title"`
	PathsMode  bool   `koanf:"paths"`
	LoadFusion bool   `koanf:"load-fusion"`
	WebMode    bool   `koanf:"web"`
	Port       int    `koanf:"port"`
	Watch      bool   `koanf:"watch"`
	Verbosity  string `koanf:"verbosity"`
	JSONLogs   bool   `koanf:"json-logs"`
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"input":       "vfg.dot",
		"output":      "model.dot",
		"subgraph":    "",
		"seeds":       "",
		"title":       "model",
		"paths":       false,
		"load-fusion": false,
		"web":         false,
		"port":        8080,
		"watch":       false,
		"verbosity":   "",
		"json-logs":   false,
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional) - vfg-extract.toml
	// We ignore errors here as the file might not exist
	_ = k.Load(file.Provider("vfg-extract.toml"), toml.Parser())

	// 3. Environment Variables
	// Prefix: VFG_EXTRACT_ (e.g., VFG_EXTRACT_PORT=9090)
	if err := k.Load(env.Provider("VFG_EXTRACT_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, "VFG_EXTRACT_")), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// Unmarshal into struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// SeedIDs parses the comma-separated seeds value into numeric node ids.
func (c *Config) SeedIDs() ([]uint64, error) {
	if strings.TrimSpace(c.Seeds) == "" {
		return nil, fmt.Errorf("no seed node ids configured")
	}
	parts := strings.Split(c.Seeds, ",")
	ids := make([]uint64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid seed id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no seed node ids configured")
	}
	return ids, nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}

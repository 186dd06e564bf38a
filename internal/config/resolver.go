// Package config resolves runtime settings from the three layers the
// CLI and servers share: a YAML config file, environment variables, and
// command-line flags. Later layers win, and every resolved value keeps
// a record of which layer supplied it so `distill config` can explain
// where a setting came from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied when no layer supplies a value.
const (
	DefaultRedisURL  = "redis://localhost:6379"
	DefaultHTTPAddr  = ":8001"
	DefaultMaxTokens = 100
)

// ValueSource names the layer a resolved value came from.
type ValueSource string

const (
	SourceDefault ValueSource = "default"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
)

// ResolvedValue is one setting plus its provenance: the layer that set
// it and the concrete file, variable, or flag within that layer.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries the CLI layer into resolution. Empty strings
// mean the flag was not passed.
type ResolveOptions struct {
	ConfigPath   string
	CLIDBPath    string
	CLIRedisURL  string
	CLIHTTPAddr  string
	CLIMaxTokens string
}

// ResolvedConfig is the merged view of all layers.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath    ResolvedValue `json:"db_path"`
	RedisURL  ResolvedValue `json:"redis_url"`
	HTTPAddr  ResolvedValue `json:"http_addr"`
	MaxTokens ResolvedValue `json:"max_tokens"`
}

type fileConfig struct {
	DBPath   string `yaml:"db_path"`
	RedisURL string `yaml:"redis_url"`
	HTTPAddr string `yaml:"http_addr"`
	Summary  struct {
		MaxTokens int `yaml:"max_tokens"`
	} `yaml:"summary"`
}

// DefaultConfigPath is where ResolveConfig looks when no --config flag
// is passed.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".distill", "config.yaml")
}

// ResolveConfig merges config file, environment, and CLI flags, in that
// order of increasing precedence. A missing config file is fine; a file
// that exists but does not parse is an error, as is a resolved summary
// budget that is not a positive integer.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{
		ConfigPath: path,
		RedisURL:   ResolvedValue{Value: DefaultRedisURL, Source: SourceDefault, From: "built-in default"},
		HTTPAddr:   ResolvedValue{Value: DefaultHTTPAddr, Source: SourceDefault, From: "built-in default"},
		MaxTokens:  ResolvedValue{Value: strconv.Itoa(DefaultMaxTokens), Source: SourceDefault, From: "built-in default"},
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}
	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.RedisURL, cfg.RedisURL, SourceConfig, path)
		apply(&out.HTTPAddr, cfg.HTTPAddr, SourceConfig, path)
		if cfg.Summary.MaxTokens != 0 {
			apply(&out.MaxTokens, strconv.Itoa(cfg.Summary.MaxTokens), SourceConfig, path)
		}
	}

	applyEnv(&out.DBPath, "DISTILL_DB")
	applyEnv(&out.RedisURL, "DISTILL_REDIS_URL")
	applyEnv(&out.HTTPAddr, "DISTILL_HTTP_ADDR")
	applyEnv(&out.MaxTokens, "DISTILL_MAX_TOKENS")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.RedisURL, opts.CLIRedisURL, SourceCLI, "--redis")
	apply(&out.HTTPAddr, opts.CLIHTTPAddr, SourceCLI, "--addr")
	apply(&out.MaxTokens, opts.CLIMaxTokens, SourceCLI, "--max-tokens")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}

	if _, err := out.SummaryBudget(); err != nil {
		return out, err
	}

	return out, nil
}

// SummaryBudget parses the resolved max_tokens value. The resolution
// layers guarantee the string is non-empty; anything that is not a
// positive integer is a configuration error naming the layer at fault.
func (r ResolvedConfig) SummaryBudget() (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(r.MaxTokens.Value))
	if err != nil {
		return 0, fmt.Errorf("max_tokens %q from %s is not an integer", r.MaxTokens.Value, r.MaxTokens.From)
	}
	if n <= 0 {
		return 0, fmt.Errorf("max_tokens from %s must be positive, got %d", r.MaxTokens.From, n)
	}
	return n, nil
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

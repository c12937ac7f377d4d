// Package config loads loxpad configuration from defaults, a loxpad.yaml
// file, LOXPAD_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Backend names.
const (
	BackendLox  = "lox"
	BackendWasm = "wasm"
)

// Colour modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "LOXPAD_"

// FileNames are the config files Load looks for when none is given.
var FileNames = []string{"loxpad.yaml", "loxpad.yml"}

// Config holds all loxpad options.
type Config struct {
	Addr          string        `koanf:"addr"`
	Backend       string        `koanf:"backend"`
	WasmModule    string        `koanf:"wasm_module"`
	WasmCache     bool          `koanf:"wasm_cache"`
	Timeout       time.Duration `koanf:"timeout"`
	MaxOutput     int           `koanf:"max_output"`
	PartialOutput bool          `koanf:"partial_output"`
	SessionTTL    time.Duration `koanf:"session_ttl"`
	SessionSecret string        `koanf:"session_secret"`
	Database      string        `koanf:"database"`
	LogLevel      string        `koanf:"log_level"`
	LogFormat     string        `koanf:"log_format"`
	Color         string        `koanf:"color"`

	// File is the config file that was read, if any.
	File string `koanf:"-"`
}

// Defaults returns the built-in configuration values keyed like the file.
func Defaults() map[string]any {
	return map[string]any{
		"addr":           ":8080",
		"backend":        BackendLox,
		"wasm_module":    "",
		"wasm_cache":     true,
		"timeout":        "30s",
		"max_output":     1 << 20,
		"partial_output": false,
		"session_ttl":    "30m",
		"session_secret": "",
		"database":       "loxpad.db",
		"log_level":      "info",
		"log_format":     "text",
		"color":          ColorAuto,
	}
}

// Default returns the built-in configuration, ignoring files and the
// environment.
func Default() *Config {
	k := koanf.New(".")
	var cfg Config
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		panic(fmt.Sprintf("config: load defaults: %v", err))
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		panic(fmt.Sprintf("config: decode defaults: %v", err))
	}
	return &cfg
}

// findConfigFile returns the explicit path, or the first of FileNames in
// the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range FileNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load reads configuration. Precedence (highest to lowest): explicitly set
// flags > env vars > config file > defaults. Flags map to keys by turning
// kebab-case into snake_case.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path := findConfigFile(cfgFile)
	fileModule := ""
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		fileModule = k.String("wasm_module")
	}

	// LOXPAD_MAX_OUTPUT -> max_output
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			if f.Name == "no-color" {
				if off, _ := flags.GetBool(f.Name); off {
					return "color", ColorNever
				}
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = path

	// A module path from the file is relative to the file.
	if fileModule != "" && cfg.WasmModule == fileModule && !filepath.IsAbs(fileModule) {
		cfg.WasmModule = filepath.Join(filepath.Dir(path), fileModule)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks option values that cannot be checked by decoding.
func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendLox:
	case BackendWasm:
		if c.WasmModule == "" {
			errs = append(errs, errors.New("backend wasm requires wasm_module"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendLox, BackendWasm))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %v", c.Timeout))
	}
	if c.MaxOutput < 0 {
		errs = append(errs, fmt.Errorf("max_output must not be negative, got %d", c.MaxOutput))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("session_ttl must be positive, got %v", c.SessionTTL))
	}
	switch c.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		errs = append(errs, fmt.Errorf("unknown color mode %q", c.Color))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, BackendLox, cfg.Backend)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 1<<20, cfg.MaxOutput)
	assert.Equal(t, ColorAuto, cfg.Color)
	assert.Empty(t, cfg.File)
	assert.Equal(t, Default(), cfg)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, "loxpad.yaml", "addr: :9000\ntimeout: 5s\nmax_output: 100\nlog_level: debug\n")

	t.Setenv("LOXPAD_TIMEOUT", "2s")
	t.Setenv("LOXPAD_MAX_OUTPUT", "200")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("max-output", 0, "")
	flags.String("addr", ":1", "")
	require.NoError(t, flags.Parse([]string{"--max-output=300"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, "loxpad.yaml", cfg.File)
	assert.Equal(t, ":9000", cfg.Addr, "unset flag must not override the file")
	assert.Equal(t, 2*time.Second, cfg.Timeout, "env overrides file")
	assert.Equal(t, 300, cfg.MaxOutput, "flag overrides env")
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadNoColorFlag(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		args []string
		want string
	}{
		{nil, ColorAuto},
		{[]string{"--no-color"}, ColorNever},
		{[]string{"--no-color=false"}, ColorAuto},
	}
	for _, tt := range tests {
		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.Bool("no-color", false, "")
		require.NoError(t, flags.Parse(tt.args))

		cfg, err := Load("", flags)
		require.NoError(t, err)
		assert.Equal(t, tt.want, cfg.Color, "%v", tt.args)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(t.TempDir())
	path := writeFile(t, dir, "custom.yml", "backend: wasm\nwasm_module: lox.wasm\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendWasm, cfg.Backend)
	assert.Equal(t, filepath.Join(dir, "lox.wasm"), cfg.WasmModule)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		errSubstr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Backend = "jvm" }, `unknown backend "jvm"`},
		{"wasm without module", func(c *Config) { c.Backend = BackendWasm }, "requires wasm_module"},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }, "timeout must not be negative"},
		{"zero ttl", func(c *Config) { c.SessionTTL = 0 }, "session_ttl must be positive"},
		{"bad color", func(c *Config) { c.Color = "sometimes" }, "unknown color mode"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "unknown log level"},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "unknown log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"

	var buf bytes.Buffer
	logger, err := cfg.NewLogger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestLoggerContext(t *testing.T) {
	assert.NotNil(t, Logger(context.Background()))

	var buf bytes.Buffer
	cfg := Default()
	logger, err := cfg.NewLogger(&buf)
	require.NoError(t, err)

	ctx := WithLogger(context.Background(), logger)
	Logger(ctx).Info("from context")
	assert.Contains(t, buf.String(), "from context")
}

func TestWriteDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loxpad.yaml")

	require.NoError(t, WriteDefault(path, false))
	assert.Error(t, WriteDefault(path, false), "must not overwrite")
	require.NoError(t, WriteDefault(path, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Compiler backend")

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "lox", decoded["backend"])

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, Default().Timeout, cfg.Timeout)
}

package wasm

import (
	"time"

	"github.com/caffeineduck/loxpad/hostfunc"
)

// RuntimeOption configures the Runtime at creation time.
type RuntimeOption func(*runtimeConfig)

type runtimeConfig struct {
	diskCache        bool
	cacheDir         string
	precompile       []Module
	memoryLimitPages uint32 // 0 = wazero default (4GB)
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{}
}

// WithDiskCache enables a persistent compilation cache for faster CLI
// startup. Optionally provide a custom directory; otherwise uses
// ~/.cache/loxpad or XDG_CACHE_HOME/loxpad.
//
//	wasm.NewRuntime(wasm.WithDiskCache())            // default dir
//	wasm.NewRuntime(wasm.WithDiskCache("/tmp/cache")) // custom dir
func WithDiskCache(dir ...string) RuntimeOption {
	return func(c *runtimeConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithPrecompile compiles the given modules when the Runtime is created,
// moving the compilation cost to startup.
func WithPrecompile(modules ...Module) RuntimeOption {
	return func(c *runtimeConfig) {
		c.precompile = modules
	}
}

// WithMemoryLimit sets the maximum memory available to module instances,
// in 64KB pages.
func WithMemoryLimit(pages uint32) RuntimeOption {
	return func(c *runtimeConfig) {
		c.memoryLimitPages = pages
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit16MB  uint32 = 256
	MemoryLimit64MB  uint32 = 1024
	MemoryLimit256MB uint32 = 4096
)

// Option configures a Backend.
type Option func(*config)

type config struct {
	registry     *hostfunc.Registry
	kv           *hostfunc.KVConfig
	startTimeout time.Duration
	env          map[string]string
}

func defaultConfig() config {
	kv := hostfunc.DefaultKVConfig()
	return config{
		kv:           &kv,
		startTimeout: 30 * time.Second,
		env:          map[string]string{"LOX_SESSION": "1"},
	}
}

// WithRegistry sets the host functions guests may call. The registry is
// cloned; the default is hostfunc.Builtins().
func WithRegistry(r *hostfunc.Registry) Option {
	return func(c *config) {
		c.registry = r.Clone()
	}
}

// WithKV configures the key/value store exposed to guests. Nil disables it.
func WithKV(cfg *hostfunc.KVConfig) Option {
	return func(c *config) {
		c.kv = cfg
	}
}

// WithStartTimeout bounds how long a module may take to signal readiness.
func WithStartTimeout(d time.Duration) Option {
	return func(c *config) {
		c.startTimeout = d
	}
}

// WithEnv sets an environment variable visible to the module.
func WithEnv(key, value string) Option {
	return func(c *config) {
		c.env[key] = value
	}
}

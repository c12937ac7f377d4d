package wasm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Module is a WASI binary implementing the command protocol.
type Module struct {
	// Name identifies the module in the compiled-module cache and is
	// passed as argv[0].
	Name   string
	Binary []byte
}

// LoadModule reads a module from disk. The file name without extension
// becomes the module name.
func LoadModule(path string) (Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Module{}, fmt.Errorf("load module: %w", err)
	}
	name := filepath.Base(path)
	name = name[:len(name)-len(filepath.Ext(name))]
	return Module{Name: name, Binary: data}, nil
}

// Runtime manages the wazero runtime and compiled module caching. One
// Runtime is shared by every Backend in a process.
type Runtime struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	compiled map[string]wazero.CompiledModule
	mu       sync.RWMutex
	closed   bool
}

// NewRuntime creates a Runtime with WASI preview 1 instantiated.
func NewRuntime(opts ...RuntimeOption) (*Runtime, error) {
	cfg := defaultRuntimeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	var err error

	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	r := &Runtime{
		runtime:  rt,
		cache:    cache,
		compiled: make(map[string]wazero.CompiledModule),
	}

	for _, m := range cfg.precompile {
		if _, err := r.compile(ctx, m); err != nil {
			r.Close()
			return nil, fmt.Errorf("precompile %s: %w", m.Name, err)
		}
	}

	return r, nil
}

// compile returns a cached compiled module, compiling if necessary.
func (r *Runtime) compile(ctx context.Context, m Module) (wazero.CompiledModule, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, errors.New("runtime closed")
	}
	if compiled, ok := r.compiled[m.Name]; ok {
		r.mu.RUnlock()
		return compiled, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if compiled, ok := r.compiled[m.Name]; ok {
		return compiled, nil
	}

	compiled, err := r.runtime.CompileModule(ctx, m.Binary)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", m.Name, err)
	}

	r.compiled[m.Name] = compiled
	return compiled, nil
}

// Close releases all resources held by the Runtime, terminating any
// module instances still running.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	ctx := context.Background()

	var errs []error
	if err := r.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if r.cache != nil {
		if err := r.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "loxpad")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "loxpad")
	}
	return filepath.Join(os.TempDir(), "loxpad-cache")
}

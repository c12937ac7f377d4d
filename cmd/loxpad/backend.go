package main

import (
	"context"
	"fmt"

	"github.com/caffeineduck/loxpad/internal/config"
	"github.com/caffeineduck/loxpad/language/lox"
	"github.com/caffeineduck/loxpad/language/wasm"
	"github.com/caffeineduck/loxpad/session"
)

// backendSet creates backends of the configured kind. It owns the shared
// wasm runtime, if any.
type backendSet struct {
	name  string
	color bool
	cfg   *config.Config
	file  string

	rt     *wasm.Runtime
	module wasm.Module
}

func newBackendSet(cfg *config.Config, color bool, file string) (*backendSet, error) {
	bs := &backendSet{name: cfg.Backend, color: color, cfg: cfg, file: file}
	if cfg.Backend != config.BackendWasm {
		return bs, nil
	}

	m, err := wasm.LoadModule(cfg.WasmModule)
	if err != nil {
		return nil, err
	}
	opts := []wasm.RuntimeOption{wasm.WithPrecompile(m)}
	if cfg.WasmCache {
		opts = append(opts, wasm.WithDiskCache())
	}
	rt, err := wasm.NewRuntime(opts...)
	if err != nil {
		return nil, fmt.Errorf("wasm runtime: %w", err)
	}
	bs.rt, bs.module = rt, m
	return bs, nil
}

// New creates one backend.
func (bs *backendSet) New() (session.Backend, error) {
	if bs.rt != nil {
		return wasm.New(bs.rt, bs.module)
	}
	opts := []lox.Option{
		lox.WithColor(bs.color),
		lox.WithMaxOutput(bs.cfg.MaxOutput),
	}
	if bs.file != "" {
		opts = append(opts, lox.WithFile(bs.file))
	}
	return lox.New(opts...), nil
}

// Session creates a backend wrapped in a session configured from cfg.
func (bs *backendSet) Session(ctx context.Context) (*session.Session, error) {
	b, err := bs.New()
	if err != nil {
		return nil, err
	}
	return session.New(b, bs.sessionOptions(ctx)...), nil
}

func (bs *backendSet) sessionOptions(ctx context.Context) []session.Option {
	return []session.Option{
		session.WithTimeout(bs.cfg.Timeout),
		session.WithMaxOutput(bs.cfg.MaxOutput),
		session.WithPartialOutput(bs.cfg.PartialOutput),
		session.WithLogger(config.Logger(ctx)),
	}
}

func (bs *backendSet) Close() error {
	if bs.rt != nil {
		return bs.rt.Close()
	}
	return nil
}

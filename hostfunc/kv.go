package hostfunc

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// KVConfig bounds a KV store. Zero fields mean no limit.
type KVConfig struct {
	MaxKeySize   int
	MaxValueSize int
	MaxEntries   int
}

func DefaultKVConfig() KVConfig {
	return KVConfig{
		MaxKeySize:   256,
		MaxValueSize: 64 * 1024,
		MaxEntries:   1000,
	}
}

// KV is an in-memory key/value store scoped to one playground session.
type KV struct {
	cfg  KVConfig
	data map[string]any
	mu   sync.RWMutex
}

func NewKV(cfg KVConfig) *KV {
	return &KV{cfg: cfg, data: make(map[string]any)}
}

// Get implements kv_get(key) and kv_get(key, default).
func (s *KV) Get(ctx context.Context, args []any) (any, error) {
	if len(args) != 1 && len(args) != 2 {
		return nil, ArgError{Index: -1, Want: "1 or 2 arguments", Got: fmt.Sprint(len(args))}
	}
	key, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	val, exists := s.data[key]
	s.mu.RUnlock()

	if !exists {
		if len(args) == 2 {
			return args[1], nil
		}
		return nil, nil
	}
	return val, nil
}

// Set implements kv_set(key, value).
func (s *KV) Set(ctx context.Context, args []any) (any, error) {
	if err := expectCount(args, 2); err != nil {
		return nil, err
	}
	key, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}
	if s.cfg.MaxKeySize > 0 && len(key) > s.cfg.MaxKeySize {
		return nil, fmt.Errorf("key too large: %d > %d bytes", len(key), s.cfg.MaxKeySize)
	}
	if str, ok := args[1].(string); ok && s.cfg.MaxValueSize > 0 && len(str) > s.cfg.MaxValueSize {
		return nil, fmt.Errorf("value too large: %d > %d bytes", len(str), s.cfg.MaxValueSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; !exists && s.cfg.MaxEntries > 0 && len(s.data) >= s.cfg.MaxEntries {
		return nil, fmt.Errorf("too many entries: limit is %d", s.cfg.MaxEntries)
	}
	s.data[key] = args[1]
	return args[1], nil
}

// Delete implements kv_delete(key).
func (s *KV) Delete(ctx context.Context, args []any) (any, error) {
	if err := expectCount(args, 1); err != nil {
		return nil, err
	}
	key, err := stringArg(args, 0)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	_, existed := s.data[key]
	delete(s.data, key)
	s.mu.Unlock()

	return existed, nil
}

// Keys returns the sorted key set.
func (s *KV) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len implements kv_len().
func (s *KV) Len(ctx context.Context, args []any) (any, error) {
	if err := expectCount(args, 0); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return float64(len(s.data)), nil
}

// Register binds kv_get, kv_set, kv_delete and kv_len on r.
func (s *KV) Register(r *Registry) {
	r.Register("kv_get", s.Get)
	r.Register("kv_set", s.Set)
	r.Register("kv_delete", s.Delete)
	r.Register("kv_len", s.Len)
}

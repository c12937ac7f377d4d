package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

var keyComments = map[string]string{
	"addr":           "Address the web playground listens on.",
	"backend":        "Compiler backend: lox (built in) or wasm.",
	"wasm_module":    "Path to the WASI module used by the wasm backend.",
	"wasm_cache":     "Cache compiled WASI modules on disk.",
	"timeout":        "Maximum time for one run, parse or bytecode call.",
	"max_output":     "Output is truncated after this many bytes (0 = unlimited).",
	"partial_output": "Keep output printed before a runtime error.",
	"session_ttl":    "Idle playground sessions are closed after this long.",
	"session_secret": "Cookie signing key; a random key is used when empty.",
	"database":       "SQLite file storing shared snippets.",
	"log_level":      "debug, info, warn or error.",
	"log_format":     "text or json.",
	"color":          "auto, always or never.",
}

// Marshal renders the default configuration as commented YAML.
func Marshal() ([]byte, error) {
	defaults := Defaults()
	keys := make([]string, 0, len(defaults))
	for key := range defaults {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range keys {
		var value yaml.Node
		if err := value.Encode(defaults[key]); err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key, HeadComment: keyComments[key]},
			&value,
		)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	data, err := Marshal()
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

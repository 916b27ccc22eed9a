package rules

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Header is written once when the store file is created.
const Header = "# Auto-generated rules\n"

// Store is the append-only Falco rules file fed to the engine.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a Store backed by path. The file is created on first append.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

// Encode serializes a batch in store format: one single-item rule list per
// definition, each preceded by a blank line.
func Encode(batch []Definition) ([]byte, error) {
	var buf bytes.Buffer
	for _, def := range batch {
		buf.WriteString("\n")
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode([]Definition{def}); err != nil {
			return nil, fmt.Errorf("encode rule %q: %w", def.Rule, err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode rule %q: %w", def.Rule, err)
		}
	}
	return buf.Bytes(), nil
}

// Append writes the whole batch with a single write call. The header is
// included in the same write when the file is new or empty.
func (s *Store) Append(batch []Definition) error {
	if len(batch) == 0 {
		return nil
	}

	body, err := Encode(batch)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create rule store directory: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open rule store: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat rule store: %w", err)
	}

	var out []byte
	if info.Size() == 0 {
		out = append([]byte(Header), body...)
	} else {
		out = body
	}

	if _, err := f.Write(out); err != nil {
		return fmt.Errorf("write rule store: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync rule store: %w", err)
	}
	return nil
}

// Load parses every rule currently in the store. Non-rule entries such as
// macros and lists are ignored. A missing store yields no rules.
func (s *Store) Load() ([]Definition, error) {
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read rule store: %w", err)
	}
	return Decode(data)
}

// Decode parses store-formatted bytes.
func Decode(data []byte) ([]Definition, error) {
	var entries []Definition
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse rule store: %w", err)
	}

	rules := entries[:0]
	for _, e := range entries {
		if e.Rule != "" {
			rules = append(rules, e)
		}
	}
	return rules, nil
}

// Names returns the set of rule names in the store.
func (s *Store) Names() (map[string]struct{}, error) {
	defs, err := s.Load()
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		names[d.Rule] = struct{}{}
	}
	return names, nil
}

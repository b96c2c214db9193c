// Package catalog looks up translated strings by locale and dotted key.
//
// A lookup miss returns the key itself, so callers can detect a miss by
// comparing the result with the key.
package catalog

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Catalog resolves translation keys.
type Catalog interface {
	// Lookup returns the translation of key for locale, or key when absent.
	Lookup(locale, key string) string
}

// Func adapts a function to Catalog.
type Func func(locale, key string) string

// Lookup calls f.
func (f Func) Lookup(locale, key string) string { return f(locale, key) }

// IsMiss reports whether value is the miss sentinel for key.
func IsMiss(key, value string) bool { return value == key }

// Map is an in-memory catalog. The zero value is empty and ready to use.
type Map struct {
	mu       sync.RWMutex
	entries  map[string]map[string]string
	fallback string
}

var _ Catalog = (*Map)(nil)

// NewMap creates a catalog. Lookups that miss in the requested locale are
// retried in fallback when it is non-empty.
func NewMap(fallback string) *Map {
	return &Map{entries: make(map[string]map[string]string), fallback: fallback}
}

// Set stores a translation.
func (m *Map) Set(locale, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[string]map[string]string)
	}
	if m.entries[locale] == nil {
		m.entries[locale] = make(map[string]string)
	}
	m.entries[locale][key] = value
}

// Merge stores every translation in entries for locale.
func (m *Map) Merge(locale string, entries map[string]string) {
	for k, v := range entries {
		m.Set(locale, k, v)
	}
}

// Lookup implements Catalog.
func (m *Map) Lookup(locale, key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.entries[locale][key]; ok {
		return v
	}
	if m.fallback != "" && m.fallback != locale {
		if v, ok := m.entries[m.fallback][key]; ok {
			return v
		}
	}
	return key
}

// Locales returns the locales with at least one entry.
func (m *Map) Locales() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.entries))
	for l := range m.entries {
		out = append(out, l)
	}
	return out
}

// LoadYAML reads a file of the form
//
//	it:
//	  notifications:
//	    mail:
//	      welcome:
//	        subject: Benvenuto
//
// into m, flattening nested maps into dotted keys per top-level locale.
func (m *Map) LoadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return m.ParseYAML(data)
}

// ParseYAML is LoadYAML over in-memory data.
func (m *Map) ParseYAML(data []byte) error {
	var doc map[string]map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("catalog: parse: %w", err)
	}
	for locale, tree := range doc {
		flat := make(map[string]string)
		flatten("", tree, flat)
		m.Merge(locale, flat)
	}
	return nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		case nil:
		default:
			out[key] = strings.TrimSpace(fmt.Sprint(val))
		}
	}
}

// Package report accumulates per-run data-quality counters and writes the
// plain-text report.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Metrics is an insertion-ordered set of named counters owned by one run.
// The zero value is ready to use.
type Metrics struct {
	keys   []string
	values map[string]int64
}

// New returns an empty metrics set
func New() *Metrics {
	return &Metrics{values: make(map[string]int64)}
}

// Add increments key by n, registering it on first use
func (m *Metrics) Add(key string, n int64) {
	if m.values == nil {
		m.values = make(map[string]int64)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] += n
}

// Inc increments key by one
func (m *Metrics) Inc(key string) {
	m.Add(key, 1)
}

// Set overwrites key with n
func (m *Metrics) Set(key string, n int64) {
	m.Add(key, 0)
	m.values[key] = n
}

// Get returns the value of key, zero when never recorded
func (m *Metrics) Get(key string) int64 {
	if m == nil {
		return 0
	}
	return m.values[key]
}

// Has reports whether key was recorded
func (m *Metrics) Has(key string) bool {
	if m == nil {
		return false
	}
	_, ok := m.values[key]
	return ok
}

// Keys returns the recorded keys in first-recorded order
func (m *Metrics) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Merge adds every counter of other into m
func (m *Metrics) Merge(other *Metrics) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		m.Add(k, other.values[k])
	}
}

// Map returns a copy of the counters
func (m *Metrics) Map() map[string]int64 {
	out := make(map[string]int64, len(m.keys))
	for _, k := range m.keys {
		out[k] = m.values[k]
	}
	return out
}

// WriteTo writes one "key: value" line per counter
func (m *Metrics) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64
	for _, k := range m.keys {
		n, err := fmt.Fprintf(bw, "%s: %d\n", k, m.values[k])
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, bw.Flush()
}

// WriteFile writes the report to path, replacing any previous report
func WriteFile(path string, m *Metrics) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()

	if _, err := m.WriteTo(f); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}

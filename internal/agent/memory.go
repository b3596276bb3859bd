// Package agent implements the conversational core: context assembly,
// the processing loop, and workspace memory.
package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MemoryStore is two-layer workspace memory: MEMORY.md for curated
// long-term facts, HISTORY.md as an append-only grep-searchable log.
type MemoryStore struct {
	MemoryFile  string
	HistoryFile string
}

// NewMemoryStore creates a MemoryStore rooted at workspace/memory.
func NewMemoryStore(workspace string) *MemoryStore {
	dir := filepath.Join(workspace, "memory")
	os.MkdirAll(dir, 0o755)
	return &MemoryStore{
		MemoryFile:  filepath.Join(dir, "MEMORY.md"),
		HistoryFile: filepath.Join(dir, "HISTORY.md"),
	}
}

// ReadLongTerm returns MEMORY.md, or "" when absent.
func (m *MemoryStore) ReadLongTerm() string {
	data, err := os.ReadFile(m.MemoryFile)
	if err != nil {
		return ""
	}
	return string(data)
}

// WriteLongTerm replaces MEMORY.md.
func (m *MemoryStore) WriteLongTerm(content string) error {
	return os.WriteFile(m.MemoryFile, []byte(content), 0o644)
}

// AppendHistory appends one entry to HISTORY.md.
func (m *MemoryStore) AppendHistory(entry string) error {
	f, err := os.OpenFile(m.HistoryFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(strings.TrimRight(entry, "\n") + "\n\n")
	return err
}

// MemoryContext formats long-term memory for prompt inclusion.
func (m *MemoryStore) MemoryContext() string {
	lt := m.ReadLongTerm()
	if lt == "" {
		return ""
	}
	return fmt.Sprintf("## Long-term Memory\n%s", lt)
}

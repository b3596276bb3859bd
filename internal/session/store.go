// Package session implements per-conversation history with a sliding
// window and JSONL persistence.
package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Message is a single history entry. Entries are append-only: once
// written, content is never rewritten.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Session holds one conversation's history, keyed by "channel:chat_id".
// All mutation goes through Append, which serializes writers on the
// session's own mutex so concurrent appends for the same key cannot
// interleave destructively.
type Session struct {
	Key       string
	CreatedAt time.Time
	UpdatedAt time.Time

	mu       sync.RWMutex
	messages []Message
	window   int
}

// Append adds an entry and enforces the sliding window: when the
// history exceeds the configured window, the oldest entries are
// evicted first.
func (s *Session) Append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if s.window > 0 && len(s.messages) > s.window {
		evict := len(s.messages) - s.window
		s.messages = append([]Message(nil), s.messages[evict:]...)
	}
	s.UpdatedAt = time.Now()
}

// History returns a copy of the current window of entries in arrival order.
func (s *Session) History() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of entries currently held.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Store manages sessions, created lazily per key and cached for the
// process lifetime. Different keys may be mutated concurrently; a
// single key's appends are serialized by its Session.
type Store struct {
	sessionsDir string
	window      int

	mu    sync.Mutex
	cache map[string]*Session
}

// NewStore creates a session store rooted at dataDir with the given
// memory window (entry count; zero or less means unbounded).
func NewStore(dataDir string, window int) *Store {
	dir := filepath.Join(dataDir, "sessions")
	os.MkdirAll(dir, 0o755)
	return &Store{
		sessionsDir: dir,
		window:      window,
		cache:       make(map[string]*Session),
	}
}

// GetOrCreate returns the session for key, loading it from disk or
// creating it on first use.
func (st *Store) GetOrCreate(key string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.cache[key]; ok {
		return s
	}

	s := st.load(key)
	if s == nil {
		now := time.Now()
		s = &Session{Key: key, CreatedAt: now, UpdatedAt: now, window: st.window}
	}
	st.cache[key] = s
	return s
}

// Get returns the cached session for key, or nil if none exists yet.
func (st *Store) Get(key string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.cache[key]
}

// Save persists a session to disk as JSONL: a metadata line followed by
// one line per entry.
func (st *Store) Save(s *Session) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := st.sessionPath(s.Key)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	meta := map[string]any{
		"_type":      "metadata",
		"key":        s.Key,
		"created_at": s.CreatedAt.Format(time.RFC3339),
		"updated_at": s.UpdatedAt.Format(time.RFC3339),
	}
	if err := writeLine(w, meta); err != nil {
		return err
	}
	for _, msg := range s.messages {
		if err := writeLine(w, msg); err != nil {
			return err
		}
	}
	return w.Flush()
}

// List returns metadata for all persisted sessions.
func (st *Store) List() []map[string]string {
	var result []map[string]string

	entries, err := os.ReadDir(st.sessionsDir)
	if err != nil {
		return result
	}
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		f, err := os.Open(filepath.Join(st.sessionsDir, entry.Name()))
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		if scanner.Scan() {
			var meta map[string]any
			if json.Unmarshal(scanner.Bytes(), &meta) == nil && meta["_type"] == "metadata" {
				info := map[string]string{}
				if v, ok := meta["key"].(string); ok {
					info["key"] = v
				}
				if v, ok := meta["updated_at"].(string); ok {
					info["updated_at"] = v
				}
				result = append(result, info)
			}
		}
		f.Close()
	}
	return result
}

func (st *Store) sessionPath(key string) string {
	r := strings.NewReplacer(":", "_", "/", "_", "\\", "_")
	return filepath.Join(st.sessionsDir, r.Replace(key)+".jsonl")
}

func (st *Store) load(key string) *Session {
	f, err := os.Open(st.sessionPath(key))
	if err != nil {
		return nil
	}
	defer f.Close()

	s := &Session{Key: key, window: st.window}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var raw map[string]any
		if json.Unmarshal([]byte(line), &raw) != nil {
			continue
		}
		if raw["_type"] == "metadata" {
			if v, ok := raw["created_at"].(string); ok {
				s.CreatedAt, _ = time.Parse(time.RFC3339, v)
			}
			if v, ok := raw["updated_at"].(string); ok {
				s.UpdatedAt, _ = time.Parse(time.RFC3339, v)
			}
			continue
		}

		var msg Message
		if json.Unmarshal([]byte(line), &msg) == nil {
			s.messages = append(s.messages, msg)
		}
	}

	// Re-apply the window in case it shrank since the file was written.
	if s.window > 0 && len(s.messages) > s.window {
		s.messages = append([]Message(nil), s.messages[len(s.messages)-s.window:]...)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	return s
}

func writeLine(w *bufio.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal session line: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

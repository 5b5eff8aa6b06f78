// Package adminlog records every agent invocation for the /admin view.
package adminlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an entry.
type Kind string

const (
	// KindResponse records a successful invocation and its raw output.
	KindResponse Kind = "response"
	// KindError records a failed invocation.
	KindError Kind = "error"
)

// Entry is one line of the admin log.
type Entry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"ts"`
	Kind      Kind           `json:"kind"`
	Agent     string         `json:"agent,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Text      string         `json:"text"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Config controls retention and persistence.
type Config struct {
	Path        string
	MemoryLimit int
	QueueSize   int
}

// Log keeps recent entries in memory and appends every entry to an NDJSON file.
type Log struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	entries []Entry

	queue   chan Entry
	wg      sync.WaitGroup
	closeMu sync.RWMutex
	closed  bool
	fileMu  sync.Mutex
	file    *os.File
}

// Open loads prior entries from cfg.Path and starts the writer goroutine.
func Open(cfg Config, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MemoryLimit <= 0 {
		cfg.MemoryLimit = 1000
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}

	l := &Log{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan Entry, cfg.QueueSize),
	}

	if cfg.Path != "" {
		prior, err := Load(cfg.Path, logger)
		if err != nil {
			logger.Warn("Admin log history unavailable, starting empty", "path", cfg.Path, "error", err)
		}
		l.entries = trim(prior, cfg.MemoryLimit)

		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create admin log directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open admin log: %w", err)
		}
		l.file = f
	}

	l.wg.Add(1)
	go l.run()
	return l, nil
}

// Append records e. The in-memory view is updated before Append returns;
// the file write happens on the writer goroutine.
func (l *Log) Append(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	if len(l.entries) > l.cfg.MemoryLimit {
		l.entries = trim(l.entries, l.cfg.MemoryLimit)
	}
	l.mu.Unlock()

	l.closeMu.RLock()
	defer l.closeMu.RUnlock()
	if l.closed {
		return e
	}
	select {
	case l.queue <- e:
	default:
		l.logger.Warn("Admin log queue full, persisting inline", "id", e.ID)
		l.write(e)
	}
	return e
}

// Recent returns up to n of the newest entries, oldest first.
func (l *Log) Recent(n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]Entry, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// Len returns the number of entries held in memory.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Close drains the queue and closes the file.
func (l *Log) Close() error {
	l.closeMu.Lock()
	if l.closed {
		l.closeMu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.closeMu.Unlock()

	l.wg.Wait()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Log) run() {
	defer l.wg.Done()
	for e := range l.queue {
		l.write(e)
	}
}

func (l *Log) write(e Entry) {
	if l.file == nil {
		return
	}
	line, err := json.Marshal(e)
	if err != nil {
		l.logger.Error("Failed to encode admin log entry", "id", e.ID, "error", err)
		return
	}
	line = append(line, '\n')

	l.fileMu.Lock()
	defer l.fileMu.Unlock()
	if _, err := l.file.Write(line); err != nil {
		l.logger.Error("Failed to persist admin log entry", "id", e.ID, "error", err)
	}
}

// Load reads an NDJSON admin log. Lines may be Entry objects or bare JSON
// strings; anything else is skipped with a warning. A missing file yields no entries.
func Load(path string, logger *slog.Logger) ([]Entry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open admin log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var out []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		e, ok := parseLine([]byte(raw))
		if !ok {
			logger.Warn("Skipping malformed admin log line", "path", path, "line", lineNo)
			continue
		}
		out = append(out, e)
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("Admin log read stopped early", "path", path, "error", err)
	}
	return out, nil
}

func parseLine(raw []byte) (Entry, bool) {
	switch raw[0] {
	case '{':
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil || e.Text == "" {
			return Entry{}, false
		}
		if e.Kind == "" {
			e.Kind = KindResponse
		}
		return e, true
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return Entry{}, false
		}
		kind := KindResponse
		if strings.HasPrefix(text, "Error:") {
			kind = KindError
		}
		return Entry{Kind: kind, Text: text}, true
	}
	return Entry{}, false
}

func trim(entries []Entry, limit int) []Entry {
	if len(entries) <= limit {
		return entries
	}
	out := make([]Entry, limit)
	copy(out, entries[len(entries)-limit:])
	return out
}

// Texts returns the Text of each entry.
func Texts(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}

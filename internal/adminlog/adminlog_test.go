package adminlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestAppendPersistsNDJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "admin_logs.json")
	l, err := Open(Config{Path: path, MemoryLimit: 10, QueueSize: 16}, slog.Default())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = l.Close() }()

	l.Append(Entry{Kind: KindResponse, Agent: "Research Assistant", SessionID: "s1", Text: "Using Agent: Research Assistant Agent Response: hi"})

	line := waitForLogLine(t, path)
	var got Entry
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if got.Agent != "Research Assistant" || got.SessionID != "s1" {
		t.Fatalf("unexpected entry %+v", got)
	}
	if got.ID == "" || got.Timestamp.IsZero() {
		t.Fatal("expected id and timestamp to be populated")
	}
}

func TestRecentReturnsNewestOldestFirst(t *testing.T) {
	t.Parallel()

	l, err := Open(Config{MemoryLimit: 100}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = l.Close() }()

	for i := 0; i < 15; i++ {
		l.Append(Entry{Text: fmt.Sprintf("entry %d", i)})
	}
	recent := Texts(l.Recent(10))
	if len(recent) != 10 {
		t.Fatalf("len = %d, want 10", len(recent))
	}
	if recent[0] != "entry 5" || recent[9] != "entry 14" {
		t.Fatalf("unexpected window %v", recent)
	}
	if got := l.Recent(0); len(got) != 15 {
		t.Fatalf("Recent(0) = %d entries, want 15", len(got))
	}
}

func TestMemoryLimitKeepsNewest(t *testing.T) {
	t.Parallel()

	l, err := Open(Config{MemoryLimit: 3}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = l.Close() }()

	for i := 0; i < 5; i++ {
		l.Append(Entry{Text: fmt.Sprintf("e%d", i)})
	}
	if got, want := Texts(l.Recent(10)), []string{"e2", "e3", "e4"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Recent = %v, want %v", got, want)
	}
}

func TestOpenReloadsPriorEntries(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "admin_logs.json")
	content := strings.Join([]string{
		`"Using Agent: Poet Agent Response: roses"`,
		`not json at all`,
		`{"id":"x","kind":"error","text":"Error: boom"}`,
		``,
		`{"id":"y"}`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := Open(Config{Path: path, MemoryLimit: 10}, nil)
	if err != nil {
		t.Fatal(err)
	}
	l.Append(Entry{Kind: KindResponse, Text: "fresh"})
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	entries := l.Recent(10)
	if got, want := Texts(entries), []string{"Using Agent: Poet Agent Response: roses", "Error: boom", "fresh"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("entries = %v, want %v", got, want)
	}
	if entries[0].Kind != KindResponse || entries[1].Kind != KindError {
		t.Fatalf("unexpected kinds %q %q", entries[0].Kind, entries[1].Kind)
	}

	reloaded, err := Load(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(reloaded) != 3 || reloaded[2].Text != "fresh" {
		t.Fatalf("reloaded = %+v", reloaded)
	}
}

func TestAppendAfterCloseStaysInMemory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "admin_logs.json")
	l, err := Open(Config{Path: path, MemoryLimit: 10}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	l.Append(Entry{Text: "late"})
	if l.Len() != 1 {
		t.Fatalf("Len = %d, want 1", l.Len())
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	entries, err := Load(filepath.Join(t.TempDir(), "nope.json"), nil)
	if err != nil || len(entries) != 0 {
		t.Fatalf("Load = %v, %v; want empty, nil", entries, err)
	}
}

func waitForLogLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) > 0 {
				return lines[len(lines)-1]
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return ""
}

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/agentchat/internal/llm"
)

// DefaultSaveFilename is used when the model omits a filename.
const DefaultSaveFilename = "output.txt"

// ErrPathEscapesDir is returned when a filename resolves outside the save directory.
var ErrPathEscapesDir = errors.New("path escapes save directory")

// SaveTool archives an existing file and replaces it with timestamped research output.
type SaveTool struct {
	dir string
	now func() time.Time
}

// NewSaveTool returns a SaveTool rooted at dir.
func NewSaveTool(dir string) *SaveTool {
	if dir == "" {
		dir = "."
	}
	return &SaveTool{dir: dir, now: time.Now}
}

func (t *SaveTool) Name() string { return "save_text_to_file" }

func (t *SaveTool) Description() string { return "Saves structured research data to a text file" }

func (t *SaveTool) Definition() llm.ToolDef {
	return definition(t.Name(), t.Description(), map[string]any{
		"data":     stringParam("Text to save"),
		"filename": stringParam("Target file name, defaults to " + DefaultSaveFilename),
	}, "data")
}

type saveArgs struct {
	Data     string `json:"data"`
	Filename string `json:"filename"`
}

func (t *SaveTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var in saveArgs
	if err := json.Unmarshal(args, &in); err != nil {
		var s string
		if err2 := json.Unmarshal(args, &s); err2 != nil {
			return "", fmt.Errorf("invalid tool arguments: %w", err)
		}
		in.Data = s
	}
	return t.SaveToTxt(in.Data, in.Filename)
}

// SaveToTxt renames filename to <filename>_<YYYYMMDDHHMMSS>.txt and writes a
// fresh file at filename holding the output header and data. The file must
// already exist; otherwise the rename error is returned and nothing is written.
func (t *SaveTool) SaveToTxt(data, filename string) (string, error) {
	if strings.TrimSpace(filename) == "" {
		filename = DefaultSaveFilename
	}
	target, err := t.resolve(filename)
	if err != nil {
		return "", err
	}

	now := t.now()
	suffix := "_" + now.Format("20060102150405") + ".txt"
	if err := os.Rename(target, target+suffix); err != nil {
		return "", fmt.Errorf("archive %s: %w", filename, err)
	}

	content := fmt.Sprintf("--- Researched Output ---\nTimestamp: %s\n%s", now.Format("2006-01-02 15:04:05"), data)
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", filename, err)
	}

	archiveName := filepath.ToSlash(filepath.Clean(filename)) + suffix
	return fmt.Sprintf("Data saved to %s (previous version archived as %s)", filename, archiveName), nil
}

func (t *SaveTool) resolve(filename string) (string, error) {
	if filepath.IsAbs(filename) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesDir, filename)
	}
	root, err := filepath.Abs(t.dir)
	if err != nil {
		return "", err
	}
	full := filepath.Join(root, filepath.Clean(filename))
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesDir, filename)
	}
	return full, nil
}

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Format: FormatJSON, Output: &buf})

	l.Debug("dropped")
	l.Info("dropped")
	l.Warn("kept")
	l.Error("kept")

	lines := strings.Count(buf.String(), "\n")
	if lines != 2 {
		t.Errorf("expected 2 log lines, got %d: %q", lines, buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONEntryShape(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})

	l.WithRunID("run-42").Infof("selected", map[string]any{"count": 3})

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if entry.Level != "info" {
		t.Errorf("level = %q, want info", entry.Level)
	}
	if entry.Message != "selected" {
		t.Errorf("message = %q, want selected", entry.Message)
	}
	if entry.RunID != "run-42" {
		t.Errorf("runId = %q, want run-42", entry.RunID)
	}
	if got := entry.Fields["count"]; got != float64(3) {
		t.Errorf("fields[count] = %v, want 3", got)
	}
}

func TestWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})

	child := l.With(map[string]any{"component": "filters"})
	l.Info("parent")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if _, ok := entry.Fields["component"]; ok {
		t.Error("parent logger picked up child field")
	}
	if child.RunID() != "" {
		t.Error("child should not carry a run ID")
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Format: FormatText, Output: &buf})

	l.WithRunID("abc").Info("hello")

	out := buf.String()
	if !strings.Contains(out, "[info] hello") {
		t.Errorf("text output missing level/message: %q", out)
	}
	if !strings.Contains(out, "runId=abc") {
		t.Errorf("text output missing run ID: %q", out)
	}
}

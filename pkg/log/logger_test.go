package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newTestLogger() (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := New("test")
	l.SetWriter(buf)
	l.SetColorize(false)
	l.SetFormat(FormatText)
	l.SetLevel(DEBUG)
	return l, buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"DEBUG", DEBUG},
		{"debug", DEBUG},
		{"INFO", INFO},
		{"WARN", WARN},
		{"WARNING", WARN},
		{"error", ERROR},
		{"bogus", INFO},
		{"", INFO},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.input, got, tt.expected)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newTestLogger()
	l.SetLevel(WARN)

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("sub-threshold messages leaked: %q", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("expected messages missing: %q", out)
	}
}

func TestTextFormat(t *testing.T) {
	l, buf := newTestLogger()

	l.Info("ceiling lowered to %d", 100)

	out := buf.String()
	if !strings.Contains(out, "[INFO ]") {
		t.Errorf("missing level tag: %q", out)
	}
	if !strings.Contains(out, "test: ceiling lowered to 100") {
		t.Errorf("missing prefixed message: %q", out)
	}
}

func TestFields(t *testing.T) {
	l, buf := newTestLogger()

	l.With(Fields{"distance_cm": 14, "ceiling": 100}).Warn("speed reduced")

	out := buf.String()
	if !strings.Contains(out, "{ceiling=100, distance_cm=14}") {
		t.Errorf("fields not rendered sorted: %q", out)
	}
}

func TestJSONFormat(t *testing.T) {
	l, buf := newTestLogger()
	l.SetFormat(FormatJSON)

	l.With(Fields{"violations": 3}).Error("latch engaged")

	var entry jsonEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if entry.Level != "ERROR" || entry.Logger != "test" || entry.Message != "latch engaged" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Fields["violations"] != float64(3) {
		t.Errorf("field missing: %+v", entry.Fields)
	}
}

func TestWithPrefix(t *testing.T) {
	l, buf := newTestLogger()

	l.WithPrefix("loop").Info("tick")

	if !strings.Contains(buf.String(), "loop: tick") {
		t.Errorf("derived prefix not used: %q", buf.String())
	}
}

package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestConsoleLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		debug     bool
		wantDebug bool
	}{
		{name: "info level hides debug", debug: false, wantDebug: false},
		{name: "debug level shows debug", debug: true, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewConsoleLogger(ConsoleLoggerParams{Debug: tt.debug, Output: &buf})
			l.Debug("hidden-or-not")
			l.Info("visible")

			out := buf.String()
			if !strings.Contains(out, "visible") {
				t.Fatalf("expected info message in output, got %q", out)
			}
			if got := strings.Contains(out, "hidden-or-not"); got != tt.wantDebug {
				t.Fatalf("debug message present = %v, want %v (output %q)", got, tt.wantDebug, out)
			}
		})
	}
}

func TestConsoleLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(ConsoleLoggerParams{Format: "json", Output: &buf})
	l.Info("[Graph] Normalized", "edges", 3)

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "[Graph] Normalized" {
		t.Fatalf("unexpected msg field: %v", entry["msg"])
	}
	if entry["edges"] != float64(3) {
		t.Fatalf("unexpected edges field: %v", entry["edges"])
	}
}

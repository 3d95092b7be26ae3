package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{" error ", ErrorLevel},
		{"fatal", FatalLevel},
		{"bogus", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestComponentSharesOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Level: "debug", Output: &buf})

	log.Component("wallet").Info("account derived", "index", 3)

	out := buf.String()
	if !strings.Contains(out, "wallet") {
		t.Errorf("output %q missing component prefix", out)
	}
	if !strings.Contains(out, "account derived") {
		t.Errorf("output %q missing message", out)
	}
}

func TestComponentKeepsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&Config{Level: "error", Output: &buf})

	log.Component("sync").Info("should be filtered")

	if buf.Len() != 0 {
		t.Errorf("expected no output below level, got %q", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Error("nothing to see")
	log.Component("rpc").Warn("still nothing")
}

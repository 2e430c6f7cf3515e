package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		result := test.level.String()
		if result != test.expected {
			t.Errorf("LogLevel(%d).String() = %s, expected %s", test.level, result, test.expected)
		}
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{LogLevel(999), slog.LevelInfo},
	}

	for _, test := range tests {
		result := test.level.SlogLevel()
		if result != test.expected {
			t.Errorf("LogLevel(%d).SlogLevel() = %v, expected %v", test.level, result, test.expected)
		}
	}
}

func TestInitForCLI(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelInfo, &buf)

	Info("Test", "hello %s", "world")
	out := buf.String()
	if !strings.Contains(out, "hello world") {
		t.Errorf("expected output to contain message, got %q", out)
	}
	if !strings.Contains(out, "subsystem=Test") {
		t.Errorf("expected output to contain subsystem, got %q", out)
	}
}

func TestInitForCLI_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelWarn, &buf)

	Info("Test", "should be suppressed")
	if buf.Len() != 0 {
		t.Errorf("expected no output for filtered level, got %q", buf.String())
	}

	Warn("Test", "should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Errorf("expected warn output, got %q", buf.String())
	}
}

func TestErrorIncludesErrAttribute(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelDebug, &buf)

	Error("Test", errors.New("boom"), "operation failed")
	out := buf.String()
	if !strings.Contains(out, "boom") {
		t.Errorf("expected error attribute in output, got %q", out)
	}
}

func TestInitForRelay(t *testing.T) {
	ch := InitForRelay(LevelDebug)
	defer func() {
		relayMode = false
		CloseRelayChannel()
	}()

	Info("Relay", "queued entry")

	select {
	case entry := <-ch:
		if entry.Subsystem != "Relay" {
			t.Errorf("expected subsystem Relay, got %s", entry.Subsystem)
		}
		if entry.Message != "queued entry" {
			t.Errorf("unexpected message %q", entry.Message)
		}
		if entry.Level != LevelInfo {
			t.Errorf("unexpected level %v", entry.Level)
		}
	default:
		t.Fatal("expected an entry on the relay channel")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
	}
	for _, test := range tests {
		if got := ParseLogLevel(test.in); got != test.expected {
			t.Errorf("ParseLogLevel(%q) = %v, expected %v", test.in, got, test.expected)
		}
	}
}

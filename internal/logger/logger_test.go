package logger

import (
	"log/slog"
	"testing"
)

func TestInit(t *testing.T) {
	logger := Init("test-service", slog.LevelInfo)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestInit_SetsSlogDefault(t *testing.T) {
	logger := Init("test-service", slog.LevelWarn)
	if slog.Default() != logger {
		t.Fatal("expected Init to install the returned logger as the slog default")
	}
}

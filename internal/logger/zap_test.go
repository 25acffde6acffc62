package logger

import (
	"testing"

	"go.uber.org/zap"
)

func TestNewLevels(t *testing.T) {
	log, err := New("debug", true)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if !log.Core().Enabled(zap.DebugLevel) {
		t.Fatalf("debug level should be enabled")
	}

	log, err = New("warn", false)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if log.Core().Enabled(zap.InfoLevel) {
		t.Fatalf("info should be disabled at warn level")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud", false); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

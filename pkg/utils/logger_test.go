package utils

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	t.Run("debug mode enables debug level", func(t *testing.T) {
		logger, err := NewLogger(true)
		if err != nil {
			t.Fatalf("NewLogger(true) error: %v", err)
		}
		if logger == nil {
			t.Fatal("NewLogger(true) returned nil logger")
		}
		if !logger.Core().Enabled(zapcore.DebugLevel) {
			t.Error("debug logger should log at debug level")
		}
		_ = logger.Sync()
	})

	t.Run("default mode only logs warnings and above", func(t *testing.T) {
		logger, err := NewLogger(false)
		if err != nil {
			t.Fatalf("NewLogger(false) error: %v", err)
		}
		if logger == nil {
			t.Fatal("NewLogger(false) returned nil logger")
		}
		if logger.Core().Enabled(zapcore.InfoLevel) {
			t.Error("info should be suppressed so command output stays clean")
		}
		if !logger.Core().Enabled(zapcore.WarnLevel) {
			t.Error("warnings should be logged")
		}
		_ = logger.Sync()
	})
}

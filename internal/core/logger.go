package core

import (
	"log/slog"

	"thetacore/pkg/domain"
)

// Logger is the structured logging surface used by the engine. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

var _ Logger = (*slog.Logger)(nil)

// emit forwards a diagnostic to the logger at the matching level.
func emit(l Logger, d domain.Diagnostic) {
	switch d.Severity {
	case domain.SeverityWarn:
		l.Warn(d.Message)
	default:
		l.Info(d.Message)
	}
}

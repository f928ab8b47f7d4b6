package log

import (
	"context"

	"github.com/olusolaa/infra-deployer/internal/core/ports"
)

type nopLogger struct{}

// NewNop returns a logger that discards everything. Used in tests and as
// a safe fallback before the real logger is configured.
func NewNop() ports.Logger {
	return nopLogger{}
}

func (nopLogger) Debugf(context.Context, string, ...any)        {}
func (nopLogger) Infof(context.Context, string, ...any)         {}
func (nopLogger) Warnf(context.Context, string, ...any)         {}
func (nopLogger) Errorf(context.Context, error, string, ...any) {}
func (nopLogger) WithFields(map[string]any) ports.Logger        { return nopLogger{} }

// Package logger builds the zap loggers used as the interactive console.
package logger

import (
	"go.uber.org/zap"
)

// NewConsole returns a production logger, or a human readable development
// logger when development is true.
func NewConsole(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// MustConsole is NewConsole that panics on error.
func MustConsole(development bool) *zap.Logger {
	l, err := NewConsole(development)
	if err != nil {
		panic(err)
	}
	return l
}

func Nop() *zap.Logger {
	return zap.NewNop()
}

func Sync(l *zap.Logger) {
	if l != nil {
		_ = l.Sync()
	}
}

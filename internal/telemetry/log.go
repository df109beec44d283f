// Package telemetry provides the structured logger threaded through the
// store and the demonstration CLI programs. No repo in the example pack
// does structured logging itself; go.uber.org/zap is the idiomatic
// ecosystem choice for it in Go.
package telemetry

import "go.uber.org/zap"

// Nop returns a logger that discards everything, the default when a
// Store is constructed without an explicit logger.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// Development returns a human-readable development logger, used by the
// cmd/flat* demonstration programs.
func Development() *zap.Logger {
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

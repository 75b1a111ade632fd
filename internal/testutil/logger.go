package testutil

import (
	"io"

	"github.com/umarkhanovv/roadwatch/internal/logging"
)

// NullLogger returns a logger that discards all output
func NullLogger() *logging.Logger {
	return logging.NewWithWriter(logging.LevelError, "text", io.Discard)
}

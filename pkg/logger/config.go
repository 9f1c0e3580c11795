package logger

import (
	"io"
	"os"
)

// Config holds the logger configuration.
type Config struct {
	// Level sets the minimum log level (debug, info, warn, error)
	Level string

	// Environment determines output format (development = console, production = JSON)
	Environment string

	// Output is where log lines are written. The interactive shell points this
	// at a file so log lines do not tear the terminal UI.
	Output io.Writer

	// Writer, when set, also receives every entry at or above Level.
	Writer LogWriter
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:       "info",
		Environment: "development",
		Output:      os.Stderr,
	}
}

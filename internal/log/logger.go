package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

func New(environment string) zerolog.Logger {
	return NewWithWriter(environment, "", os.Stdout)
}

// NewWithWriter builds the console logger. An explicit level overrides the
// environment default; the CLI passes os.Stderr to keep stdout for results.
func NewWithWriter(environment string, level string, out io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    environment == "production",
	}

	logger := zerolog.New(output).With().
		Timestamp().
		Str("env", environment).
		Logger()

	if parsed, err := zerolog.ParseLevel(level); err == nil && level != "" {
		zerolog.SetGlobalLevel(parsed)
	} else if environment != "production" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	return logger
}

package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. Development gets a human readable console
// writer; every other environment logs JSON lines to stdout.
func New(environment, level string) *zerolog.Logger {
	var out io.Writer = os.Stdout
	if environment == "development" {
		out = consoleWriter()
	}
	return NewWithWriter(out, level)
}

// NewWithWriter builds a logger writing to w at the given level.
// Unknown levels fall back to info.
func NewWithWriter(w io.Writer, level string) *zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	log := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return &log
}

// Named returns a child logger tagged with the component name.
func Named(log *zerolog.Logger, name string) *zerolog.Logger {
	l := log.With().Str("name", name).Logger()
	return &l
}

// Nop returns a logger that discards everything.
func Nop() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func consoleWriter() zerolog.ConsoleWriter {
	output := zerolog.NewConsoleWriter()
	output.TimeFormat = time.RFC3339
	output.FormatLevel = func(i interface{}) string {
		return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
	}
	return output
}

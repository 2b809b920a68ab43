// Package logging builds the zerolog logger shared by every component and
// points the proving library's logger at it.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New returns a logger writing to w (stderr when nil). Unknown levels fall
// back to info, unknown formats to console.
func New(w io.Writer, level, format string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if !strings.EqualFold(format, FormatJSON) {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: true}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// WireProver redirects circuit compilation and proving logs to log. Below
// debug level they are dropped entirely.
func WireProver(log zerolog.Logger) {
	if log.GetLevel() > zerolog.DebugLevel {
		gnarklogger.Disable()
		return
	}
	gnarklogger.Set(log.With().Str("component", "prover").Logger())
}

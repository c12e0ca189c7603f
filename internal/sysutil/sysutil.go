// Package sysutil holds process-level helpers shared by the pledged commands.
package sysutil

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ParseLevel maps a LOG_LEVEL value to a zerolog level. "warning" is
// accepted for warn; blank and unknown values mean info.
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// InitLogging sets the global level and installs the process logger as
// zerolog's global, which the HTTP middleware derives request loggers from.
// Pretty selects the console writer; otherwise lines are JSON.
func InitLogging(w io.Writer, level string, pretty bool, service string) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(level))
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	lctx := zerolog.New(w).With().Timestamp()
	if service != "" {
		lctx = lctx.Str("service", service)
	}
	lg := lctx.Logger()
	log.Logger = lg
	zerolog.DefaultContextLogger = &lg
	return lg
}

// FirstNonEmpty returns the first value that is not blank, unchanged.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

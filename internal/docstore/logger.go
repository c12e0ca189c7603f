package docstore

import (
	"strings"

	"github.com/rs/zerolog"
)

// badgerLogger routes badger's printf-style logging to zerolog.
type badgerLogger struct {
	lg zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.lg.Error().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.lg.Warn().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.lg.Info().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.lg.Debug().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}

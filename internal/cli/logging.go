package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger builds a console logger at level and installs it as the global
// zerolog logger so env helpers report through it too.
func NewLogger(w io.Writer, level string) (zerolog.Logger, error) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}).
		Level(parsed).
		With().
		Timestamp().
		Logger()
	log.Logger = logger
	return logger, nil
}

// printfLogger adapts zerolog to the Printf loggers the sync packages take.
// zerolog's own Printf logs at debug level, which hides engine warnings.
type printfLogger struct {
	logger *zerolog.Logger
}

func (p printfLogger) Printf(format string, args ...any) {
	p.logger.Info().Msgf(format, args...)
}

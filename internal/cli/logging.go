package cli

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger configures the global logger: JSON on stderr, or a
// human-readable console writer with caller info when debug is set.
func SetupLogger(debug bool) {
	SetupLoggerTo(os.Stderr, debug)
}

func SetupLoggerTo(w io.Writer, debug bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	if !debug {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

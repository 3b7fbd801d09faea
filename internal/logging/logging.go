package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.elastic.co/ecszerolog"
)

const appName = "clinic-service"

// Setup configures the global zerolog logger.
// format is one of "console", "json" or "ecs".
func Setup(level, format string) {
	setup(os.Stdout, level, format)
}

func setup(out io.Writer, level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	switch strings.ToLower(format) {
	case "ecs":
		log.Logger = ecszerolog.New(out).With().Str("app", appName).Logger()
	case "json":
		log.Logger = zerolog.New(out).With().Str("app", appName).Timestamp().Logger()
	default:
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Str("app", appName).
			Timestamp().Logger()
	}
}

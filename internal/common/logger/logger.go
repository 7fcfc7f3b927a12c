package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options select the global logger's format and verbosity.
type Options struct {
	Service string
	// Level is a zerolog level name; empty means info, or debug when Debug is set.
	Level string
	Debug bool
	// JSON disables the console writer.
	JSON   bool
	Output io.Writer
}

// Init replaces the global logger.
func Init(opts Options) error {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.MessageFieldName = "message"

	level, err := parseLevel(opts)
	if err != nil {
		return err
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if !opts.JSON {
		out = consoleWriter(out)
	}

	// every line carries the service name
	log.Logger = zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", opts.Service).
		Logger()
	log.Debug().Str("level", level.String()).Msg("Logger initialized")
	return nil
}

// parseLevel resolves the level name; Debug only matters when Level is empty.
func parseLevel(opts Options) (zerolog.Level, error) {
	if opts.Level == "" {
		if opts.Debug {
			return zerolog.DebugLevel, nil
		}
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level %q: %w", opts.Level, err)
	}
	return level, nil
}

// consoleWriter renders "| LEVEL | message" lines for local runs.
func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		FormatLevel: func(i interface{}) string {
			return fmt.Sprintf("| %-6s|", i)
		},
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("| %s", i)
		},
	}
}

// Component returns a child of the global logger tagged with name.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

// ForCommunity tags l with a community id.
func ForCommunity(l zerolog.Logger, communityID string) zerolog.Logger {
	return l.With().Str("community_id", communityID).Logger()
}

// Shortcuts on the global logger.

func Debug() *zerolog.Event { return log.Debug() }
func Info() *zerolog.Event  { return log.Info() }
func Warn() *zerolog.Event  { return log.Warn() }
func Error() *zerolog.Event { return log.Error() }

// Fatal logs and exits.
func Fatal() *zerolog.Event { return log.Fatal() }

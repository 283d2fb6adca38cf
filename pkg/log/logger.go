package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

type Logger struct {
	zerolog zerolog.Logger
}

// NewLogger builds a logger writing to stderr.
func NewLogger(ctx context.Context, config *Config) (*Logger, error) {
	return newLogger(ctx, os.Stderr, config)
}

func newLogger(_ context.Context, out io.Writer, config *Config) (*Logger, error) {
	config.SetDefault()
	level, err := zerolog.ParseLevel(strings.ToLower(config.Level))
	if err != nil {
		return nil, errors.Wrap(err, "parse level")
	}

	zerolog.SetGlobalLevel(level)
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	output := buildLoggerOutput(out, config.HumanFriendly, config.NoColoredOutput)
	l := zerolog.New(output).With().
		Timestamp().
		Str("service", config.Service).
		Logger()

	return &Logger{zerolog: l}, nil
}

func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zerolog
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) *zerolog.Logger {
	child := l.zerolog.With().Str("component", name).Logger()
	return &child
}

func buildLoggerOutput(out io.Writer, isHumanFriendly, isNoColoredOutput bool) io.Writer {
	if !isHumanFriendly {
		return out
	}

	output := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    isNoColoredOutput,
		TimeFormat: time.RFC3339,
	}

	output.FormatLevel = func(i interface{}) string {
		var v string

		if ii, ok := i.(string); ok {
			// Level names are lowercase.
			switch strings.ToLower(ii) {
			case zerolog.DebugLevel.String(), zerolog.ErrorLevel.String(), zerolog.FatalLevel.String(),
				zerolog.InfoLevel.String(), zerolog.WarnLevel.String(), zerolog.PanicLevel.String(),
				zerolog.TraceLevel.String():
				v = fmt.Sprintf("%-5s", strings.ToUpper(ii))
			default:
				v = strings.ToUpper(ii)
			}
		}

		return fmt.Sprintf("| %s |", v)
	}

	return output
}

// Package logger provides the zerolog backed implementation of the logging
// interface used across the service. Output is JSON; set SO_ENV=dev for a
// human readable console format and SO_LOG_LEVEL to raise the minimum level.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	corelogger "github.com/kilianp07/storageopt/core/logger"
)

// Logger mirrors the core logging interface.
type Logger = corelogger.Logger

// New returns a Logger tagging every entry with the given component. Format
// and minimum level follow the SO_ENV and SO_LOG_LEVEL environment variables;
// an unknown level leaves the zerolog global minimum in effect.
func New(component string) Logger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(os.Getenv("SO_ENV"), "dev") {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	z := zerolog.New(out).With().Timestamp().Str("component", component).Logger()
	if lvl, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("SO_LOG_LEVEL"))); err == nil && lvl != zerolog.NoLevel {
		z = z.Level(lvl)
	}
	return &zlog{z: z}
}

type zlog struct {
	z zerolog.Logger
}

func (l *zlog) Debugf(format string, args ...any) { l.z.Debug().Msgf(format, args...) }

func (l *zlog) Debugw(msg string, fields map[string]any) { l.z.Debug().Fields(fields).Msg(msg) }

func (l *zlog) Infof(format string, args ...any) { l.z.Info().Msgf(format, args...) }

func (l *zlog) Warnf(format string, args ...any) { l.z.Warn().Msgf(format, args...) }

func (l *zlog) Errorf(format string, args ...any) { l.z.Error().Msgf(format, args...) }

// NopLogger implements Logger with no-op methods.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}

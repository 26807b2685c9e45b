// Package slogger is the process-wide logging facade. It forwards to a
// logging.ApplicationLogger that defaults to INFO json on stdout until
// Configure or SetGlobalLogger replaces it.
package slogger

import (
	"arxivshorts/internal/application/common/logging"
	"context"
	"sync"
	"sync/atomic"
)

type Fields = logging.Fields

//nolint:gochecknoglobals // process-wide logger
var (
	current     atomic.Pointer[logging.ApplicationLogger]
	defaultOnce sync.Once
)

func getLogger() logging.ApplicationLogger {
	if l := current.Load(); l != nil {
		return *l
	}
	defaultOnce.Do(func() {
		logger, err := logging.NewApplicationLogger(logging.Config{Level: "INFO", Format: "json", Output: "stdout"})
		if err != nil {
			panic("slogger: default logger: " + err.Error())
		}
		current.CompareAndSwap(nil, &logger)
	})
	return *current.Load()
}

// SetGlobalLogger replaces the process logger. Tests use it with a buffer logger.
func SetGlobalLogger(logger logging.ApplicationLogger) {
	current.Store(&logger)
}

// Configure installs a stdout logger with the given level and format.
func Configure(level, format string) error {
	logger, err := logging.NewApplicationLogger(logging.Config{Level: level, Format: format, Output: "stdout"})
	if err != nil {
		return err
	}
	SetGlobalLogger(logger)
	return nil
}

func Debug(ctx context.Context, msg string, fields Fields) { getLogger().Debug(ctx, msg, fields) }
func Info(ctx context.Context, msg string, fields Fields)  { getLogger().Info(ctx, msg, fields) }
func Warn(ctx context.Context, msg string, fields Fields)  { getLogger().Warn(ctx, msg, fields) }
func Error(ctx context.Context, msg string, fields Fields) { getLogger().Error(ctx, msg, fields) }

// ErrorWithError logs msg at ERROR with err attached.
func ErrorWithError(ctx context.Context, err error, msg string, fields Fields) {
	getLogger().ErrorWithError(ctx, err, msg, fields)
}

// The NoCtx variants log with a background context, for startup and shutdown
// paths that have none.

func InfoNoCtx(msg string, fields Fields)  { Info(context.Background(), msg, fields) }
func WarnNoCtx(msg string, fields Fields)  { Warn(context.Background(), msg, fields) }
func ErrorNoCtx(msg string, fields Fields) { Error(context.Background(), msg, fields) }

func Field(key string, value any) Fields { return Fields{key: value} }

func Fields2(k1 string, v1 any, k2 string, v2 any) Fields {
	return Fields{k1: v1, k2: v2}
}

func Fields3(k1 string, v1 any, k2 string, v2 any, k3 string, v3 any) Fields {
	return Fields{k1: v1, k2: v2, k3: v3}
}

// WithComponent returns the process logger scoped to component.
func WithComponent(component string) logging.ApplicationLogger {
	return getLogger().WithComponent(component)
}

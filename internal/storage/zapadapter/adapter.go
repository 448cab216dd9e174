// Package zapadapter bridges pgx query logging to a go.uber.org/zap.Logger and carries
// the HTTP request id from the context into every database log line.
package zapadapter

import (
	"context"

	"github.com/jackc/pgx/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

// NewContextWithID returns ctx carrying request id
func NewContextWithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IDFromContext extracts request id stored by NewContextWithID
func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

var levels = map[pgx.LogLevel]zapcore.Level{
	pgx.LogLevelTrace: zapcore.DebugLevel,
	pgx.LogLevelDebug: zapcore.DebugLevel,
	pgx.LogLevelInfo:  zapcore.InfoLevel,
	pgx.LogLevelWarn:  zapcore.WarnLevel,
	pgx.LogLevelError: zapcore.ErrorLevel,
}

// Logger implements pgx.Logger
type Logger struct {
	logger *zap.Logger
}

func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{logger: logger.Named("pgx").WithOptions(zap.AddCallerSkip(1))}
}

func (l *Logger) Log(ctx context.Context, level pgx.LogLevel, msg string, data map[string]interface{}) {
	lvl, known := levels[level]
	if !known {
		lvl = zapcore.ErrorLevel
	}

	ce := l.logger.Check(lvl, msg)
	if ce == nil {
		return
	}

	ce.Write(fields(ctx, level, known, data)...)
}

func fields(ctx context.Context, level pgx.LogLevel, known bool, data map[string]interface{}) []zapcore.Field {
	out := make([]zapcore.Field, 0, len(data)+2)

	if id, ok := IDFromContext(ctx); ok {
		out = append(out, zap.String("request_id", id))
	}

	for k, v := range data {
		out = append(out, zap.Reflect(k, v))
	}

	if level == pgx.LogLevelTrace || !known {
		out = append(out, zap.Stringer("PGX_LOG_LEVEL", level))
	}

	return out
}

package logger

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config describe el logger del proceso. Env "prod" emite JSON; cualquier
// otro valor usa consola con colores.
type Config struct {
	Env         string
	Level       string
	ServiceName string
	Version     string
}

// New arma el *zap.Logger del proceso. No lo registra como global: main
// decide si llamar a zap.ReplaceGlobals.
func New(cfg Config) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || cfg.Level == "" {
		lvl = zapcore.InfoLevel
	}

	var zc zap.Config
	opts := []zap.Option{zap.AddCaller()}
	if strings.EqualFold(cfg.Env, "prod") {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		zc.DisableStacktrace = true
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	l, err := zc.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	var base []zap.Field
	if cfg.ServiceName != "" {
		base = append(base, zap.String("service", cfg.ServiceName))
	}
	if cfg.Version != "" {
		base = append(base, zap.String("version", cfg.Version))
	}
	return l.With(base...), nil
}

// Or devuelve l, o el logger global de zap cuando l es nil.
func Or(l *zap.Logger) *zap.Logger {
	if l != nil {
		return l
	}
	return zap.L()
}

type scopedKey struct{}

// ToContext guarda el logger del request; lo usa el middleware de logging.
func ToContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, scopedKey{}, l)
}

// From recupera el logger del request o cae al global de zap.
func From(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(scopedKey{}).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return zap.L()
}

// FromWithFields es From(ctx).With(fields...).
func FromWithFields(ctx context.Context, fields ...zap.Field) *zap.Logger {
	return From(ctx).With(fields...)
}

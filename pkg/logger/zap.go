package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLogger implements Logger on top of zap. It shares the package level
// so SetLevel works for both backends.
type zapLogger struct {
	logger *zap.Logger
}

// levelEnabler bridges the slog level variable to zap.
type levelEnabler struct{}

func (levelEnabler) Enabled(l zapcore.Level) bool {
	return slogLevel(l) >= levelVar.Level()
}

func slogLevel(l zapcore.Level) slog.Level {
	switch {
	case l <= zapcore.DebugLevel:
		return slog.LevelDebug
	case l == zapcore.InfoLevel:
		return slog.LevelInfo
	case l == zapcore.WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func newZapLogger(out io.Writer) *zapLogger {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(out), levelEnabler{})
	return &zapLogger{logger: zap.New(core)}
}

func (z *zapLogger) Named(name string) Logger {
	return &zapLogger{logger: z.logger.Named(name)}
}

func (z *zapLogger) Info(_ context.Context, msg string, fields ...Field) {
	z.log(zapcore.InfoLevel, msg, fields, getCaller())
}

func (z *zapLogger) Error(_ context.Context, msg string, fields ...Field) {
	z.log(zapcore.ErrorLevel, msg, fields, getCaller())
}

func (z *zapLogger) Debug(_ context.Context, msg string, fields ...Field) {
	z.log(zapcore.DebugLevel, msg, fields, getCaller())
}

func (z *zapLogger) Warn(_ context.Context, msg string, fields ...Field) {
	z.log(zapcore.WarnLevel, msg, fields, getCaller())
}

func (z *zapLogger) Fatal(_ context.Context, msg string, fields ...Field) {
	z.log(zapcore.ErrorLevel, msg, fields, getCaller())
	_ = z.logger.Sync()
	os.Exit(1)
}

func (z *zapLogger) log(level zapcore.Level, msg string, fields []Field, caller string) {
	ce := z.logger.Check(level, msg)
	if ce == nil {
		return
	}
	zf := make([]zap.Field, 0, len(fields)+1)
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			zf = append(zf, zap.NamedError(f.Key, err))
			continue
		}
		zf = append(zf, zap.Any(f.Key, f.Value))
	}
	zf = append(zf, zap.String("source", caller))
	ce.Write(zf...)
}

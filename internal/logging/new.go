package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/rs/zerolog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatZerolog = "zerolog"
	FormatZap     = "zap"
)

// New builds a Logger writing to w in the given format. debug lowers the
// level so poll ticks and skipped events become visible.
func New(format string, w io.Writer, debug bool) (Logger, error) {
	level := slog.LevelInfo
	zlevel := zerolog.InfoLevel
	zapLevel := zapcore.InfoLevel
	if debug {
		level = slog.LevelDebug
		zlevel = zerolog.DebugLevel
		zapLevel = zapcore.DebugLevel
	}
	opts := &slog.HandlerOptions{Level: level}

	switch format {
	case FormatText, "":
		return NewSlogLogger(slog.New(slog.NewTextHandler(w, opts))), nil
	case FormatJSON:
		return NewSlogLogger(slog.New(slog.NewJSONHandler(w, opts))), nil
	case FormatZerolog:
		return NewZerologLogger(zerolog.New(w).Level(zlevel).With().Timestamp().Logger()), nil
	case FormatZap:
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		return NewZapLogger(zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), zapLevel))), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// Nop discards everything. Handy for tests and embedded use.
func Nop() Logger {
	return NewZerologLogger(zerolog.Nop())
}

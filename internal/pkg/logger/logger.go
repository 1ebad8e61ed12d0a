package logger

import (
	"context"
	"io"
	"os"
	"time"

	appctx "github.com/elik56a/orderflow/internal/pkg/context"
	"github.com/rs/zerolog"
)

// Logger is the process-wide structured logger. Init (or InitWithWriter)
// must run before any component logs.
var Logger zerolog.Logger

func Init() {
	InitWithWriter(os.Stdout)
}

func InitWithWriter(w io.Writer) {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	format := os.Getenv("LOG_FORMAT") // "json" or "console"
	if format == "" {
		format = "console"
	}

	var l zerolog.Logger
	if format == "json" {
		l = zerolog.New(w).With().Timestamp().Logger().Level(level)
	} else {
		l = zerolog.New(zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger().Level(level)
	}

	Logger = l
}

// WithCtx returns a logger enriched with the request id carried on ctx,
// if any.
func WithCtx(ctx context.Context) *zerolog.Logger {
	rid := appctx.GetRequestID(ctx)
	if rid != "" {
		l := Logger.With().Str("request_id", rid).Logger()
		return &l
	}
	return &Logger
}

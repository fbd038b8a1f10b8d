package logx

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Entry is one log record delivered to a Sink.
//
// Level is one of "debug", "info", "warning", "error".
type Entry struct {
	LoggerName string    `json:"logger_name"`
	Level      string    `json:"level"`
	Message    string    `json:"message"`
	Time       time.Time `json:"ts"`
}

// Sink receives log entries asynchronously. Implementations may be slow;
// the logger drops entries rather than block.
type Sink interface {
	WriteLog(ctx context.Context, e Entry) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Entry) error

func (f SinkFunc) WriteLog(ctx context.Context, e Entry) error { return f(ctx, e) }

// LevelName maps zerolog levels onto the sink's four-level vocabulary.
func LevelName(l zerolog.Level) string {
	switch {
	case l <= zerolog.DebugLevel:
		return "debug"
	case l == zerolog.InfoLevel:
		return "info"
	case l == zerolog.WarnLevel:
		return "warning"
	default:
		return "error"
	}
}

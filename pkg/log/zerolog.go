package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Zerolog backs Logger with a zerolog.Logger.
type Zerolog struct {
	logger zerolog.Logger
}

// NewZerolog wraps an existing zerolog.Logger.
func NewZerolog(logger zerolog.Logger) *Zerolog {
	return &Zerolog{logger: logger}
}

// NewConsole builds a console-writer logger on stderr at the given level.
func NewConsole(level zerolog.Level) *Zerolog {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &Zerolog{logger: logger}
}

// Debug logs a debug-level message.
func (z *Zerolog) Debug(msg string, fields ...Field) {
	emit(z.logger.Debug(), msg, fields)
}

// Info logs an info-level message.
func (z *Zerolog) Info(msg string, fields ...Field) {
	emit(z.logger.Info(), msg, fields)
}

// Warn logs a warning-level message.
func (z *Zerolog) Warn(msg string, fields ...Field) {
	emit(z.logger.Warn(), msg, fields)
}

// Error logs an error-level message.
func (z *Zerolog) Error(msg string, fields ...Field) {
	emit(z.logger.Error(), msg, fields)
}

func emit(event *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			event = event.Str(f.Key, v)
		case int:
			event = event.Int(f.Key, v)
		case time.Duration:
			event = event.Dur(f.Key, v)
		case error:
			event = event.AnErr(f.Key, v)
		default:
			event = event.Interface(f.Key, v)
		}
	}
	event.Msg(msg)
}

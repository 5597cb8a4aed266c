// Package logging wraps zerolog behind a small key-value logger shared
// by every pipeline stage and the HTTP layer.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger emits structured records. Fields are passed as alternating
// key-value pairs, error values are flattened to their message.
type Logger struct {
	zl zerolog.Logger
}

var global = NewDevelopment()

// NewDevelopment creates a console logger at debug level, the default
// until configuration is loaded
func NewDevelopment() *Logger {
	out := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return &Logger{zl: zerolog.New(out).Level(zerolog.DebugLevel).With().Timestamp().Logger()}
}

// NewWithWriter creates a logger writing JSON records to w
func NewWithWriter(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{zl: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// SetGlobal replaces the process-wide logger
func SetGlobal(l *Logger) {
	global = l
}

// Global returns the process-wide logger
func Global() *Logger {
	return global
}

// With returns a child logger carrying the given fields on every record
func (l *Logger) With(keyvals ...interface{}) *Logger {
	zc := l.zl.With()
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		zc = zc.Interface(key, keyvals[i+1])
	}
	return &Logger{zl: zc.Logger()}
}

func (l *Logger) Debug(msg string, keyvals ...interface{}) { emit(l.zl.Debug(), msg, keyvals) }
func (l *Logger) Info(msg string, keyvals ...interface{})  { emit(l.zl.Info(), msg, keyvals) }
func (l *Logger) Warn(msg string, keyvals ...interface{})  { emit(l.zl.Warn(), msg, keyvals) }
func (l *Logger) Error(msg string, keyvals ...interface{}) { emit(l.zl.Error(), msg, keyvals) }

// Fatal logs the record and exits the process
func (l *Logger) Fatal(msg string, keyvals ...interface{}) { emit(l.zl.Fatal(), msg, keyvals) }

func emit(e *zerolog.Event, msg string, keyvals []interface{}) {
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keyvals[i+1].(error); isErr && err != nil {
			e.Str(key, err.Error())
			continue
		}
		e.Interface(key, keyvals[i+1])
	}
	e.Msg(msg)
}

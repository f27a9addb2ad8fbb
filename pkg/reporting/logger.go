// Package reporting provides the structured logging used across every
// Helix component: local controller, TE engine, cluster layer, and root
// controller all log through a *Logger rather than fmt.Println.
package reporting

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level is the logging severity.
type Level string

const (
	LevelDebug    Level = "debug"
	LevelInfo     Level = "info"
	LevelWarn     Level = "warn" // transient errors (§7) log at this level
	LevelError    Level = "error"
	LevelCritical Level = "critical" // fatal errors (§7): invariant violations, config errors
)

// Format is the on-wire log encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config configures a Logger.
type Config struct {
	Level  Level
	Format Format
	Output io.Writer
}

// Logger wraps zerolog with the level/field vocabulary Helix components use
// (area_id, instance_id, cid/gid, switch dpid).
type Logger struct {
	zl zerolog.Logger
}

// New builds a Logger from cfg.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	var w io.Writer = out
	if cfg.Format == FormatText {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(w).With().Timestamp().Logger().Level(levelToZerolog(cfg.Level))
	return &Logger{zl: zl}
}

func levelToZerolog(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError, LevelCritical:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *Logger) Debug(msg string, fields ...interface{}) { l.log(l.zl.Debug(), msg, fields...) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.log(l.zl.Info(), msg, fields...) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.log(l.zl.Warn(), msg, fields...) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.log(l.zl.Error(), msg, fields...) }

// Critical logs at zerolog's error level with a fatal=true field plus the
// given fields, and does NOT exit;
// callers decide the exit code via herr.ExitCode and os.Exit themselves, so
// that Critical can be used in tests without killing the process.
func (l *Logger) Critical(msg string, fields ...interface{}) {
	event := l.zl.Error().Bool("fatal", true)
	l.addFields(event, fields...)
	event.Msg(msg)
}

func (l *Logger) log(event *zerolog.Event, msg string, fields ...interface{}) {
	l.addFields(event, fields...)
	event.Msg(msg)
}

// WithField returns a child logger carrying one extra field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// WithFields returns a child logger carrying several extra fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zl.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zl: ctx.Logger()}
}

func (l *Logger) addFields(event *zerolog.Event, fields ...interface{}) {
	if len(fields)%2 != 0 {
		event.Str("log_error", "odd number of field arguments")
		return
	}
	for i := 0; i < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			event.Str("log_error", fmt.Sprintf("field key at index %d is not a string", i))
			continue
		}
		event.Interface(key, fields[i+1])
	}
}

package logx

import (
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

type Level = zerolog.Level

const (
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
	LevelWarn  = zerolog.WarnLevel
	LevelError = zerolog.ErrorLevel
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

func init() {
	zerolog.ErrorFieldName = errKey
	zerolog.TimeFieldFormat = timeFormat
	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		return filepath.Base(file) + ":" + strconv.Itoa(line)
	}
}

// source yields the zerolog logger to write through. A Service swaps it on
// Apply; a standalone logger keeps one for life.
type source interface {
	current() *zerolog.Logger
}

type fixed struct{ zl zerolog.Logger }

func (f *fixed) current() *zerolog.Logger { return &f.zl }

// Logger writes structured lines. The zero value discards everything.
type Logger struct {
	src    source
	fields []Field
}

func Nop() Logger { return Logger{src: &fixed{zl: zerolog.Nop()}} }

// NewWriter logs JSON lines to w at level (debug when empty).
func NewWriter(w io.Writer, level string) Logger {
	zl := zerolog.New(w).Level(parseLevel(level, zerolog.DebugLevel)).With().Timestamp().Logger()
	return Logger{src: &fixed{zl: zl}}
}

func (l Logger) IsZero() bool { return l.src == nil && len(l.fields) == 0 }

func (l Logger) Enabled(level Level) bool {
	if l.src == nil {
		return false
	}
	return level >= l.src.current().GetLevel()
}

// With returns a child carrying fields on every line. The parent is unchanged.
func (l Logger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	l.fields = append(append(make([]Field, 0, len(l.fields)+len(fields)), l.fields...), fields...)
	return l
}

func (l Logger) Debug(msg string, fields ...Field) { l.emit(zerolog.DebugLevel, msg, fields) }
func (l Logger) Info(msg string, fields ...Field)  { l.emit(zerolog.InfoLevel, msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)  { l.emit(zerolog.WarnLevel, msg, fields) }
func (l Logger) Error(msg string, fields ...Field) { l.emit(zerolog.ErrorLevel, msg, fields) }

// emit must stay two frames below the caller of Debug/Info/Warn/Error.
func (l Logger) emit(level zerolog.Level, msg string, fields []Field) {
	if l.src == nil {
		return
	}
	e := l.src.current().WithLevel(level)
	if e == nil {
		return
	}
	e.Caller(2)
	for _, f := range l.fields {
		f.apply(e)
	}
	for _, f := range fields {
		f.apply(e)
	}
	e.Msg(msg)
}

// parseLevel accepts zerolog level names plus "warning".
func parseLevel(s string, def zerolog.Level) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return zerolog.WarnLevel
	}
	if s == "" {
		return def
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return def
	}
	return lvl
}

// Package logging builds the slog loggers of the swaplist commands. Output is tinted text
// on terminals and plain text elsewhere, so piped server logs stay free of escape codes.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// EnvLevel names the variable consulted when --log-level is not given.
const EnvLevel = "SWAPLIST_LOG_LEVEL"

type Level slog.Level

const (
	LevelDebug = Level(slog.LevelDebug)
	LevelInfo  = Level(slog.LevelInfo)
	LevelWarn  = Level(slog.LevelWarn)
	LevelError = Level(slog.LevelError)
)

var levelNames = map[string]Level{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

// ParseLevel maps a level name to a Level. Unknown names mean info.
func ParseLevel(value string) Level {
	if l, ok := levelNames[strings.ToLower(strings.TrimSpace(value))]; ok {
		return l
	}
	return LevelInfo
}

// ResolveLevel picks the flag value when it was set explicitly, then SWAPLIST_LOG_LEVEL,
// then the flag default.
func ResolveLevel(flagValue string, explicit bool) Level {
	if !explicit {
		if v := os.Getenv(EnvLevel); v != "" {
			return ParseLevel(v)
		}
	}
	return ParseLevel(flagValue)
}

func (l Level) String() string {
	return slog.Level(l).String()
}

// NewLogger writes to w, or stderr when w is nil.
func NewLogger(w io.Writer, level Level) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      slog.Level(level),
		TimeFormat: "15:04:05.000",
		NoColor:    !isTerminal(w),
	}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

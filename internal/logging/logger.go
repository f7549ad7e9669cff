// Package logging builds chainkit's zerolog loggers. Console style and level come
// from the logging section of the config file or the --log-level flag.
package logging

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Console styles accepted by logging.consoleStyle.
const (
	StylePretty = "pretty"
	StyleJSON   = "json"
)

// ValidStyles lists the accepted console styles.
var ValidStyles = []string{StylePretty, StyleJSON}

// ValidLevels lists the accepted level names, quietest first.
var ValidLevels = []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}

// Logger wraps zerolog to provide subsystem-scoped child loggers.
type Logger struct {
	zl zerolog.Logger
}

// New creates a root logger writing JSON lines to w at the given level. A nil w
// means pretty output on stderr. Unknown levels fall back to info.
func New(w io.Writer, level string) *Logger {
	if w == nil {
		return NewWithStyle(os.Stderr, StylePretty, level)
	}
	return newLogger(w, level)
}

// NewWithStyle creates a root logger on w (stderr if nil). StyleJSON emits one
// object per line; any other style uses the console writer, colored only when w
// is a terminal.
func NewWithStyle(w io.Writer, style, level string) *Logger {
	if w == nil {
		w = os.Stderr
	}
	if style != StyleJSON {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: !isTerminal(w)}
	}
	return newLogger(w, level)
}

func newLogger(w io.Writer, level string) *Logger {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return &Logger{zl: zerolog.New(w).With().Timestamp().Logger().Level(lvl)}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// Sub returns a child logger tagged with a subsystem name.
func (l *Logger) Sub(subsystem string) *Logger {
	return &Logger{zl: l.zl.With().Str("subsystem", subsystem).Logger()}
}

func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }

// Zerolog returns the underlying zerolog.Logger for advanced use.
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }

// ParseLevel maps one of ValidLevels to a zerolog level, ignoring case. The empty
// string means info.
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return zerolog.InfoLevel, nil
	case s == "silent":
		return zerolog.Disabled, nil
	case !slices.Contains(ValidLevels, s):
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return zerolog.ParseLevel(s)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

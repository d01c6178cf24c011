// Package logging implements the logger used by quayside.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/apex/log"
	"golang.org/x/term"
)

// Terminal colors
const (
	red    = 31
	yellow = 33
	blue   = 34
	gray   = 37
)

// std time format
const timeFmt = "2006/01/02 15:04:05.000000"

// Colors map to log levels
var levelColors = [...]int{
	log.DebugLevel: gray,
	log.InfoLevel:  blue,
	log.WarnLevel:  yellow,
	log.ErrorLevel: red,
	log.FatalLevel: red,
}

// Level names, as printed.
var levelNames = [...]string{
	log.DebugLevel: "DEBUG",
	log.InfoLevel:  "INFO",
	log.WarnLevel:  "WARN",
	log.ErrorLevel: "ERROR",
	log.FatalLevel: "FATAL",
}

// Level is a log level understood by WriterForLevel.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// Logger defines behavior required by the quayside client.
type Logger interface {
	Debug(msg string)
	Debugf(fmt string, v ...interface{})

	Info(msg string)
	Infof(fmt string, v ...interface{})

	Warn(msg string)
	Warnf(fmt string, v ...interface{})

	Error(msg string)
	Errorf(fmt string, v ...interface{})

	Writer() io.Writer

	IsVerbose() bool
}

// WithSelectableWriter is an optional interface for loggers that can provide
// a writer scoped to a log level.
type WithSelectableWriter interface {
	WriterForLevel(level Level) io.Writer
}

// GetWriterForLevel returns a writer for the given level if the logger
// supports one, and the logger's default writer otherwise.
func GetWriterForLevel(logger Logger, level Level) io.Writer {
	if s, ok := logger.(WithSelectableWriter); ok {
		return s.WriterForLevel(level)
	}

	return logger.Writer()
}

// Handler formats apex/log entries, toggling colors and timestamps.
type Handler struct {
	sync.Mutex
	Writer   io.Writer
	WantTime bool
	NoColor  bool
	timer    func() time.Time
}

func formatLevel(level log.Level, noColor bool) string {
	if noColor {
		return fmt.Sprintf("%-6s", levelNames[level])
	}

	return fmt.Sprintf("\033[%dm%-6s\033[0m", levelColors[level], levelNames[level])
}

// HandleLog writes a single log entry.
func (h *Handler) HandleLog(e *log.Entry) error {
	h.Lock()
	defer h.Unlock()

	if h.WantTime {
		ts := h.timer().Format(timeFmt)
		_, _ = fmt.Fprintf(h.Writer, "%s %s %s", ts, formatLevel(e.Level, h.NoColor), e.Message)
	} else {
		_, _ = fmt.Fprintf(h.Writer, "%s %s", formatLevel(e.Level, h.NoColor), e.Message)
	}

	_, _ = fmt.Fprintln(h.Writer)

	return nil
}

// NewLogHandler creates a quayside specific log handler
func NewLogHandler(w io.Writer) *Handler {
	return &Handler{
		Writer: w,
		timer: func() time.Time {
			return time.Now()
		},
	}
}

// LogWithWriter is a Logger backed by apex/log that also exposes its
// underlying writer, so that daemon output can be streamed through it.
type LogWithWriter struct {
	log.Logger
	handler *Handler
	out     io.Writer
}

// Option configures a LogWithWriter.
type Option func(*LogWithWriter)

// WithVerbose enables debug output.
func WithVerbose() Option {
	return func(lw *LogWithWriter) {
		lw.Logger.Level = log.DebugLevel
	}
}

// WithClock supplies the clock used for timestamps.
func WithClock(clock func() time.Time) Option {
	return func(lw *LogWithWriter) {
		lw.handler.timer = clock
	}
}

// NewLogWithWriter creates a logger that writes to w.
func NewLogWithWriter(w io.Writer, opts ...Option) *LogWithWriter {
	handler := NewLogHandler(w)

	lw := &LogWithWriter{
		handler: handler,
		out:     w,
	}
	lw.Logger.Handler = handler
	lw.Logger.Level = log.InfoLevel

	for _, opt := range opts {
		opt(lw)
	}

	return lw
}

// WantVerbose toggles debug output.
func (lw *LogWithWriter) WantVerbose(verbose bool) {
	if verbose {
		lw.Logger.Level = log.DebugLevel
	} else {
		lw.Logger.Level = log.InfoLevel
	}
}

// WantQuiet restricts output to warnings and errors.
func (lw *LogWithWriter) WantQuiet(quiet bool) {
	if quiet {
		lw.Logger.Level = log.WarnLevel
	} else {
		lw.Logger.Level = log.InfoLevel
	}
}

// WantTime toggles timestamps on log output.
func (lw *LogWithWriter) WantTime(wantTime bool) {
	lw.handler.WantTime = wantTime
}

// WantColor toggles colored level names on log output.
func (lw *LogWithWriter) WantColor(wantColor bool) {
	lw.handler.NoColor = !wantColor
}

func (lw *LogWithWriter) Writer() io.Writer {
	return lw.out
}

// WriterForLevel returns the underlying writer when the given level is
// enabled, and a discarding writer otherwise.
func (lw *LogWithWriter) WriterForLevel(level Level) io.Writer {
	if !lw.levelEnabled(level) {
		return io.Discard
	}

	return lw.out
}

func (lw *LogWithWriter) levelEnabled(level Level) bool {
	switch level {
	case DebugLevel:
		return lw.Logger.Level <= log.DebugLevel
	case InfoLevel:
		return lw.Logger.Level <= log.InfoLevel
	case WarnLevel:
		return lw.Logger.Level <= log.WarnLevel
	default:
		return true
	}
}

func (lw *LogWithWriter) IsVerbose() bool {
	return lw.Logger.Level == log.DebugLevel
}

// IsTerminal returns the file descriptor of a writer and whether it is
// attached to a terminal.
func IsTerminal(w io.Writer) (uintptr, bool) {
	if f, ok := w.(*os.File); ok {
		return f.Fd(), term.IsTerminal(int(f.Fd()))
	}

	return 0, false
}

func appendMissingLineFeed(msg string) string {
	if len(msg) == 0 || msg[len(msg)-1] != '\n' {
		return msg + "\n"
	}

	return msg
}

package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Logger provides leveled, timestamped logging throughout the application.
type Logger struct {
	info    *log.Logger
	warn    *log.Logger
	err     *log.Logger
	debug   *log.Logger
	verbose bool
	prefix  string
}

// NewLogger creates a new Logger writing to stdout/stderr.
func NewLogger() *Logger {
	return NewLoggerTo(os.Stdout, os.Stderr)
}

// NewLoggerTo creates a Logger that writes info, warn and debug lines to out
// and error lines to errOut.
func NewLoggerTo(out, errOut io.Writer) *Logger {
	flags := 0
	return &Logger{
		info:  log.New(out, "", flags),
		warn:  log.New(out, "", flags),
		err:   log.New(errOut, "", flags),
		debug: log.New(out, "", flags),
	}
}

// Discard returns a Logger that drops everything. Handy in tests.
func Discard() *Logger {
	return NewLoggerTo(io.Discard, io.Discard)
}

// SetVerbose toggles Debug output. Debug lines are dropped by default.
func (l *Logger) SetVerbose(v bool) {
	l.verbose = v
}

// WithRunID returns a copy of the logger that tags every line with the run ID.
func (l *Logger) WithRunID(id string) *Logger {
	cp := *l
	cp.prefix = "(" + id[:min(8, len(id))] + ") "
	return &cp
}

func (l *Logger) timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

func (l *Logger) Info(format string, args ...any) {
	l.info.Printf(fmt.Sprintf("[%s] \033[32mINFO\033[0m  %s%s\n", l.timestamp(), l.prefix, format), args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.warn.Printf(fmt.Sprintf("[%s] \033[33mWARN\033[0m  %s%s\n", l.timestamp(), l.prefix, format), args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.err.Printf(fmt.Sprintf("[%s] \033[31mERROR\033[0m %s%s\n", l.timestamp(), l.prefix, format), args...)
}

func (l *Logger) Debug(format string, args ...any) {
	if !l.verbose {
		return
	}
	l.debug.Printf(fmt.Sprintf("[%s] \033[36mDEBUG\033[0m %s%s\n", l.timestamp(), l.prefix, format), args...)
}

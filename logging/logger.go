// File: logging/logger.go
// Package logging provides the five-severity logging facility used
// throughout the core: info, debug, warn, error, fatal. Every line
// carries a timestamp and the calling OS thread id, matching the
// external collaborator the core's components are written against.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package logging

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Severity is one of the five levels a Logger accepts.
type Severity int

const (
	Debug Severity = iota
	Info
	Warn
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger wraps a standard library *log.Logger, prefixing every message
// with its severity and the OS thread id of the caller.
type Logger struct {
	out *log.Logger
	min Severity
}

// Default is the process-wide logger instance every package in this
// module logs through, mirroring the single global Logger instance the
// original exposes.
var Default = New(os.Stderr, Debug)

// New constructs a Logger writing to w, suppressing messages below
// minLevel.
func New(w io.Writer, minLevel Severity) *Logger {
	return &Logger{
		out: log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds),
		min: minLevel,
	}
}

// SetMinSeverity adjusts the suppression threshold.
func (l *Logger) SetMinSeverity(s Severity) { l.min = s }

func (l *Logger) logf(sev Severity, format string, args ...any) {
	if sev < l.min {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.out.Printf("[%s] [tid %d] %s", sev, gettid(), msg)
}

// Debugf logs at Debug severity.
func (l *Logger) Debugf(format string, args ...any) { l.logf(Debug, format, args...) }

// Infof logs at Info severity.
func (l *Logger) Infof(format string, args ...any) { l.logf(Info, format, args...) }

// Warnf logs at Warn severity.
func (l *Logger) Warnf(format string, args ...any) { l.logf(Warn, format, args...) }

// Errorf logs at Error severity.
func (l *Logger) Errorf(format string, args ...any) { l.logf(Error, format, args...) }

// Fatalf logs at Fatal severity and terminates the process, matching
// the core's error-handling policy for the "fatal setup" error kind
// (socket/eventfd creation, bind, listen, epoll_create failure, two
// loops in one thread).
func (l *Logger) Fatalf(format string, args ...any) {
	l.logf(Fatal, format, args...)
	os.Exit(1)
}

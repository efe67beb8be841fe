package logging_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/asobel/multiloop/logging"
)

func TestSeverityFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := logging.New(&buf, logging.Warn)

	l.Infof("should be suppressed")
	if buf.Len() != 0 {
		t.Fatalf("expected Info to be suppressed below Warn threshold, got %q", buf.String())
	}

	l.Warnf("hello %s", "world")
	if !strings.Contains(buf.String(), "hello world") {
		t.Fatalf("expected message body, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "[WARN]") {
		t.Fatalf("expected severity tag, got %q", buf.String())
	}
}

func TestAllSeveritiesCarryThreadID(t *testing.T) {
	var buf bytes.Buffer
	l := logging.New(&buf, logging.Debug)
	// Fatalf exits the process, so only the four non-terminating
	// severities are exercised here.
	for _, logf := range []func(string, ...any){l.Debugf, l.Infof, l.Warnf, l.Errorf} {
		buf.Reset()
		logf("x")
		if !strings.Contains(buf.String(), "tid ") {
			t.Fatalf("expected thread id in log line, got %q", buf.String())
		}
	}
}

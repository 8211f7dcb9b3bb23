package testutil

import (
	"bytes"
	"io"

	"github.com/sirupsen/logrus"
)

// NewTestLogger creates a logger that discards output (for clean test output).
func NewTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

// NewCapturingLogger returns a trace-level JSON logger writing into the
// returned buffer, for tests that assert on log fields and levels.
func NewCapturingLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer

	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.TraceLevel)

	return log, &buf
}

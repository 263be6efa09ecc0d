// Package logging builds the structured logger shared by every component.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"reelscrape/internal/media"
)

// New creates a logger at level ("debug", "info", "warn", "error"; unknown
// values fall back to info) writing text or JSON to w. A nil w means stderr.
func New(level string, jsonFormat bool, w io.Writer) *logrus.Logger {
	if w == nil {
		w = os.Stderr
	}

	l := logrus.New()
	l.SetOutput(w)

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)

	if jsonFormat {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	return l
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Failure logs err at debug when it is an expected outcome (nothing found,
// unrecognized layout) and at warn otherwise.
func Failure(log logrus.FieldLogger, err error, msg string) {
	entry := log.WithError(err)
	if media.IsExpected(err) {
		entry.Debug(msg)
		return
	}
	entry.Warn(msg)
}

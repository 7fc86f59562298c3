// Package logging configures the process logger and the tagged diagnostic
// channel used by the filtering engine.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New creates a text logger writing to w at info level, or debug when
// verbose is set.
func New(w io.Writer, verbose bool) *logrus.Logger {
	if w == nil {
		w = os.Stderr
	}
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(logrus.InfoLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// Discard returns a logger that drops everything. Tests use it.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// Tag formats the fixed diagnostic prefix identifying the engine build.
func Tag(version, variant string) string {
	return fmt.Sprintf("[Cosmetic filters (v%s %s)]", version, variant)
}

// Engine returns an entry carrying the diagnostic tag.
func Engine(log logrus.FieldLogger, version, variant string) *logrus.Entry {
	if log == nil {
		log = Discard()
	}
	return log.WithField("tag", Tag(version, variant))
}

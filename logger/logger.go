package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Options struct {
	// Output defaults to os.Stderr.
	Output io.Writer
	Debug  bool
	JSON   bool
}

// New builds the process logger. Components receive it as a logrus.FieldLogger
// and add their own host and step fields.
func New(opts Options) *logrus.Logger {
	l := logrus.New()

	l.Out = opts.Output
	if l.Out == nil {
		l.Out = os.Stderr
	}

	if opts.JSON {
		l.Formatter = &logrus.JSONFormatter{}
	} else {
		l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	}

	l.Level = logrus.InfoLevel
	if opts.Debug {
		l.Level = logrus.DebugLevel
	}
	return l
}

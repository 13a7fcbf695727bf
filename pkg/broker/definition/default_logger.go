package definition

import (
	"os"

	"github.com/sirupsen/logrus"
)

// The default logger used if the user does not provide its own
// implementation. Backed by logrus with a per-endpoint name field.
type DefaultLogger struct {
	entry *logrus.Entry
	debug bool
}

// NewDefaultLogger creates a logger tagging every line with the
// endpoint name.
func NewDefaultLogger(name string) *DefaultLogger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return &DefaultLogger{
		entry: logger.WithField("endpoint", name),
	}
}

func (l *DefaultLogger) Info(v ...interface{}) {
	l.entry.Info(v...)
}

func (l *DefaultLogger) Infof(format string, v ...interface{}) {
	l.entry.Infof(format, v...)
}

func (l *DefaultLogger) Warn(v ...interface{}) {
	l.entry.Warn(v...)
}

func (l *DefaultLogger) Warnf(format string, v ...interface{}) {
	l.entry.Warnf(format, v...)
}

func (l *DefaultLogger) Error(v ...interface{}) {
	l.entry.Error(v...)
}

func (l *DefaultLogger) Errorf(format string, v ...interface{}) {
	l.entry.Errorf(format, v...)
}

func (l *DefaultLogger) Debug(v ...interface{}) {
	l.entry.Debug(v...)
}

func (l *DefaultLogger) Debugf(format string, v ...interface{}) {
	l.entry.Debugf(format, v...)
}

func (l *DefaultLogger) Fatal(v ...interface{}) {
	l.entry.Fatal(v...)
}

func (l *DefaultLogger) Fatalf(format string, v ...interface{}) {
	l.entry.Fatalf(format, v...)
}

// ToggleDebug switches debug level logging on or off.
func (l *DefaultLogger) ToggleDebug(value bool) bool {
	l.debug = value
	if value {
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	}
	return l.debug
}

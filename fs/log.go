package fs

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

var logger *logrus.Logger = logrus.StandardLogger()

// SetLogger replaces the logger used by the library. The library only
// ever logs at debug level; wrappers may log higher.
func SetLogger(l *logrus.Logger) {
	logger = l
}

// Logger returns the logger in use
func Logger() *logrus.Logger {
	return logger
}

func logf(level logrus.Level, o interface{}, format string, args ...interface{}) {
	if !logger.IsLevelEnabled(level) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if o != nil {
		msg = fmt.Sprintf("%v: %s", o, msg)
	}
	logger.Log(level, msg)
}

// Debugf writes debug log output for o with the text formatted as with fmt.Printf
func Debugf(o interface{}, format string, args ...interface{}) {
	logf(logrus.DebugLevel, o, format, args...)
}

// Infof writes info log output for o. Only the cmd wrappers use this
// level - the library proper stays at debug.
func Infof(o interface{}, format string, args ...interface{}) {
	logf(logrus.InfoLevel, o, format, args...)
}

// Errorf writes error log output for o. Only the cmd wrappers use this
// level - the library proper stays at debug.
func Errorf(o interface{}, format string, args ...interface{}) {
	logf(logrus.ErrorLevel, o, format, args...)
}

// Unless explicitly stated otherwise all files in this repository are
// licensed under the Apache License Version 2.0.

package recorder

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Logger is the minimal logging surface a Session calls into. Hosts
// embedding this package into a larger binary can provide their own
// implementation instead of the logrus-backed default.
type Logger interface {
	Info(format string, a ...interface{})
	Warn(format string, a ...interface{})
	Error(format string, a ...interface{})
}

type logrusLogger struct {
	l *logrus.Logger
}

func newLogrusLogger() *logrusLogger {
	return &logrusLogger{l: logrus.StandardLogger()}
}

func (l *logrusLogger) Info(format string, a ...interface{})  { l.l.Info(fmt.Sprintf(format, a...)) }
func (l *logrusLogger) Warn(format string, a ...interface{})  { l.l.Warn(fmt.Sprintf(format, a...)) }
func (l *logrusLogger) Error(format string, a ...interface{}) { l.l.Error(fmt.Sprintf(format, a...)) }

var defaultLogger Logger = newLogrusLogger()

// Package logging sets up the process-wide structured logger.
package logging

import "github.com/sirupsen/logrus"

// Logger is used by every package in this module for transient-error and
// diagnostic output. Configured the way the teacher's util.NewLogger did:
// JSON lines with the caller file:line attached.
var Logger = newLogger()

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetReportCaller(true)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
	})
	return logger
}

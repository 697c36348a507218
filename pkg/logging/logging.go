// Package logging holds the shared logrus logger. JSON output so the
// hosting platform's log pipeline can index fields like client_id and day.
package logging

import (
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

// Logger returns the process-wide logger, creating it on first use.
// Level comes from WASTETRACK_LOG_LEVEL (default info).
func Logger() *logrus.Logger {
	once.Do(func() {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(levelFromEnv())
	})
	return logger
}

func levelFromEnv() logrus.Level {
	raw := strings.TrimSpace(os.Getenv("WASTETRACK_LOG_LEVEL"))
	if raw == "" {
		return logrus.InfoLevel
	}
	level, err := logrus.ParseLevel(raw)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// SkippedEvent logs a data-quality skip: a malformed record that the delta
// builder refused. Operator visibility only, never an error condition.
func SkippedEvent(clientID, eventID, reason string) {
	Logger().WithFields(logrus.Fields{
		"client_id": clientID,
		"event_id":  eventID,
		"reason":    reason,
	}).Warn("skipped invalid waste event")
}

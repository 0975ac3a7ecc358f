// Package logging builds the process logger.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"stockledger/internal/config"
)

// New returns a logrus logger writing to stdout. Format "json" selects the
// JSON formatter, anything else the text formatter. An unparsable level falls
// back to info.
func New(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

package logging_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"stockledger/internal/config"
	"stockledger/internal/logging"
)

func TestNew_JSON(t *testing.T) {
	l := logging.New(config.LogConfig{Level: "warn", Format: "JSON"})
	assert.IsType(t, &logrus.JSONFormatter{}, l.Formatter)
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())
}

func TestNew_ConsoleAndBadLevel(t *testing.T) {
	l := logging.New(config.LogConfig{Level: "loud", Format: "console"})
	assert.IsType(t, &logrus.TextFormatter{}, l.Formatter)
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}

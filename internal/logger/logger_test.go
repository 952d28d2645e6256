package logger_test

import (
	"testing"

	"github.com/castregistry/cast-registry/internal/logger"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		log, err := logger.New("JSON", "debug")
		assert.NoError(t, err)
		assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
		assert.Equal(t, logrus.DebugLevel, log.Level)
	})

	t.Run("text", func(t *testing.T) {
		log, err := logger.New("text", "warning")
		assert.NoError(t, err)
		assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
		assert.Equal(t, logrus.WarnLevel, log.Level)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := logger.New("yaml", "info")
		assert.EqualError(t, err, `invalid log format: "yaml"`)
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := logger.New("json", "loud")
		assert.Error(t, err)
	})
}

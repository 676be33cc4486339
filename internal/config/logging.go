package config

import (
	"os"

	"github.com/example/wordbot/pkg/models"
	"github.com/sirupsen/logrus"
)

// Logger builds the process logger from LOG_LEVEL and LOG_FORMAT
func (c *Config) Logger() (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, models.NewValidationError("log_level", err.Error())
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(lvl)
	switch c.Log.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, models.NewValidationError("log_format", "must be text or json")
	}
	return logger, nil
}

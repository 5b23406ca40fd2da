package config

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

func InitLogger() *logrus.Logger {

	var logger = logrus.New()

	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors: false,
		FullTimestamp: true,
		ForceColors:   true,
	})

	if lvl, err := logrus.ParseLevel(strings.TrimSpace(os.Getenv("LOG_LEVEL"))); err == nil {
		logger.SetLevel(lvl)
	}

	return logger
}

// Package logger builds the process-wide logrus logger.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing JSON in production and text elsewhere.
// Unknown levels fall back to info.
func New(env, level string) *logrus.Logger {
	return newWithOutput(os.Stdout, env, level)
}

func newWithOutput(w io.Writer, env, level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	if env == "prod" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

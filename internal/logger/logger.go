// Package logger is the leveled logger shared by every TrialStats binary.
package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/op/go-logging"
)

var logger *logging.Logger

func init() {
	InitLogger(logging.INFO)
}

// InitLogger routes all log output to stderr at the given level.
func InitLogger(level logging.Level) {
	newLogger := logging.MustGetLogger("trialstats")
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	format := logging.MustStringFormatter(`%{time:2006/01/02 15:04:05} %{level:.4s} %{module} - %{message}`)
	leveled := logging.AddModuleLevel(logging.NewBackendFormatter(backend, format))
	leveled.SetLevel(level, "trialstats")
	newLogger.SetBackend(leveled)
	logger = newLogger
}

// ParseLevel maps a config level name to a logging level.
func ParseLevel(name string) (logging.Level, error) {
	if name == "" {
		return logging.INFO, nil
	}
	level, err := logging.LogLevel(strings.ToUpper(name))
	if err != nil {
		return logging.INFO, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

func Debug(args ...interface{}) {
	logger.Debug(args...)
}

func Debugf(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

func Info(args ...interface{}) {
	logger.Info(args...)
}

func Infof(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

func Warning(args ...interface{}) {
	logger.Warning(args...)
}

func Warningf(format string, args ...interface{}) {
	logger.Warningf(format, args...)
}

func Error(args ...interface{}) {
	logger.Error(args...)
}

func Errorf(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

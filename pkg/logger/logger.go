// Package logger holds the process-wide zap logger.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the shared logger. It discards everything until Init is called.
var Log = zap.NewNop()

// New builds a logger at level. With a logFile the production JSON encoder
// writes to the file and stdout; without one the development console
// encoder is used. Unknown levels fall back to info.
func New(level string, logFile string) (*zap.Logger, error) {
	var config zap.Config
	if logFile != "" {
		config = zap.NewProductionConfig()
		config.OutputPaths = []string{logFile, "stdout"}
	} else {
		config = zap.NewDevelopmentConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(lvl)

	return config.Build()
}

// Init replaces Log with a logger built by New.
func Init(level string, logFile string) error {
	l, err := New(level, logFile)
	if err != nil {
		return err
	}
	Log = l
	return nil
}

// Sync flushes Log.
func Sync() error {
	if Log != nil {
		return Log.Sync()
	}
	return nil
}

// Package observability holds the process-wide logger and metrics.
package observability

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process logger. It discards everything until
// InitCLILogger or InitServerLogger runs.
var CLILogger = zap.NewNop()

// InitCLILogger configures CLILogger for interactive use: console encoding
// on stderr, info level, debug when verbose. stdout stays reserved for
// JSONL records.
func InitCLILogger(name string, verbose bool) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	CLILogger = zap.New(core).Named(name)
}

// InitServerLogger configures CLILogger for long-running services: JSON
// encoding on stderr at the given level.
func InitServerLogger(name, level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		lvl,
	)
	CLILogger = zap.New(core).Named(name)
	return nil
}

// ParseLevel maps a level name to a zap level. An empty name is info.
func ParseLevel(level string) (zapcore.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return lvl, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

package util

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a production logger at the named level writing to
// outputPaths, or stdout when none are given
func NewLogger(level string, outputPaths ...string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfgZap := zap.NewProductionConfig()
	cfgZap.Level.SetLevel(lvl)
	if len(outputPaths) > 0 {
		cfgZap.OutputPaths = outputPaths
	} else {
		cfgZap.OutputPaths = []string{"stdout"}
	}
	return cfgZap.Build()
}

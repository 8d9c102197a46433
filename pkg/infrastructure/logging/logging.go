package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds a zap logger. Format "json" selects the production encoder,
// anything else the human-readable development encoder.
func New(level, format string) (*zap.Logger, error) {
	var zapCfg zap.Config
	if format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	// Command output goes to stdout; keep logs off it.
	zapCfg.OutputPaths = []string{"stderr"}
	return zapCfg.Build()
}

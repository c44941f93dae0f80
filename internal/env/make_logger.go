package env

import (
	"fmt"
	"strings"

	"github.com/jirkagzw/Nanonis-Light-interface/logger"
)

// MakeLogger builds the logger selected by cfg.LogBackend ("slog" or "zap") at cfg.LogLevel.
func MakeLogger(cfg Config) (logger.Logger, error) {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.LogBackend) {
	case "slog", "":
		return logger.NewSlog(level, false), nil
	case "zap":
		return logger.NewZap(level)
	default:
		return nil, fmt.Errorf("unknown log backend %q", cfg.LogBackend)
	}
}

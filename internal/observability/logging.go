// Package observability builds the zap logger every binary shares and the
// gRPC interceptors that log discovery calls.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/hexrooms/internal/config"
)

// baseConfigs maps logging.format to the zap preset it starts from.
var baseConfigs = map[string]func() zap.Config{
	"json":    zap.NewProductionConfig,
	"console": zap.NewDevelopmentConfig,
}

// NewLogger builds the process logger. When server is set, every entry
// carries it as the "server" field so logs from several game servers can be
// told apart once aggregated.
//
// Precondition: cfg passed config validation.
// Postcondition: Returns a ready logger, or an error naming the bad setting.
func NewLogger(cfg config.LoggingConfig, server string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level %q: %w", cfg.Level, err)
	}
	base, ok := baseConfigs[cfg.Format]
	if !ok {
		return nil, fmt.Errorf("logging.format %q: want json or console", cfg.Format)
	}

	zc := base()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if server != "" {
		zc.InitialFields = map[string]any{"server": server}
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("building %s logger: %w", cfg.Format, err)
	}
	return logger, nil
}

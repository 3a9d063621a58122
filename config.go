package sandkasse

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/havarnov/sandkasse/internal/config"
	"github.com/havarnov/sandkasse/internal/logging"
	"github.com/havarnov/sandkasse/internal/substrate"
	"github.com/havarnov/sandkasse/protocol"
)

// Limits bound what a single eval may consume.
type Limits = substrate.Limits

// Config configures a Runtime.
type Config struct {
	Limits Limits

	// Codec names the wire encoding, "msgpack" (default) or "json".
	Codec string

	// Logger receives lifecycle and dispatch logs. Nil disables logging.
	Logger *zap.Logger

	// Registerer receives the runtime metrics. Nil selects a private registry,
	// available through Runtime.Gatherer.
	Registerer prometheus.Registerer
}

// DefaultConfig returns the configuration used by New.
func DefaultConfig() Config {
	return Config{
		Limits: substrate.DefaultLimits(),
		Codec:  protocol.CodecMsgPack,
	}
}

// LoadConfig builds a Config from the environment and the optional file named
// by SANDKASSE_CONFIG, including a logger built from the logging settings.
func LoadConfig() (Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return Config{}, protocol.Errorf(protocol.CodeInit, "%v", err)
	}
	logger, err := logging.New(logging.FromConfig(cfg.Logging))
	if err != nil {
		return Config{}, protocol.Errorf(protocol.CodeInit, "logger: %v", err)
	}
	return Config{
		Limits: Limits{
			Timeout:          cfg.Sandbox.Timeout.Std(),
			MaxCallStackSize: cfg.Sandbox.MaxCallStackSize,
			MaxHostCalls:     cfg.Sandbox.MaxHostCalls,
		},
		Codec:  cfg.Sandbox.Codec,
		Logger: logger,
	}, nil
}

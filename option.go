package tessera

import (
	"github.com/rs/zerolog"
)

// WorldOption modifies a World at construction time.
type WorldOption func(*World)

// WithLogger replaces the default logger.
func WithLogger(logger zerolog.Logger) WorldOption {
	return func(w *World) {
		w.logger = logger
	}
}

// WithConfig overrides the environment-loaded configuration.
func WithConfig(cfg WorldConfig) WorldOption {
	return func(w *World) {
		w.config = cfg
	}
}

package tessera

import (
	jlconfig "github.com/JeremyLoy/config"
	"github.com/rotisserie/eris"
)

// WorldConfig is loaded from the environment. Fields map to snake-cased
// environment variables via their config tags.
type WorldConfig struct {
	LogLevel      string `config:"TESSERA_LOG_LEVEL"`
	RedisAddress  string `config:"TESSERA_REDIS_ADDRESS"`
	RedisPassword string `config:"TESSERA_REDIS_PASSWORD"`
}

// GetWorldConfig loads the world configuration from the environment, applying
// defaults for unset variables.
func GetWorldConfig() (WorldConfig, error) {
	cfg := WorldConfig{
		LogLevel:     "info",
		RedisAddress: "localhost:6379",
	}
	if err := jlconfig.FromEnv().To(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to load world config")
	}
	return cfg, nil
}

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio. Se lee una sola vez al
// arrancar y es inmutable después.
type Config struct {
	HTTPPort           string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL        string `env:"DATABASE_URL,required"`
	RedisAddr          string `env:"REDIS_ADDR,required"`
	RedisPassword      string `env:"REDIS_PASSWORD"`
	RedisDB            int    `env:"REDIS_DB" envDefault:"0"`
	JWTSecret          string `env:"JWT_SECRET,required"`
	JWTAlgorithm       string `env:"JWT_ALGORITHM" envDefault:"HS256"`
	AccessTTLMinutes   int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	RefreshTTLDays     int    `env:"JWT_REFRESH_TTL_DAYS" envDefault:"7"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	// El esquema de firma es fijo por proceso, no negociable por llamada.
	if cfg.JWTAlgorithm != "HS256" {
		return nil, fmt.Errorf("unsupported jwt algorithm %q", cfg.JWTAlgorithm)
	}
	return &cfg, nil
}

// AccessTTL devuelve la vida útil de los access tokens.
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMinutes) * time.Minute
}

// RefreshTTL devuelve la vida útil de los refresh tokens.
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLDays) * 24 * time.Hour
}

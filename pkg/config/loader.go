package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load fills cfg from environment variables declared with `env` and
// `envDefault` struct tags. Nested structs are parsed recursively, so a
// service config may embed groups such as auction or circuit breaker settings.
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

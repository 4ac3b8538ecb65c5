package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Load reads .env.local and .env (local overrides .env, real environment
// overrides both) and parses the environment into target.
func Load(target any) error {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	return ParseEnv(target)
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

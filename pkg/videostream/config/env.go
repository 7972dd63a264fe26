package config

import (
	"fmt"
	"io"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv reads every tagged field from the process environment. Variables
// that are unset fall back to their env-default, so apply WithEnv before any
// programmatic overrides.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// Usage writes the list of supported environment variables to w.
func Usage(w io.Writer) func() {
	var cfg ServerConfig
	header := "Environment variables:"
	return cleanenv.FUsage(w, &cfg, &header)
}

package config

import (
	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration against its struct tags using
// go-playground/validator and returns a descriptive error on failure.
func Validate(cfg *Config) error {
	v := validator.New()
	return v.Struct(cfg)
}

package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing the first validation failure.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs validation that struct tags cannot express.
func validateCustomRules(cfg *Config) error {
	switch cfg.Store.Type {
	case "s3":
		s3Cfg, err := DecodeS3Config(&cfg.Store)
		if err != nil {
			return err
		}
		if err := validate.Struct(s3Cfg); err != nil {
			return formatS3Error(err)
		}
	case "badger":
		badgerCfg, err := DecodeBadgerConfig(&cfg.Store)
		if err != nil {
			return err
		}
		if badgerCfg.DBPath == "" && !badgerCfg.InMemory {
			return fmt.Errorf("store.badger.db_path: required unless in_memory is set")
		}
	}

	if cfg.Store.RateLimit.RequestsPerSecond == 0 && cfg.Store.RateLimit.Burst != 0 {
		return fmt.Errorf("store.rate_limit.burst: set without requests_per_second")
	}

	return nil
}

// formatS3Error names the environment variable that supplies a missing
// S3 value.
func formatS3Error(err error) error {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrs) == 0 {
		return err
	}

	e := validationErrs[0]
	key := s3KeyOf(e.StructField())
	if envs, ok := s3EnvBindings["store.s3."+key]; ok && e.Tag() == "required" {
		return fmt.Errorf("store.s3.%s: required (set %s)", key, envs[0])
	}
	return fmt.Errorf("store.s3.%s: validation failed on '%s' tag", key, e.Tag())
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}

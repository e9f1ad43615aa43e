package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their TOML key.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("toml"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks field ranges and formats.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			msgs := make([]string, 0, len(errs))
			for _, e := range errs {
				msgs = append(msgs, translateError(e))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if c.Balldontlie.Timeout.Duration <= 0 {
		return fmt.Errorf("balldontlie.timeout must be positive")
	}
	if c.Balldontlie.RetryBackoff.Duration < 0 {
		return fmt.Errorf("balldontlie.retry_backoff must not be negative")
	}
	if c.Exchange.Timeout.Duration <= 0 {
		return fmt.Errorf("exchange.timeout must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("predictor.timezone: %w", err)
	}
	return nil
}

// RequireAPIKey reports a missing sports-data credential.
func (c *Config) RequireAPIKey() error {
	if c.Balldontlie.APIKey == "" {
		return fmt.Errorf("balldontlie.api_key is not set: add it to %s or export %s", Path(), EnvAPIKey)
	}
	return nil
}

func translateError(e validator.FieldError) string {
	field := fieldPath(e.Namespace())
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "url":
		return field + " must be a URL"
	case "hostname_port":
		return field + " must be host:port"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, e.Tag())
	}
}

// fieldPath turns "Config.predictor.last_n_games" into "predictor.last_n_games".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// Redact returns a copy of the config with API keys masked for display.
func (c *Config) Redact() *Config {
	copy := *c
	copy.Balldontlie.APIKey = redactKey(c.Balldontlie.APIKey)
	return &copy
}

func redactKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

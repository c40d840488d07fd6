package config

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator validates configuration values using go-playground/validator
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	v := validator.New()

	// Register custom validation functions
	v.RegisterValidation("log_level", validateLogLevel)
	v.RegisterValidation("model_id", validateModelID)

	return &Validator{
		validate: v,
	}
}

// Validate validates a complete configuration. The first failure is
// returned as a ValidationError.
func (v *Validator) Validate(config *Config) error {
	if err := v.validate.Struct(config); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			e := validationErrors[0]
			return ValidationError{
				Field:   e.Namespace(),
				Message: fmt.Sprintf("%s: validation failed on tag '%s' with value '%v'", e.Namespace(), e.Tag(), e.Value()),
				Value:   e.Value(),
			}
		}
		return err
	}
	return nil
}

// validateLogLevel validates log level values
func validateLogLevel(fl validator.FieldLevel) bool {
	return slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(fl.Field().String()))
}

// vendor/model, optionally with a :variant suffix
var modelIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*/[a-zA-Z0-9][a-zA-Z0-9._:-]*$`)

// validateModelID validates OpenRouter model ids
func validateModelID(fl validator.FieldLevel) bool {
	return modelIDPattern.MatchString(fl.Field().String())
}

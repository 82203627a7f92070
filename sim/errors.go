package sim

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is the sentinel wrapped by every ConfigError.
// Callers match configuration failures with errors.Is(err, ErrInvalidConfig).
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigError reports a rejected configuration value. Field names the
// offending option using its configuration-file spelling (e.g. "max_batch_size").
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s = %v: %s", ErrInvalidConfig, e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// NewConfigError builds a ConfigError for field.
func NewConfigError(field string, value any, reason string) *ConfigError {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}

// ConfigErrorField returns the offending field of err if err wraps a
// ConfigError, or "" otherwise.
func ConfigErrorField(err error) string {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Field
	}
	return ""
}

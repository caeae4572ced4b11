package tree

import (
	"fmt"
)

// ConfigError is returned when a Config is invalid or contradictory.
// It is always detected before any solving starts.
type ConfigError struct {
	Field  string
	Reason string
}

func configErrorf(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// AllocationError is returned when a tree or its buffers would exceed the
// configured size limits.
type AllocationError struct {
	What     string
	Required int64
	Limit    int64
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("%s requires %d, exceeding the limit of %d", e.What, e.Required, e.Limit)
}

package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "hub.max_iters")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidSpokeKinds returns the spoke kinds the wheel can construct.
func ValidSpokeKinds() []string {
	return []string{"slam_max", "slam_min", "lookahead"}
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found. These are the static checks rejected at setup, before any
// loop executes.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if c.Wheel.Cylinders < 1 {
		errs = append(errs, ValidationError{
			Field:   "wheel.cylinders",
			Value:   c.Wheel.Cylinders,
			Message: "must be at least 1",
		})
	}
	if len(c.Wheel.Spokes) == 0 {
		errs = append(errs, ValidationError{
			Field:   "wheel.spokes",
			Value:   c.Wheel.Spokes,
			Message: "at least one spoke kind is required",
		})
	}
	seen := map[string]bool{}
	for _, kind := range c.Wheel.Spokes {
		if !contains(ValidSpokeKinds(), kind) {
			errs = append(errs, ValidationError{
				Field:   "wheel.spokes",
				Value:   kind,
				Message: fmt.Sprintf("unknown spoke kind, valid: %s", strings.Join(ValidSpokeKinds(), ", ")),
			})
		}
		if seen[kind] {
			errs = append(errs, ValidationError{
				Field:   "wheel.spokes",
				Value:   kind,
				Message: "spoke kind listed twice",
			})
		}
		seen[kind] = true
	}

	if c.Hub.MaxIters < 1 {
		errs = append(errs, ValidationError{
			Field:   "hub.max_iters",
			Value:   c.Hub.MaxIters,
			Message: "must be at least 1",
		})
	}
	if c.Hub.RelGap < 0 {
		errs = append(errs, ValidationError{
			Field:   "hub.rel_gap",
			Value:   c.Hub.RelGap,
			Message: "must be non-negative",
		})
	}
	if c.Hub.PollIntervalMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "hub.poll_interval_ms",
			Value:   c.Hub.PollIntervalMs,
			Message: "must be non-negative",
		})
	}
	if c.Hub.ShutdownGracePolls < 1 {
		errs = append(errs, ValidationError{
			Field:   "hub.shutdown_grace_polls",
			Value:   c.Hub.ShutdownGracePolls,
			Message: "must be at least 1",
		})
	}

	if seen["lookahead"] && c.Lookahead.ScenLimit < 1 {
		errs = append(errs, ValidationError{
			Field:   "lookahead.scen_limit",
			Value:   c.Lookahead.ScenLimit,
			Message: "must be at least 1 when the lookahead spoke is attached",
		})
	}
	if c.Lookahead.E1Tolerance <= 0 {
		errs = append(errs, ValidationError{
			Field:   "lookahead.e1_tolerance",
			Value:   c.Lookahead.E1Tolerance,
			Message: "must be positive",
		})
	}

	if c.Farmer.Scens < 1 {
		errs = append(errs, ValidationError{
			Field:   "farmer.scens",
			Value:   c.Farmer.Scens,
			Message: "must be at least 1",
		})
	}
	if c.Farmer.CropsMultiplier < 1 {
		errs = append(errs, ValidationError{
			Field:   "farmer.crops_multiplier",
			Value:   c.Farmer.CropsMultiplier,
			Message: "must be at least 1",
		})
	}

	if !contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if c.Logging.MaxSizeMB < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}
	if c.Logging.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errs
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

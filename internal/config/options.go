package config

import (
	"github.com/spinwheel-io/spinwheel/internal/errors"
)

// Options is the flat key→value mapping each role reads by name: heuristic
// knobs like "rounding_bias" or "scen_limit". Roles look keys up at
// construction time; a required-but-absent key is a fatal error then, never
// deferred to the loop.
type Options map[string]any

// Float returns the float64 value for key, if present.
func (o Options) Float(key string) (float64, bool) {
	v, ok := o[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	}
	return 0, false
}

// Int returns the int value for key, if present.
func (o Options) Int(key string) (int, bool) {
	v, ok := o[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return t, true
	case float64:
		return int(t), true
	}
	return 0, false
}

// Bool returns the bool value for key, if present.
func (o Options) Bool(key string) (bool, bool) {
	v, ok := o[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// String returns the string value for key, if present.
func (o Options) String(key string) (string, bool) {
	v, ok := o[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// FloatOr returns the float64 value for key, or def when absent.
func (o Options) FloatOr(key string, def float64) float64 {
	if v, ok := o.Float(key); ok {
		return v
	}
	return def
}

// IntOr returns the int value for key, or def when absent.
func (o Options) IntOr(key string, def int) int {
	if v, ok := o.Int(key); ok {
		return v
	}
	return def
}

// BoolOr returns the bool value for key, or def when absent.
func (o Options) BoolOr(key string, def bool) bool {
	if v, ok := o.Bool(key); ok {
		return v
	}
	return def
}

// RequireFloat returns the float64 value for key or a MissingOptionError.
func (o Options) RequireFloat(key string) (float64, error) {
	v, ok := o.Float(key)
	if !ok {
		return 0, errors.NewMissingOptionError(key)
	}
	return v, nil
}

// RequireInt returns the int value for key or a MissingOptionError.
func (o Options) RequireInt(key string) (int, error) {
	v, ok := o.Int(key)
	if !ok {
		return 0, errors.NewMissingOptionError(key)
	}
	return v, nil
}

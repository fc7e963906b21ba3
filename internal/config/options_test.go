package config

import (
	"testing"

	"github.com/spinwheel-io/spinwheel/internal/errors"
)

func TestOptionsTypedGetters(t *testing.T) {
	opts := Options{
		"rounding_bias": 0.5,
		"scen_limit":    3,
		"verbose":       true,
		"sense":         "max",
	}

	if v, ok := opts.Float("rounding_bias"); !ok || v != 0.5 {
		t.Errorf("Float(rounding_bias) = %v, %v", v, ok)
	}
	if v, ok := opts.Int("scen_limit"); !ok || v != 3 {
		t.Errorf("Int(scen_limit) = %v, %v", v, ok)
	}
	if v, ok := opts.Bool("verbose"); !ok || !v {
		t.Errorf("Bool(verbose) = %v, %v", v, ok)
	}
	if v, ok := opts.String("sense"); !ok || v != "max" {
		t.Errorf("String(sense) = %v, %v", v, ok)
	}
}

func TestOptionsNumericCoercion(t *testing.T) {
	opts := Options{"a": 2, "b": 2.0}

	// Ints read as floats and vice versa: viper-loaded YAML does not
	// distinguish reliably.
	if v, ok := opts.Float("a"); !ok || v != 2.0 {
		t.Errorf("Float(a) = %v, %v", v, ok)
	}
	if v, ok := opts.Int("b"); !ok || v != 2 {
		t.Errorf("Int(b) = %v, %v", v, ok)
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}

	if v := opts.FloatOr("rounding_bias", 0.25); v != 0.25 {
		t.Errorf("FloatOr = %v, want 0.25", v)
	}
	if v := opts.IntOr("scen_limit", 7); v != 7 {
		t.Errorf("IntOr = %v, want 7", v)
	}
	if v := opts.BoolOr("verbose", true); !v {
		t.Error("BoolOr should fall back to default")
	}
}

func TestOptionsRequire(t *testing.T) {
	opts := Options{"scen_limit": 5}

	if v, err := opts.RequireInt("scen_limit"); err != nil || v != 5 {
		t.Errorf("RequireInt = %v, %v", v, err)
	}

	_, err := opts.RequireFloat("rounding_bias")
	if err == nil {
		t.Fatal("RequireFloat on absent key should fail")
	}
	if !errors.Is(err, errors.ErrMissingOption) {
		t.Errorf("error = %v, want ErrMissingOption", err)
	}

	var missing *errors.MissingOptionError
	if !errors.As(err, &missing) || missing.Key != "rounding_bias" {
		t.Errorf("error should carry the key name, got %v", err)
	}
}

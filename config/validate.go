package config

import "fmt"

func validateOnMaxFailures(p OnMaxFailures) error {
	switch p {
	case OnMaxFailuresShutdown, OnMaxFailuresClear:
		return nil
	default:
		return fmt.Errorf("config: %s must be one of %q or %q, got %q",
			EnvOnMaxFailures, OnMaxFailuresShutdown, OnMaxFailuresClear, p)
	}
}

func validateVariant(v Variant) error {
	switch v {
	case VariantHashmap, VariantSorted, VariantHybrid, VariantStratified:
		return nil
	default:
		return fmt.Errorf("config: %s must be one of %q, %q, %q or %q, got %q",
			EnvVariant, VariantHashmap, VariantSorted, VariantHybrid, VariantStratified, v)
	}
}

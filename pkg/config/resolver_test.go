package config

import (
	"testing"
	"time"
)

func TestConfigResolver(t *testing.T) {
	t.Run("precedence order", func(t *testing.T) {
		t.Setenv("TEST_KEY", "env_value")
		t.Setenv("ENV_ONLY", "env_value")

		flagSource := NewFlagSource()
		flagSource.Set("TEST_KEY", "flag_value")

		resolver := NewConfigResolver(flagSource, &EnvSource{})

		if value := resolver.ResolveString("TEST_KEY", "default"); value != "flag_value" {
			t.Errorf("expected 'flag_value', got '%s'", value)
		}
		if value := resolver.ResolveString("ENV_ONLY", "default"); value != "env_value" {
			t.Errorf("expected 'env_value', got '%s'", value)
		}
		if value := resolver.ResolveString("MISSING_KEY", "default"); value != "default" {
			t.Errorf("expected 'default', got '%s'", value)
		}
	})

	t.Run("int resolution", func(t *testing.T) {
		flagSource := NewFlagSource()
		flagSource.Set("TEST_INT", 100)
		t.Setenv("TEST_INT", "50")

		resolver := NewConfigResolver(flagSource, &EnvSource{})

		if value := resolver.ResolveInt("TEST_INT", 1); value != 100 {
			t.Errorf("expected 100, got %d", value)
		}
		if value := resolver.ResolveInt("MISSING_INT", 42); value != 42 {
			t.Errorf("expected 42, got %d", value)
		}
	})

	t.Run("bool resolution", func(t *testing.T) {
		flagSource := NewFlagSource()
		flagSource.Set("TEST_BOOL", false)
		t.Setenv("TEST_BOOL", "true")
		t.Setenv("ENV_BOOL", "false")

		resolver := NewConfigResolver(flagSource, &EnvSource{})

		if resolver.ResolveBool("TEST_BOOL", true) {
			t.Error("expected explicit false flag to win")
		}
		if resolver.ResolveBool("ENV_BOOL", true) {
			t.Error("expected env false to override default")
		}
		if !resolver.ResolveBool("MISSING_BOOL", true) {
			t.Error("expected default true")
		}
	})

	t.Run("millis", func(t *testing.T) {
		t.Setenv("TEST_MS", "1500")
		resolver := NewConfigResolver(&EnvSource{})

		if d := resolver.ResolveMillis("TEST_MS", 1); d != 1500*time.Millisecond {
			t.Errorf("expected 1.5s, got %s", d)
		}
		if d := resolver.ResolveMillis("MISSING_MS", 600); d != 600*time.Millisecond {
			t.Errorf("expected 600ms, got %s", d)
		}
	})

	t.Run("nil sources skipped", func(t *testing.T) {
		resolver := NewConfigResolver(nil, NewFlagSource())
		if value := resolver.ResolveString("ANY", "default"); value != "default" {
			t.Errorf("expected 'default', got '%s'", value)
		}
	})
}

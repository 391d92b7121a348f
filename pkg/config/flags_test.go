package config

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func newFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs
}

func TestFlagSourceFromFlagSet(t *testing.T) {
	t.Run("empty args", func(t *testing.T) {
		flagSource := FlagSourceFromFlagSet(newFlagSet(t))

		// Registered defaults must not shadow lower layers
		if value, found := flagSource.GetString(KeyWSPath); found {
			t.Errorf("expected no value for %s, got '%s'", KeyWSPath, value)
		}
		if _, found := flagSource.GetInt(KeyJobTimeoutMs); found {
			t.Errorf("expected no value for %s", KeyJobTimeoutMs)
		}
	})

	t.Run("with values", func(t *testing.T) {
		fs := newFlagSet(t, "--gateway-url=http://gw.local", "--job-timeout-ms=15000", "--lqi-auto-refresh=false")
		flagSource := FlagSourceFromFlagSet(fs)

		if value, found := flagSource.GetString(KeyGatewayURL); !found || value != "http://gw.local" {
			t.Errorf("expected 'http://gw.local', got '%s' (found: %v)", value, found)
		}
		if value, found := flagSource.GetInt(KeyJobTimeoutMs); !found || value != 15000 {
			t.Errorf("expected 15000, got %d (found: %v)", value, found)
		}
		if value, found := flagSource.GetBool(KeyLQIAutoRefresh); !found || value {
			t.Errorf("expected false, got %v (found: %v)", value, found)
		}
	})

	t.Run("nil flag set", func(t *testing.T) {
		if _, found := FlagSourceFromFlagSet(nil).GetString(KeyGatewayURL); found {
			t.Error("expected empty flag source")
		}
	})
}

func TestEnvHelp(t *testing.T) {
	help := EnvHelp()
	for _, key := range []string{KeyGatewayURL, KeyReconnectCapMs, KeyLQIAutoRefresh} {
		if !strings.Contains(help, key) {
			t.Errorf("expected help to mention %s", key)
		}
	}
}

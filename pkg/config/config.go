package config

import (
	"time"

	"github.com/spf13/pflag"

	"gateway-console/pkg/session"
)

type Config struct {
	GatewayURL  string
	WSPath      string
	APIBasePath string
	ConfigFile  string
	HTTPTimeout time.Duration
	Reconnect   ReconnectConfig
	Jobs        JobConfig
	LQI         LQIConfig
}

type ReconnectConfig struct {
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	ReconcileDelay time.Duration
}

type JobConfig struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

type LQIConfig struct {
	TickInterval time.Duration
	AutoRefresh  bool
}

// Load loads configuration from CLI flags, environment variables and an
// optional YAML file, in that order of precedence.
func Load(fs *pflag.FlagSet) (*Config, error) {
	flagSource := FlagSourceFromFlagSet(fs)
	envSource := &EnvSource{}

	path := NewConfigResolver(flagSource, envSource).ResolveString(KeyConfigFile, "")
	fileSource, err := NewFileSource(path)
	if err != nil {
		return nil, err
	}

	cfg := Resolve(NewConfigResolver(flagSource, envSource, fileSource))
	cfg.ConfigFile = fileSource.Used()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve builds a configuration from resolver without validating it.
func Resolve(resolver *ConfigResolver) *Config {
	return &Config{
		GatewayURL:  resolver.ResolveString(KeyGatewayURL, ""),
		WSPath:      resolver.ResolveString(KeyWSPath, DefaultWSPath),
		APIBasePath: resolver.ResolveString(KeyAPIBasePath, DefaultAPIBasePath),
		HTTPTimeout: time.Duration(resolver.ResolveInt(KeyHTTPTimeoutSeconds, DefaultHTTPTimeoutSeconds)) * time.Second,
		Reconnect: ReconnectConfig{
			BaseDelay:      resolver.ResolveMillis(KeyReconnectBaseMs, DefaultReconnectBaseMs),
			MaxDelay:       resolver.ResolveMillis(KeyReconnectCapMs, DefaultReconnectCapMs),
			ReconcileDelay: resolver.ResolveMillis(KeyReconcileDelayMs, DefaultReconcileDelayMs),
		},
		Jobs: JobConfig{
			Timeout:      resolver.ResolveMillis(KeyJobTimeoutMs, DefaultJobTimeoutMs),
			PollInterval: resolver.ResolveMillis(KeyJobPollIntervalMs, DefaultJobPollIntervalMs),
		},
		LQI: LQIConfig{
			TickInterval: resolver.ResolveMillis(KeyLQITickMs, DefaultLQITickMs),
			AutoRefresh:  resolver.ResolveBool(KeyLQIAutoRefresh, DefaultLQIAutoRefresh),
		},
	}
}

// Session converts the configuration into session settings.
func (c *Config) Session() session.Config {
	sc := session.DefaultConfig()
	sc.GatewayURL = c.GatewayURL
	sc.WSPath = c.WSPath
	sc.APIBasePath = c.APIBasePath
	sc.HTTPTimeout = c.HTTPTimeout
	sc.Conn.BaseDelay = c.Reconnect.BaseDelay
	sc.Conn.MaxDelay = c.Reconnect.MaxDelay
	sc.Conn.ReconcileDelay = c.Reconnect.ReconcileDelay
	sc.Jobs.Timeout = c.Jobs.Timeout
	sc.Jobs.PollInterval = c.Jobs.PollInterval
	sc.TickInterval = c.LQI.TickInterval
	sc.AutoRefreshLQI = c.LQI.AutoRefresh
	return sc
}

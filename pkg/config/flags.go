package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// flagKeys maps each CLI flag to its configuration key
var flagKeys = map[string]string{
	FlagGatewayURL:         KeyGatewayURL,
	FlagWSPath:             KeyWSPath,
	FlagAPIBasePath:        KeyAPIBasePath,
	FlagConfigFile:         KeyConfigFile,
	FlagReconnectBaseMs:    KeyReconnectBaseMs,
	FlagReconnectCapMs:     KeyReconnectCapMs,
	FlagReconcileDelayMs:   KeyReconcileDelayMs,
	FlagJobTimeoutMs:       KeyJobTimeoutMs,
	FlagJobPollIntervalMs:  KeyJobPollIntervalMs,
	FlagLQITickMs:          KeyLQITickMs,
	FlagLQIAutoRefresh:     KeyLQIAutoRefresh,
	FlagHTTPTimeoutSeconds: KeyHTTPTimeoutSeconds,
}

// RegisterFlags defines the configuration flags on fs. Defaults are shown in
// help only; unset flags never shadow environment or file values.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagGatewayURL, "", HelpGatewayURL)
	fs.String(FlagWSPath, DefaultWSPath, HelpWSPath)
	fs.String(FlagAPIBasePath, DefaultAPIBasePath, HelpAPIBasePath)
	fs.String(FlagConfigFile, "", HelpConfigFile)
	fs.Int(FlagReconnectBaseMs, DefaultReconnectBaseMs, HelpReconnectBaseMs)
	fs.Int(FlagReconnectCapMs, DefaultReconnectCapMs, HelpReconnectCapMs)
	fs.Int(FlagReconcileDelayMs, DefaultReconcileDelayMs, HelpReconcileDelayMs)
	fs.Int(FlagJobTimeoutMs, DefaultJobTimeoutMs, HelpJobTimeoutMs)
	fs.Int(FlagJobPollIntervalMs, DefaultJobPollIntervalMs, HelpJobPollIntervalMs)
	fs.Int(FlagLQITickMs, DefaultLQITickMs, HelpLQITickMs)
	fs.Bool(FlagLQIAutoRefresh, DefaultLQIAutoRefresh, HelpLQIAutoRefresh)
	fs.Int(FlagHTTPTimeoutSeconds, DefaultHTTPTimeoutSeconds, HelpHTTPTimeoutSeconds)
}

// FlagSourceFromFlagSet copies the flags the user actually set into a FlagSource.
func FlagSourceFromFlagSet(fs *pflag.FlagSet) *FlagSource {
	flagSource := NewFlagSource()
	if fs == nil {
		return flagSource
	}

	fs.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		switch f.Value.Type() {
		case "int":
			if v, err := fs.GetInt(f.Name); err == nil {
				flagSource.Set(key, v)
			}
		case "bool":
			if v, err := fs.GetBool(f.Name); err == nil {
				flagSource.Set(key, v)
			}
		default:
			flagSource.Set(key, f.Value.String())
		}
	})
	return flagSource
}

// EnvHelp lists the environment variables for command help output.
func EnvHelp() string {
	keys := []struct{ key, desc string }{
		{KeyGatewayURL, HelpGatewayURL},
		{KeyWSPath, HelpWSPath},
		{KeyAPIBasePath, HelpAPIBasePath},
		{KeyConfigFile, HelpConfigFile},
		{KeyReconnectBaseMs, HelpReconnectBaseMs},
		{KeyReconnectCapMs, HelpReconnectCapMs},
		{KeyReconcileDelayMs, HelpReconcileDelayMs},
		{KeyJobTimeoutMs, HelpJobTimeoutMs},
		{KeyJobPollIntervalMs, HelpJobPollIntervalMs},
		{KeyLQITickMs, HelpLQITickMs},
		{KeyLQIAutoRefresh, HelpLQIAutoRefresh},
		{KeyHTTPTimeoutSeconds, HelpHTTPTimeoutSeconds},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", HelpEnvironmentVars)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %-22s %s\n", k.key, k.desc)
	}
	fmt.Fprintf(&b, "\n%s\n", HelpNote)
	return b.String()
}

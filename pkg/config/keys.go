package config

// Configuration key constants
// Environment variables use these names directly. Config files use the same
// names; viper matches them case-insensitively.

const (
	// Gateway endpoint keys
	KeyGatewayURL  = "GATEWAY_URL"
	KeyWSPath      = "WS_PATH"
	KeyAPIBasePath = "API_BASE_PATH"
	KeyConfigFile  = "CONFIG_FILE"

	// Push connection keys
	KeyReconnectBaseMs  = "RECONNECT_BASE_MS"
	KeyReconnectCapMs   = "RECONNECT_CAP_MS"
	KeyReconcileDelayMs = "RECONCILE_DELAY_MS"

	// Job keys
	KeyJobTimeoutMs      = "JOB_TIMEOUT_MS"
	KeyJobPollIntervalMs = "JOB_POLL_INTERVAL_MS"

	// Link quality keys
	KeyLQITickMs      = "LQI_TICK_MS"
	KeyLQIAutoRefresh = "LQI_AUTO_REFRESH"

	// Timeout keys
	KeyHTTPTimeoutSeconds = "HTTP_TIMEOUT_SECONDS"
)

// Default values for configuration
const (
	DefaultWSPath      = "/ws"
	DefaultAPIBasePath = "/api/v1"

	DefaultReconnectBaseMs  = 1000
	DefaultReconnectCapMs   = 10000
	DefaultReconcileDelayMs = 1200

	DefaultJobTimeoutMs      = 30000
	DefaultJobPollIntervalMs = 600

	DefaultLQITickMs      = 5000
	DefaultLQIAutoRefresh = true

	DefaultHTTPTimeoutSeconds = 10
)

// CLI flag names (kebab-case for command line)
const (
	FlagGatewayURL         = "gateway-url"
	FlagWSPath             = "ws-path"
	FlagAPIBasePath        = "api-base-path"
	FlagConfigFile         = "config"
	FlagReconnectBaseMs    = "reconnect-base-ms"
	FlagReconnectCapMs     = "reconnect-cap-ms"
	FlagReconcileDelayMs   = "reconcile-delay-ms"
	FlagJobTimeoutMs       = "job-timeout-ms"
	FlagJobPollIntervalMs  = "job-poll-interval-ms"
	FlagLQITickMs          = "lqi-tick-ms"
	FlagLQIAutoRefresh     = "lqi-auto-refresh"
	FlagHTTPTimeoutSeconds = "http-timeout-seconds"
)

// Help message constants
const (
	AppName        = "gwdash"
	AppDescription = "Zigbee gateway dashboard client"

	HelpGatewayURL         = "Gateway base URL, e.g. http://192.168.4.1 (required)"
	HelpWSPath             = "Push websocket path"
	HelpAPIBasePath        = "REST API base path"
	HelpConfigFile         = "YAML config file"
	HelpReconnectBaseMs    = "First reconnect delay in milliseconds"
	HelpReconnectCapMs     = "Reconnect delay cap in milliseconds"
	HelpReconcileDelayMs   = "Delay before pulling state after connect, in milliseconds"
	HelpJobTimeoutMs       = "Job timeout in milliseconds"
	HelpJobPollIntervalMs  = "Job poll interval in milliseconds"
	HelpLQITickMs          = "Link quality tick in milliseconds"
	HelpLQIAutoRefresh     = "Request an lqi_refresh job when link quality goes stale"
	HelpHTTPTimeoutSeconds = "HTTP request timeout in seconds"

	HelpEnvironmentVars = "Environment Variables:"
	HelpNote            = "Note: CLI options override environment variables, which override the config file"
)

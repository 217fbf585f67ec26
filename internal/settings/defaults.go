package settings

import "time"

const (
	DefaultConfigPath = "research-tracker.yaml"
	DefaultEnvFile    = ".env"
	EnvPrefix         = "RESEARCH_"

	DefaultTickInterval  = 10 * time.Second
	DefaultMaxStep       = 15
	MinMaxStep           = 2
	DefaultConfidenceMin = 70
	DefaultConfidenceMax = 89
	DefaultHTTPAddr      = ":8080"

	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	LogFormatText = "text"
	LogFormatJSON = "json"

	DefaultLogLevel  = LogLevelInfo
	DefaultLogFormat = LogFormatText
)

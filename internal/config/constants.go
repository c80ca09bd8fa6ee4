package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout    = 60 * time.Second
	ServerShutdownTimeout = 30 * time.Second
	TextGenRequestTimeout = 30 * time.Second
	CLICommandTimeout     = 2 * time.Minute

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute

	// Session timeouts
	SessionMaxAge = 7 * 24 * time.Hour // 7 days
)

// Analytics defaults
const (
	DefaultWeakTopicThreshold   = 70.0
	DefaultStrengthThreshold    = 80.0
	DefaultWeaknessThreshold    = 60.0
	DefaultTrendMinResults      = 6
	DefaultTrendWindow          = 3
	DefaultTrendDelta           = 5.0
	DefaultInProgressWindowDays = 7
	DefaultInProgressLimit      = 3
	DefaultMaxRecommendations   = 10
	// A question missed more than this many times before is a systematic error
	DefaultSystematicAfter     = 2
	DefaultRemedialLessons     = 3
	DefaultInsightsLimit       = 10
	MaxInsightsLimit           = 50
	DefaultCommonMistakesLimit = 5
	MaxCommonMistakesLimit     = 20
	DefaultTextGenMaxTokens    = 300
)

// Session configuration constants
const (
	SessionPath     = "/"
	SessionHTTPOnly = true
	SessionSecure   = false // Set to true in production with HTTPS

	SessionName = "learn-session"
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self'; img-src 'self' data:;"
)

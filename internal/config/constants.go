package config

import "time"

// Application constants for the finsheet import engine.
const (
	AppName    = "finsheet"
	AppVersion = "1.2.0"

	// Rate limiting.
	DefaultRateLimit = 100 // requests per minute
	DefaultBurstSize = 50

	// Network timeouts.
	DefaultHTTPTimeout  = 30 * time.Second
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// File paths (relative to working directory).
	DefaultDataDir    = "data"
	DefaultLogsDir    = "logs"
	DefaultInboxDir   = "data/inbox"
	DefaultResultsDir = "data/results"

	// Pipeline defaults.
	DefaultWorkerCount   = 4
	DefaultChunkSize     = 1000
	DefaultCacheTTL      = 5 * time.Minute
	DefaultCacheMaxSize  = 128
	DefaultImportTimeout = 10 * time.Minute

	// Classifier defaults. The balance magnitude cutoff is a tunable, not
	// a fixed law; see Classifier.BalanceMagnitude.
	DefaultBalanceMagnitude = 1000.0

	// Learning defaults.
	DefaultTemplateMatchThreshold = 0.7
	DefaultTemplateApplyThreshold = 0.8
	DefaultLearningDBFile         = "learning.db"

	// Log settings.
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// WebSocket buffer sizes.
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024

	// API endpoints.
	APIBasePath         = "/api"
	ImportEndpoint      = "/api/import"
	BatchEndpoint       = "/api/import/batch"
	IncrementalEndpoint = "/api/incremental"
	TemplatesEndpoint   = "/api/templates"
	HealthEndpoint      = "/api/health"
	MetricsEndpoint     = "/metrics"
	WebSocketEndpoint   = "/ws"
)

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Pipeline   PipelineConfig   `yaml:"pipeline" envconfig:"PIPELINE"`
	Classifier ClassifierConfig `yaml:"classifier" envconfig:"CLASSIFIER"`
	Learning   LearningConfig   `yaml:"learning" envconfig:"LEARNING"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	WebSocket  WebSocketConfig  `yaml:"websocket" envconfig:"WEBSOCKET"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
}

// PipelineConfig tunes the execution layer. Workers of 0 means use the
// available-parallelism hint.
type PipelineConfig struct {
	Workers       int           `yaml:"workers" envconfig:"WORKERS" default:"0"`
	ChunkSize     int           `yaml:"chunk_size" envconfig:"CHUNK_SIZE" default:"1000"`
	CacheTTL      time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL" default:"5m"`
	CacheMaxSize  int           `yaml:"cache_max_size" envconfig:"CACHE_MAX_SIZE" default:"128"`
	ImportTimeout time.Duration `yaml:"import_timeout" envconfig:"IMPORT_TIMEOUT" default:"10m"`
	EnableCaching bool          `yaml:"enable_caching" envconfig:"ENABLE_CACHING" default:"true"`
}

// ClassifierConfig tunes classification heuristics.
type ClassifierConfig struct {
	// BalanceMagnitude is the absolute value above which a numeric column
	// is labeled a balance rather than an amount. Tunable, not a fixed law.
	BalanceMagnitude float64 `yaml:"balance_magnitude" envconfig:"BALANCE_MAGNITUDE" default:"1000"`
}

// LearningConfig tunes the template store.
type LearningConfig struct {
	DBPath         string  `yaml:"db_path" envconfig:"DB_PATH" default:"data/learning.db"`
	MatchThreshold float64 `yaml:"match_threshold" envconfig:"MATCH_THRESHOLD" default:"0.7"`
	ApplyThreshold float64 `yaml:"apply_threshold" envconfig:"APPLY_THRESHOLD" default:"0.8"`
}

// PathsConfig contains file system paths configuration.
type PathsConfig struct {
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	InboxDir   string `yaml:"inbox_dir" envconfig:"INBOX_DIR" default:"data/inbox"`
	ResultsDir string `yaml:"results_dir" envconfig:"RESULTS_DIR" default:"data/results"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// WebSocketConfig contains WebSocket configuration.
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// Load loads configuration from environment variables and an optional
// YAML config file. Environment values take precedence.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("FINSHEET", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	configFile := configFilePath()
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileCfg, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file config with env config (env takes precedence).
func mergeConfigs(fileConfig, envConfig Config) Config {
	if envConfig.Server.Port == 0 {
		envConfig.Server.Port = fileConfig.Server.Port
	}
	if envConfig.Logging.Level == "" {
		envConfig.Logging.Level = fileConfig.Logging.Level
	}
	if envConfig.Logging.Output == "" {
		envConfig.Logging.Output = fileConfig.Logging.Output
	}
	if envConfig.Logging.FilePath == "" {
		envConfig.Logging.FilePath = fileConfig.Logging.FilePath
	}
	if envConfig.Pipeline.Workers == 0 {
		envConfig.Pipeline.Workers = fileConfig.Pipeline.Workers
	}
	if envConfig.Pipeline.ChunkSize == 0 {
		envConfig.Pipeline.ChunkSize = fileConfig.Pipeline.ChunkSize
	}
	if envConfig.Pipeline.CacheTTL == 0 {
		envConfig.Pipeline.CacheTTL = fileConfig.Pipeline.CacheTTL
	}
	if envConfig.Classifier.BalanceMagnitude == 0 {
		envConfig.Classifier.BalanceMagnitude = fileConfig.Classifier.BalanceMagnitude
	}
	if envConfig.Learning.DBPath == "" {
		envConfig.Learning.DBPath = fileConfig.Learning.DBPath
	}
	if envConfig.Learning.MatchThreshold == 0 {
		envConfig.Learning.MatchThreshold = fileConfig.Learning.MatchThreshold
	}
	if envConfig.Paths.DataDir == "" {
		envConfig.Paths.DataDir = fileConfig.Paths.DataDir
	}

	return envConfig
}

// configFilePath returns the config file location, overridable via
// FINSHEET_CONFIG_FILE.
func configFilePath() string {
	if p := os.Getenv("FINSHEET_CONFIG_FILE"); p != "" {
		return p
	}
	return "config.yaml"
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("pipeline workers must be >= 0, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.ChunkSize < 0 {
		return fmt.Errorf("pipeline chunk size must be >= 0, got %d", c.Pipeline.ChunkSize)
	}
	if c.Classifier.BalanceMagnitude < 0 {
		return fmt.Errorf("classifier balance magnitude must be >= 0, got %f", c.Classifier.BalanceMagnitude)
	}
	if c.Learning.MatchThreshold < 0 || c.Learning.MatchThreshold > 1 {
		return fmt.Errorf("learning match threshold must be in [0,1], got %f", c.Learning.MatchThreshold)
	}
	if c.Learning.ApplyThreshold < 0 || c.Learning.ApplyThreshold > 1 {
		return fmt.Errorf("learning apply threshold must be in [0,1], got %f", c.Learning.ApplyThreshold)
	}
	switch c.Logging.Output {
	case "", "console", "file", "both":
	default:
		return fmt.Errorf("invalid logging output: %s", c.Logging.Output)
	}
	return nil
}

// EnsureDirectories creates the configured directories if missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.InboxDir, c.Paths.ResultsDir, c.Paths.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if c.Learning.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(c.Learning.DBPath), 0o755); err != nil {
			return fmt.Errorf("failed to create learning db directory: %w", err)
		}
	}
	return nil
}

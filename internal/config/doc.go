// Package config provides centralized configuration for the finsheet
// import engine.
//
// Configuration is loaded from environment variables with the FINSHEET
// prefix, merged over an optional YAML file (config.yaml, overridable via
// FINSHEET_CONFIG_FILE). Environment values take precedence over file
// values, and everything has a sensible default so the binaries run with
// no configuration at all.
//
// Tunables that shape pipeline behavior (worker count, chunk size, cache
// TTL, the classifier's balance-magnitude cutoff, template match
// thresholds) live here rather than as package constants so deployments
// can adjust them without a rebuild.
package config

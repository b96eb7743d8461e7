// Package config provides centralized configuration management for latchdb.
//
// Configuration follows a two-tier hierarchy:
//   1. Command-line flags (highest priority)
//   2. Environment variables
//
// All values have sensible defaults and can be overridden through either
// tier. Tools and utilities should use this package for consistent
// configuration across the system.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for latchdb.
type Config struct {
	// Wait Registry Configuration
	// ===========================

	// ShardCount is the number of wait-array shards.
	// Environment: LATCHDB_WAIT_SHARDS
	// Default: 1
	// Must be >= 1. More shards reduce registry mutex contention; the
	// deadlock detector only sees the shard holding the root cell, so a
	// single shard gives it full visibility.
	ShardCount int

	// MaxThreads is the maximum number of concurrently waiting threads the
	// registry must be able to hold. Per-shard capacity is
	// ceil(MaxThreads / ShardCount).
	// Environment: LATCHDB_MAX_THREADS
	// Default: 1024
	MaxThreads int

	// FatalWaitTimeout is the hard ceiling on a single latch wait. When the
	// long-wait monitor sees a wait older than this, it reports fatal and
	// the watchdog terminates the process.
	// Environment: LATCHDB_FATAL_WAIT_SECONDS
	// Default: 600 seconds
	FatalWaitTimeout time.Duration

	// MonitorInterval is how often the watchdog scans for long waits.
	// Environment: LATCHDB_MONITOR_INTERVAL (seconds)
	// Default: 1 second
	MonitorInterval time.Duration

	// DeadlockDetect enables the holder-graph deadlock detector and the
	// per-latch holder records it needs. Debug feature; adds a global
	// mutex acquisition to every wait.
	// Environment: LATCHDB_DEADLOCK_DETECT
	// Default: false
	DeadlockDetect bool

	// Server Configuration
	// ====================

	// Port is the HTTP introspection server listening port.
	// Environment: LATCHDB_PORT
	// Default: 8090
	Port int

	// UseSSL enables TLS for the introspection server.
	// Environment: LATCHDB_USE_SSL
	// Default: false
	UseSSL bool

	// SSLCert is the path to the TLS certificate file.
	// Environment: LATCHDB_SSL_CERT
	// Default: "./certs/server.pem"
	SSLCert string

	// SSLKey is the path to the TLS private key file.
	// Environment: LATCHDB_SSL_KEY
	// Default: "./certs/server.key"
	SSLKey string

	// HTTPReadTimeout is the maximum duration for reading a request.
	// Environment: LATCHDB_HTTP_READ_TIMEOUT (seconds)
	// Default: 15 seconds
	HTTPReadTimeout time.Duration

	// HTTPWriteTimeout is the maximum duration before timing out writes.
	// Environment: LATCHDB_HTTP_WRITE_TIMEOUT (seconds)
	// Default: 15 seconds
	HTTPWriteTimeout time.Duration

	// HTTPIdleTimeout is the maximum time to wait for the next request.
	// Environment: LATCHDB_HTTP_IDLE_TIMEOUT (seconds)
	// Default: 60 seconds
	HTTPIdleTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Environment: LATCHDB_SHUTDOWN_TIMEOUT (seconds)
	// Default: 30 seconds
	ShutdownTimeout time.Duration

	// Security Configuration
	// ======================

	// AdminTokenHash is the bcrypt hash of the admin bearer token guarding
	// the introspection endpoints. Empty disables authentication (only
	// acceptable for development).
	// Environment: LATCHDB_ADMIN_TOKEN_HASH
	// Default: "" (auth disabled)
	AdminTokenHash string

	// API Documentation Configuration
	// ===============================

	// SwaggerHost is the host:port used in the served OpenAPI document.
	// Environment: LATCHDB_SWAGGER_HOST
	// Default: "localhost:8090"
	SwaggerHost string

	// Logging Configuration
	// =====================

	// LogLevel is the minimum log level (TRACE, DEBUG, INFO, WARN, ERROR).
	// Environment: LATCHDB_LOG_LEVEL
	// Default: "INFO"
	LogLevel string

	// TraceSubsystems is a comma-separated list of trace subsystems to
	// enable ("latch", "waitarr", "monitor").
	// Environment: LATCHDB_TRACE_SUBSYSTEMS
	// Default: ""
	TraceSubsystems string
}

// Load creates a Config populated from environment variables with defaults
// applied for anything unset.
func Load() *Config {
	return &Config{
		ShardCount:       getEnvInt("LATCHDB_WAIT_SHARDS", 1),
		MaxThreads:       getEnvInt("LATCHDB_MAX_THREADS", 1024),
		FatalWaitTimeout: getEnvSeconds("LATCHDB_FATAL_WAIT_SECONDS", 600),
		MonitorInterval:  getEnvSeconds("LATCHDB_MONITOR_INTERVAL", 1),
		DeadlockDetect:   getEnvBool("LATCHDB_DEADLOCK_DETECT", false),

		Port:             getEnvInt("LATCHDB_PORT", 8090),
		UseSSL:           getEnvBool("LATCHDB_USE_SSL", false),
		SSLCert:          getEnv("LATCHDB_SSL_CERT", "./certs/server.pem"),
		SSLKey:           getEnv("LATCHDB_SSL_KEY", "./certs/server.key"),
		HTTPReadTimeout:  getEnvSeconds("LATCHDB_HTTP_READ_TIMEOUT", 15),
		HTTPWriteTimeout: getEnvSeconds("LATCHDB_HTTP_WRITE_TIMEOUT", 15),
		HTTPIdleTimeout:  getEnvSeconds("LATCHDB_HTTP_IDLE_TIMEOUT", 60),
		ShutdownTimeout:  getEnvSeconds("LATCHDB_SHUTDOWN_TIMEOUT", 30),

		AdminTokenHash: getEnv("LATCHDB_ADMIN_TOKEN_HASH", ""),
		SwaggerHost:    getEnv("LATCHDB_SWAGGER_HOST", "localhost:8090"),

		LogLevel:        getEnv("LATCHDB_LOG_LEVEL", "INFO"),
		TraceSubsystems: getEnv("LATCHDB_TRACE_SUBSYSTEMS", ""),
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvSeconds returns a duration environment variable given in whole
// seconds, or a default
func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}

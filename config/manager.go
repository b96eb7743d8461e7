package config

import (
	"flag"
	"fmt"
	"sync"

	"latchdb/logger"
	"latchdb/models"
)

// ConfigManager applies latchdb's two-tier configuration hierarchy.
//
// Environment variables are loaded first; command-line flags override any
// value that was explicitly set on the command line. Flags use long names
// (--latchdb-*) to avoid conflicts with other tools.
//
// Thread Safety:
//   All operations are protected by a read-write mutex for safe concurrent
//   access from multiple goroutines.
type ConfigManager struct {
	mu sync.RWMutex

	// config holds the active configuration after applying both tiers.
	// Flag registration binds directly to these fields, so parsing
	// overwrites exactly the values given on the command line.
	config *Config
}

// NewConfigManager creates a new configuration manager instance
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config: Load(),
	}
}

// RegisterFlags registers all latchdb flags on the given flag set. Must be
// called before flag parsing.
func (cm *ConfigManager) RegisterFlags(fs *flag.FlagSet) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	c := cm.config

	fs.IntVar(&c.ShardCount, "latchdb-wait-shards", c.ShardCount,
		"Number of wait-array shards (env: LATCHDB_WAIT_SHARDS)")
	fs.IntVar(&c.MaxThreads, "latchdb-max-threads", c.MaxThreads,
		"Maximum concurrently waiting threads (env: LATCHDB_MAX_THREADS)")
	fs.DurationVar(&c.FatalWaitTimeout, "latchdb-fatal-wait-timeout", c.FatalWaitTimeout,
		"Hard ceiling on a single latch wait (env: LATCHDB_FATAL_WAIT_SECONDS)")
	fs.DurationVar(&c.MonitorInterval, "latchdb-monitor-interval", c.MonitorInterval,
		"Long-wait monitor scan interval (env: LATCHDB_MONITOR_INTERVAL)")
	fs.BoolVar(&c.DeadlockDetect, "latchdb-deadlock-detect", c.DeadlockDetect,
		"Enable the debug deadlock detector (env: LATCHDB_DEADLOCK_DETECT)")

	fs.IntVar(&c.Port, "latchdb-port", c.Port,
		"Introspection server port (env: LATCHDB_PORT)")
	fs.BoolVar(&c.UseSSL, "latchdb-use-ssl", c.UseSSL,
		"Enable TLS for the introspection server (env: LATCHDB_USE_SSL)")
	fs.StringVar(&c.SSLCert, "latchdb-ssl-cert", c.SSLCert,
		"TLS certificate path (env: LATCHDB_SSL_CERT)")
	fs.StringVar(&c.SSLKey, "latchdb-ssl-key", c.SSLKey,
		"TLS key path (env: LATCHDB_SSL_KEY)")

	fs.StringVar(&c.AdminTokenHash, "latchdb-admin-token-hash", c.AdminTokenHash,
		"Bcrypt hash of the admin bearer token (env: LATCHDB_ADMIN_TOKEN_HASH)")
	fs.StringVar(&c.SwaggerHost, "latchdb-swagger-host", c.SwaggerHost,
		"Host used in the OpenAPI document (env: LATCHDB_SWAGGER_HOST)")

	fs.StringVar(&c.LogLevel, "latchdb-log-level", c.LogLevel,
		"Minimum log level (env: LATCHDB_LOG_LEVEL)")
	fs.StringVar(&c.TraceSubsystems, "latchdb-trace-subsystems", c.TraceSubsystems,
		"Comma-separated trace subsystems (env: LATCHDB_TRACE_SUBSYSTEMS)")
}

// Initialize validates the merged configuration and returns it.
func (cm *ConfigManager) Initialize() (*Config, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	c := cm.config

	if c.ShardCount < 1 {
		return nil, fmt.Errorf("%w: wait shards must be >= 1, got %d",
			models.ErrInvalidConfig, c.ShardCount)
	}
	if c.MaxThreads < 1 {
		return nil, fmt.Errorf("%w: max threads must be >= 1, got %d",
			models.ErrInvalidConfig, c.MaxThreads)
	}
	if c.FatalWaitTimeout <= 0 {
		return nil, fmt.Errorf("%w: fatal wait timeout must be positive, got %v",
			models.ErrInvalidConfig, c.FatalWaitTimeout)
	}
	if c.MonitorInterval <= 0 {
		return nil, fmt.Errorf("%w: monitor interval must be positive, got %v",
			models.ErrInvalidConfig, c.MonitorInterval)
	}
	if c.Port < 1 || c.Port > 65535 {
		return nil, fmt.Errorf("%w: port out of range: %d",
			models.ErrInvalidConfig, c.Port)
	}

	logger.Debug("configuration initialized: shards=%d max_threads=%d fatal_timeout=%v",
		c.ShardCount, c.MaxThreads, c.FatalWaitTimeout)

	return c, nil
}

// GetConfig returns the active configuration
func (cm *ConfigManager) GetConfig() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

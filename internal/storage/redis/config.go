package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// SessionTTL is the expiry applied to every key of a session's namespace.
	// It is refreshed whenever the session record is written.
	SessionTTL time.Duration

	// HostLockTTL bounds how long a crashed process can hold a host/quiz lock
	HostLockTTL time.Duration
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:          "redis://localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		SessionTTL:   2 * time.Hour,
		HostLockTTL:  2 * time.Hour,
	}
}

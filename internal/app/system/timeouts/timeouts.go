// Package timeouts holds the deadlines handlers and workers put on database
// and identity-provider calls.
//
// Values are set once at startup through Configure (from the timeout_* config
// keys); until then the defaults apply.
//   - Ping: health checks
//   - Short: single-record reads
//   - Medium: single writes and form actions
//   - Long: webhook processing, which may touch the mirror, the identity
//     provider and the event bus in one request
package timeouts

import (
	"sync"
	"time"
)

// Defaults used until Configure is called.
const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 30 * time.Second
)

// Config holds timeout values. Zero values keep the current setting.
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

var (
	mu      sync.RWMutex
	current = defaults()
)

func defaults() Config {
	return Config{Ping: DefaultPing, Short: DefaultShort, Medium: DefaultMedium, Long: DefaultLong}
}

// Ping returns the health-check timeout.
func Ping() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return current.Ping
}

// Short returns the timeout for single-record reads.
func Short() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return current.Short
}

// Medium returns the timeout for single writes.
func Medium() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return current.Medium
}

// Long returns the timeout for multi-target operations.
func Long() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return current.Long
}

// Configure applies the non-zero values of cfg.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		current.Ping = cfg.Ping
	}
	if cfg.Short > 0 {
		current.Short = cfg.Short
	}
	if cfg.Medium > 0 {
		current.Medium = cfg.Medium
	}
	if cfg.Long > 0 {
		current.Long = cfg.Long
	}
}

// Reset restores the defaults. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	current = defaults()
}

// Current returns the active values, for startup logging.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

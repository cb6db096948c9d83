package admin

import "time"

// Config holds the admin HTTP server's configuration.
type Config struct {
	Host          string
	Port          int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	EnableCORS    bool
	EnableLogging bool
}

// DefaultConfig returns sensible defaults for the admin surface.
func DefaultConfig() *Config {
	return &Config{
		Host:          "localhost",
		Port:          8080,
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   120 * time.Second,
		EnableCORS:    true,
		EnableLogging: true,
	}
}

package api

import "time"

// Config holds server configuration.
type Config struct {
	Port              int
	TranslatorDir     string        // Directory scanned for translator modules
	HistoryDB         string        // SQLite run history path (empty = recording disabled)
	ReloadInterval    time.Duration // How long a loaded registry stays fresh (0 = 5s default)
	RateLimitRequests int           // Requests per minute (0 = disabled)
	RateLimitBurst    int           // Burst size
	Auth              AuthConfig    // Authentication configuration
	TLS               TLSConfig     // TLS configuration
	AllowedOrigins    []string      // CORS allowed origins (empty = allow all)
}

// TLSConfig holds TLS/HTTPS configuration.
type TLSConfig struct {
	Enabled  bool   // Enable HTTPS
	CertFile string // Path to TLS certificate file
	KeyFile  string // Path to TLS private key file
}

// ServerConfig is the active server configuration.
var ServerConfig Config

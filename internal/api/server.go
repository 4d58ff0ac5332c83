// Package api provides the REST and WebSocket server for running
// translator tests and browsing run history.
package api

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/zotero/translate/core/translator"
	"github.com/zotero/translate/internal/cache"
	"github.com/zotero/translate/internal/history"
	"github.com/zotero/translate/internal/logging"
	"github.com/zotero/translate/internal/server"

	// Register the built-in extraction handlers.
	_ "github.com/zotero/translate/internal/builtin"
)

// Server state installed by Start.
var (
	registryCache *cache.Value[*translator.Registry]
	runHistory    *history.Store
)

// currentRegistry returns the loaded translator registry, refreshing
// it from disk when the reload interval has lapsed.
func currentRegistry() (*translator.Registry, error) {
	if registryCache == nil {
		return nil, fmt.Errorf("translator registry not initialized")
	}
	return registryCache.Get()
}

// Start starts the API server with the given configuration. It blocks
// serving requests until the listener fails.
func Start(cfg Config) error {
	if cfg.ReloadInterval <= 0 {
		cfg.ReloadInterval = 5 * time.Second
	}
	ServerConfig = cfg

	if err := ValidateAuthConfig(cfg.Auth); err != nil {
		return fmt.Errorf("invalid auth config: %w", err)
	}

	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert or key file not specified")
		}
		if _, err := os.Stat(cfg.TLS.CertFile); err != nil {
			return fmt.Errorf("TLS cert file not found: %w", err)
		}
		if _, err := os.Stat(cfg.TLS.KeyFile); err != nil {
			return fmt.Errorf("TLS key file not found: %w", err)
		}
	}

	registryCache = cache.NewValue(cfg.ReloadInterval, func() (*translator.Registry, error) {
		return translator.LoadDir(cfg.TranslatorDir)
	})
	reg, err := registryCache.Get()
	if err != nil {
		return fmt.Errorf("load translators: %w", err)
	}

	if cfg.HistoryDB != "" {
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			return fmt.Errorf("open run history: %w", err)
		}
		runHistory = store
	} else {
		logging.Warn("run history disabled", "reason", "no database path configured")
	}

	GlobalHub = NewHub()
	go GlobalHub.Run()

	mux := setupRoutes()

	protocol := "http"
	wsProtocol := "ws"
	if cfg.TLS.Enabled {
		protocol = "https"
		wsProtocol = "wss"
		logging.Info("TLS enabled", "cert_file", cfg.TLS.CertFile)
	} else {
		logging.Warn("TLS disabled - using plain HTTP",
			"recommendation", "consider using TLS or reverse proxy for production")
	}
	logging.ServerStartup("rest_api", protocol, ServerConfig.Port,
		"websocket_protocol", wsProtocol,
		"translator_dir", server.AbsPath(ServerConfig.TranslatorDir),
		"reload_interval", cfg.ReloadInterval.String(),
		"translators", reg.Len())

	// Build middleware chain with security headers
	cspConfig := server.APICSPConfig()
	var handler http.Handler = server.SecurityHeadersWithCSP(cspConfig, mux)

	if cfg.Auth.Enabled {
		handler = AuthMiddleware(cfg.Auth, handler)
		logging.SecurityEvent("authentication_configured", "api",
			"enabled", true,
			"note", "API key required")
	} else {
		logging.SecurityEvent("authentication_configured", "api",
			"enabled", false,
			"note", "all requests allowed")
	}

	if cfg.RateLimitRequests > 0 {
		rateLimitConfig := RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimitRequests,
			BurstSize:         cfg.RateLimitBurst,
		}
		if rateLimitConfig.BurstSize == 0 {
			rateLimitConfig.BurstSize = 10
		}
		rateLimiter := NewRateLimiter(rateLimitConfig)
		handler = rateLimiter.Middleware(handler)
		logging.Info("rate limiting enabled",
			"requests_per_minute", rateLimitConfig.RequestsPerMinute,
			"burst_size", rateLimitConfig.BurstSize)
	}

	// CORS is outermost so preflights short-circuit before auth
	corsConfig := server.CORSConfig{
		AllowedOrigins: cfg.AllowedOrigins,
	}
	handler = server.CORSMiddleware(corsConfig, handler)
	if len(cfg.AllowedOrigins) > 0 {
		logging.SecurityEvent("cors_configured", "api",
			"mode", "restricted",
			"allowed_origins_count", len(cfg.AllowedOrigins))
	} else {
		logging.SecurityEvent("cors_configured", "api",
			"mode", "permissive",
			"note", "allowing all origins (*) - consider restricting for production")
	}

	handler = logging.CombinedMiddleware(handler)

	addr := fmt.Sprintf(":%d", ServerConfig.Port)
	if cfg.TLS.Enabled {
		return http.ListenAndServeTLS(addr, cfg.TLS.CertFile, cfg.TLS.KeyFile, handler)
	}
	return http.ListenAndServe(addr, handler)
}

// setupRoutes configures all HTTP routes.
func setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", handleRoot)
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/api/v1/translators", handleTranslators)
	mux.HandleFunc("/api/v1/translators/", handleTranslatorByID)
	mux.HandleFunc("/api/v1/run", handleRun)
	mux.HandleFunc("/api/v1/jobs", handleJobs)
	mux.HandleFunc("/api/v1/jobs/", handleJobByID)
	mux.HandleFunc("/api/v1/runs", handleRuns)
	mux.HandleFunc("/api/v1/runs/", handleRunByID)
	mux.HandleFunc("/ws", handleWebSocket)

	return mux
}

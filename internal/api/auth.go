package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/zotero/translate/internal/logging"
)

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Enabled bool   // whether authentication is required
	APIKey  string // the API key to validate against
}

// isPublicEndpoint returns true for endpoints that skip authentication.
func isPublicEndpoint(path string) bool {
	publicPaths := []string{
		"/",
		"/health",
	}
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// AuthMiddleware validates the X-API-Key header on protected endpoints.
func AuthMiddleware(cfg AuthConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicEndpoint(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			logging.SecurityEvent("auth_missing_api_key", "api",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr)
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "API key required. Provide via X-API-Key header")
			return
		}

		// Constant-time comparison so timing does not leak key prefixes.
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(cfg.APIKey)) != 1 {
			logging.SecurityEvent("auth_invalid_api_key", "api",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr)
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ValidateAuthConfig checks that the auth configuration is usable.
func ValidateAuthConfig(cfg AuthConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.APIKey == "" {
		return fmt.Errorf("authentication enabled but no API key configured")
	}

	if len(cfg.APIKey) < 16 {
		return fmt.Errorf("API key too short (minimum 16 characters), got %d", len(cfg.APIKey))
	}

	return nil
}

// GenerateAPIKeyExample returns a shell snippet for generating a
// strong API key.
func GenerateAPIKeyExample() string {
	return "Example: export TRANSLATE_API_KEY=$(openssl rand -base64 32)"
}

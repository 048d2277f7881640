package httpapi

import "llamad/internal/auth"

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
// Default remains 1 MiB.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

// authStore enables key authentication when non-nil.
var authStore *auth.Store

// SetAuthStore enables key authentication on API routes. nil disables it.
func SetAuthStore(s *auth.Store) { authStore = s }

// staticDir, when set, is served for paths no route matches.
var staticDir string

// SetStaticDir serves files from dir for unmatched paths. Empty disables it.
func SetStaticDir(dir string) { staticDir = dir }

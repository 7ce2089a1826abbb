package core

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSMiddleware adds Cross-Origin Resource Sharing headers for allowed
// origins and answers preflight OPTIONS requests with 204.
//
// Origins may be exact ("https://ops.example.com"), a subdomain wildcard
// ("https://*.example.com"), a port wildcard ("http://localhost:*") or "*".
// A disabled config passes requests through untouched.
func CORSMiddleware(config *CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config == nil || !config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			ApplyCORS(w, r, config)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ApplyCORS writes the CORS response headers for r when its origin is allowed.
func ApplyCORS(w http.ResponseWriter, r *http.Request, config *CORSConfig) {
	if config == nil || !config.Enabled {
		return
	}

	origin := r.Header.Get("Origin")
	if !isOriginAllowed(origin, config.AllowedOrigins) {
		return
	}

	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Add("Vary", "Origin")
	if config.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if len(config.AllowedMethods) > 0 {
		h.Set("Access-Control-Allow-Methods", strings.Join(config.AllowedMethods, ", "))
	}
	if len(config.AllowedHeaders) > 0 {
		h.Set("Access-Control-Allow-Headers", strings.Join(config.AllowedHeaders, ", "))
	}
	if len(config.ExposedHeaders) > 0 {
		h.Set("Access-Control-Expose-Headers", strings.Join(config.ExposedHeaders, ", "))
	}
	if config.MaxAge > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
	}
}

// isOriginAllowed reports whether origin matches one of the allowed
// patterns. An empty origin (same-origin request) never matches.
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	if origin == "" {
		return false
	}

	for _, allowed := range allowedOrigins {
		switch {
		case allowed == "*", allowed == origin:
			return true
		case strings.Contains(allowed, "*."):
			if matchSubdomain(origin, allowed) {
				return true
			}
		case strings.HasSuffix(allowed, ":*"):
			if strings.HasPrefix(origin, strings.TrimSuffix(allowed, "*")) {
				return true
			}
		}
	}
	return false
}

// matchSubdomain matches "https://api.example.com" against
// "https://*.example.com". The bare domain does not match.
func matchSubdomain(origin, pattern string) bool {
	idx := strings.Index(pattern, "*.")
	prefix, suffix := pattern[:idx], pattern[idx+1:]

	if !strings.HasPrefix(origin, prefix) || !strings.HasSuffix(origin, suffix) {
		return false
	}
	sub := strings.TrimSuffix(strings.TrimPrefix(origin, prefix), suffix)
	return sub != "" && !strings.Contains(sub, "/")
}

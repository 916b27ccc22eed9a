package middleware

import "net/http"

// SecurityHeadersConfig lists the response headers set on every reply.
// Empty values are skipped.
type SecurityHeadersConfig struct {
	ContentSecurityPolicy     string
	FrameOptions              string
	ReferrerPolicy            string
	CrossOriginResourcePolicy string
	CacheControl              string
	ContentTypeOptions        bool
	CustomHeaders             map[string]string
}

// DefaultSecurityHeaders returns headers suited to a JSON-only API. The
// status server never serves documents, so the policy denies everything.
func DefaultSecurityHeaders() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		ContentSecurityPolicy:     "default-src 'none'; frame-ancestors 'none'",
		FrameOptions:              "DENY",
		ReferrerPolicy:            "no-referrer",
		CrossOriginResourcePolicy: "same-origin",
		CacheControl:              "no-store",
		ContentTypeOptions:        true,
	}
}

// SecurityHeaders returns a middleware that sets the configured headers.
func SecurityHeaders(cfg SecurityHeadersConfig) func(http.Handler) http.Handler {
	headers := make(map[string]string, 6+len(cfg.CustomHeaders))
	set := func(key, value string) {
		if value != "" {
			headers[key] = value
		}
	}
	set("Content-Security-Policy", cfg.ContentSecurityPolicy)
	set("X-Frame-Options", cfg.FrameOptions)
	set("Referrer-Policy", cfg.ReferrerPolicy)
	set("Cross-Origin-Resource-Policy", cfg.CrossOriginResourcePolicy)
	set("Cache-Control", cfg.CacheControl)
	if cfg.ContentTypeOptions {
		headers["X-Content-Type-Options"] = "nosniff"
	}
	for k, v := range cfg.CustomHeaders {
		set(k, v)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for k, v := range headers {
				w.Header().Set(k, v)
			}
			next.ServeHTTP(w, r)
		})
	}
}

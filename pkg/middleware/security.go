package middleware

import "net/http"

const (
	apiCSP = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"
	devCSP = "default-src 'self'; frame-ancestors 'none'; base-uri 'self'; form-action 'self'"
)

// SecurityHeaders sets the response headers expected from a JSON API.
// HSTS is skipped in development where the server runs on plain HTTP.
func SecurityHeaders(development bool) func(http.Handler) http.Handler {
	csp := apiCSP
	if development {
		csp = devCSP
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Content-Security-Policy", csp)
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
			if !development {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

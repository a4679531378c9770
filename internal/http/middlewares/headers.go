package middlewares

import (
	"net/http"
	"strings"
)

// apiHeaders son las cabeceras fijas de una API JSON que nunca se embebe.
var apiHeaders = [][2]string{
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Cross-Origin-Resource-Policy", "same-site"},
	{"Permissions-Policy", "camera=(), geolocation=(), microphone=()"},
	{"Referrer-Policy", "no-referrer"},
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
}

const hsts = "max-age=15552000; includeSubDomains"

func setHeaders(next http.Handler, fn func(h http.Header, r *http.Request)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fn(w.Header(), r)
		next.ServeHTTP(w, r)
	})
}

// WithSecurityHeaders aplica apiHeaders y HSTS cuando el request llegó por
// TLS, directo o detrás del proxy.
func WithSecurityHeaders() Middleware {
	return func(next http.Handler) http.Handler {
		return setHeaders(next, func(h http.Header, r *http.Request) {
			for _, kv := range apiHeaders {
				h.Set(kv[0], kv[1])
			}
			if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
				h.Set("Strict-Transport-Security", hsts)
			}
		})
	}
}

// WithNoStore marca la respuesta como no cacheable; va en las rutas que
// devuelven tokens.
func WithNoStore() Middleware {
	return func(next http.Handler) http.Handler {
		return setHeaders(next, func(h http.Header, _ *http.Request) {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
		})
	}
}

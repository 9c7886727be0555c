package main

import (
	"net/http"
	"os"
	"strings"
)

// The API takes multipart uploads and JSON reads with no auth scheme, so
// Content-Type is the only request header a preflight needs to clear.
const (
	corsAllowedMethods = "GET, POST, DELETE, OPTIONS"
	corsAllowedHeaders = "Content-Type"
)

// withCORS wraps an http.Handler with the headers a browser-based viewer
// needs to call this API from another origin. The allowed origin defaults to
// the local viewer and can be overridden with CORS_ALLOWED_ORIGIN (either
// "*" or a single origin).
func withCORS(next http.Handler) http.Handler {
	origin := allowedOrigin()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Vary", "Origin")
		h.Set("Access-Control-Allow-Methods", corsAllowedMethods)
		h.Set("Access-Control-Allow-Headers", corsAllowedHeaders)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func allowedOrigin() string {
	origin := os.Getenv("CORS_ALLOWED_ORIGIN")
	if origin == "" {
		return "http://localhost:3000"
	}
	// "localhost:3000" without a scheme would never match the browser's
	// Origin header, so normalize it.
	if origin != "*" && !strings.Contains(origin, "://") {
		origin = "http://" + origin
	}
	return origin
}

package middleware

import (
	"net/http"
)

const (
	// DefaultMaxRequestSize is the default maximum request body size. Image
	// imports arrive base64-encoded inside JSON, so it is larger than a
	// text-only API would need.
	DefaultMaxRequestSize int64 = 8 << 20
)

// MaxRequestSize limits the size of request bodies
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeError(w, r, http.StatusRequestEntityTooLarge, "Request body exceeds the size limit")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000", // local storefront
	"http://localhost:5173", // local admin
}

// CORS returns middleware that applies the API's allowed origin policy. Extra origins come
// from configuration.
func CORS(extraOrigins ...string) func(http.Handler) http.Handler {
	origins := append(append([]string{}, defaultCORSOrigins...), extraOrigins...)
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-Id", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After", "Idempotent-Replayed"},
		AllowCredentials: false,
		MaxAge:           300,
	}).Handler
}

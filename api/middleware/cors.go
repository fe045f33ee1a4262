package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS lets browser clients on origins call the API with a bearer token.
// An empty list falls back to the local web app.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", idempotencyHeader, "X-Request-Id"},
		// Retry-After accompanies view rate limits; the replay header marks
		// a cached idempotent response.
		ExposedHeaders:   []string{"X-Request-Id", "X-Starfeed-Env", "Retry-After", replayedHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

package middleware

import (
	"github.com/go-chi/cors"
)

// CORSHandler builds CORS options for the status API. The surface is
// read-only and local, so wildcard origins without credentials is the
// default.
func CORSHandler() cors.Options {
	return cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}
}

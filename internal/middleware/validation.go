package middleware

import (
	"net/http"
	"strings"
)

type ValidationConfig struct {
	ExcludedPaths []string
	MaxPathLength int
}

// WithValidation rejects request paths that can never name a servable file.
func WithValidation(config ValidationConfig) func(http.Handler) http.Handler {
	if config.MaxPathLength <= 0 {
		config.MaxPathLength = 2048
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.ExcludedPaths {
				if r.URL.Path == path {
					next.ServeHTTP(w, r)
					return
				}
			}

			p := r.URL.Path
			switch {
			case len(p) > config.MaxPathLength:
				http.Error(w, "path too long", http.StatusRequestURITooLong)
				return
			case strings.ContainsAny(p, "\x00\\"):
				http.Error(w, "invalid path", http.StatusBadRequest)
				return
			case hasDotDot(p):
				http.Error(w, "invalid path: parent references are not allowed", http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasDotDot(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

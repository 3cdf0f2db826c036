package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Middleware rejects requests without a valid bearer token, except for the
// paths listed in Public.
type Middleware struct {
	Config Config
	Public map[string]bool
}

// NewMiddleware leaves /healthz and /metrics open for probes and scrapers.
func NewMiddleware(cfg Config) Middleware {
	return Middleware{Config: cfg, Public: map[string]bool{"/healthz": true, "/metrics": true}}
}

func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Public[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		token, err := bearerToken(r.Header.Get("Authorization"))
		if err == nil {
			var claims *Claims
			if claims, err = Parse(token, m.Config); err == nil {
				next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"type": "unauthorized", "detail": err.Error()})
	})
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}

// Package auth checks the bearer tokens presented to the tracker API.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config is the shared HS256 secret and the issuer every token must carry.
type Config struct {
	Secret string
	Issuer string
}

// Claims is what a handler learns about the caller.
type Claims struct {
	Subject   string
	Scopes    map[string]struct{}
	ExpiresAt time.Time
}

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// scopeList decodes either a JSON array or one space separated string.
type scopeList []string

func (l *scopeList) UnmarshalJSON(raw []byte) error {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		*l = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(raw, &joined); err != nil {
		return fmt.Errorf("scopes: %w", err)
	}
	*l = strings.Fields(joined)
	return nil
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Scopes scopeList `json:"scopes,omitempty"`
}

// Parse verifies signature, issuer and expiry. A token without a subject is
// rejected.
func Parse(token string, cfg Config) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	var tc tokenClaims
	_, err := jwt.ParseWithClaims(token, &tc, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if tc.Subject == "" {
		return nil, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}

	return &Claims{
		Subject:   tc.Subject,
		Scopes:    parseScopes(tc.Scopes...),
		ExpiresAt: tc.ExpiresAt.Time,
	}, nil
}

// Sign mints an HS256 token. cmd/fittrack uses it for local tokens.
func Sign(cfg Config, subject string, ttl time.Duration, scopes ...string) (string, error) {
	now := time.Now()
	tc := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Scopes: scopes,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

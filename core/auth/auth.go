package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoSecret is returned when no signing secret is configured.
	ErrNoSecret = errors.New("API secret not configured")

	secretMu sync.RWMutex
	secret   []byte
)

// Claims is the payload of a widget access token.
type Claims struct {
	Client string `json:"client"`
	jwt.RegisteredClaims
}

// SetSecret configures the HS256 signing key. An empty secret disables auth.
func SetSecret(s string) {
	secretMu.Lock()
	defer secretMu.Unlock()
	secret = []byte(s)
}

// Enabled reports whether a signing key is configured.
func Enabled() bool {
	secretMu.RLock()
	defer secretMu.RUnlock()
	return len(secret) > 0
}

func key() ([]byte, error) {
	secretMu.RLock()
	defer secretMu.RUnlock()
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	return secret, nil
}

// GenerateToken issues a token for client. ttl <= 0 means no expiry.
func GenerateToken(client string, ttl time.Duration) (string, error) {
	k, err := key()
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := Claims{
		Client: client,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  client,
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   "mediabridge",
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(k)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates tokenString and returns its claims.
func ParseToken(tokenString string) (*Claims, error) {
	k, err := key()
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return k, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer("mediabridge"))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}

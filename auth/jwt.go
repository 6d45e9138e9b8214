// Package auth resolves the caller identity for the polling API: an
// optional JWT bearer identity plus a session cookie that fingerprints
// anonymous voters.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "community-polling-backend"

// TokenService signs and validates access tokens with an HMAC secret.
type TokenService struct {
	secret []byte
}

func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// NewTokenServiceFromEnv reads JWT_SECRET. Returns nil when unset, which
// disables authenticated identity (every caller is anonymous).
func NewTokenServiceFromEnv() *TokenService {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil
	}
	svc, err := NewTokenService(secret)
	if err != nil {
		return nil
	}
	return svc
}

type claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Generate issues a token for the given user id and role.
func (s *TokenService) Generate(userID uint, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies a token string and returns the user id and role.
func (s *TokenService) Validate(tokenStr string) (uint, string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, "", errors.New("auth: token expired")
		}
		return 0, "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return 0, "", errors.New("auth: invalid token claims")
	}

	userID, err := strconv.ParseUint(c.Subject, 10, 32)
	if err != nil || userID == 0 {
		return 0, "", errors.New("auth: token has no usable subject")
	}

	return uint(userID), c.Role, nil
}

// Package auth implements password hashing, principal resolution and the
// stateless HS256 token service.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ecomarket/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenValidity is used when the service is built with a zero lifetime.
const DefaultTokenValidity = 24 * time.Hour

// TokenService issues and checks signed tokens. It only carries the subject
// and the issued-at/expiry times; authorities are re-read per request.
type TokenService struct {
	secretKey []byte
	validity  time.Duration
	now       func() time.Time
}

// NewTokenService builds a service around secretKey. The key is copied, so
// later changes to the caller's slice have no effect.
func NewTokenService(secretKey []byte, validity time.Duration) *TokenService {
	if validity <= 0 {
		validity = DefaultTokenValidity
	}
	key := make([]byte, len(secretKey))
	copy(key, secretKey)
	return &TokenService{secretKey: key, validity: validity, now: time.Now}
}

// WithClock returns a copy of s that reads the current time from now.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	c := *s
	c.now = now
	return &c
}

// Issue signs a token for p.
func (s *TokenService) Issue(p *Principal) (string, error) {
	if p == nil || p.Identifier == "" {
		return "", errors.New("principal without identifier")
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   p.Identifier,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.validity)),
	})

	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return tokenString, nil
}

// ExtractSubject returns the subject of a correctly signed, unexpired token.
// Every failure is reported as common.ErrInvalidToken.
func (s *TokenService) ExtractSubject(tokenString string) (string, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", common.ErrInvalidToken
	}
	return claims.Subject, nil
}

// Validate reports whether tokenString is a correctly signed token for p
// whose expiry lies strictly after the current time. It never panics or
// returns an error; any problem yields false.
func (s *TokenService) Validate(tokenString string, p *Principal) bool {
	if p == nil {
		return false
	}

	claims, err := s.parse(tokenString)
	if err != nil {
		return false
	}
	if claims.Subject != p.Identifier {
		return false
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(s.now()) {
		return false
	}
	return true
}

func (s *TokenService) parse(tokenString string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// Package token implements the stateless access-token signer. Access tokens
// are self-describing JWTs: they carry the subject user id and an absolute
// expiry, signed with an HMAC secret, so verification needs no store lookup.
// The tradeoff is that they cannot be revoked before natural expiry, which
// is compensated by short lifetimes.
package token

import (
	"errors"
	"time"

	"github.com/dkrasnov/gatekeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Signer issues and verifies HS256-signed access tokens.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner constructs a Signer keyed by secret. A nil now falls back to
// time.Now.
func NewSigner(secret []byte, now func() time.Time) *Signer {
	if now == nil {
		now = time.Now
	}
	return &Signer{secret: secret, now: now}
}

// Issue creates a signed token for userID valid for ttl from now.
func (s *Signer) Issue(userID string, ttl time.Duration) (string, error) {
	issued := s.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
	})
	return t.SignedString(s.secret)
}

// Verify parses and validates value and returns the embedded user id.
// Expired tokens yield common.ErrTokenExpired; any other failure (bad
// signature, malformed value, wrong algorithm) yields common.ErrInvalidToken.
func (s *Signer) Verify(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	t, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, common.ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}
	if !t.Valid || claims.Subject == "" {
		return "", common.ErrInvalidToken
	}
	return claims.Subject, nil
}

package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpired is returned for a well-formed token past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrInvalid is returned for any other unusable token.
	ErrInvalid = errors.New("invalid token")
)

// Audiences keep bearer tokens and session cookies apart.
const (
	AudienceAPI     = "enms-api"
	AudienceSession = "enms-session"
)

// Signer issues and verifies HS256 tokens naming a user id.
type Signer struct {
	key      []byte
	ttl      time.Duration
	audience string
	now      func() time.Time
}

// NewSigner creates a signer for audience whose tokens live for ttl.
func NewSigner(key []byte, ttl time.Duration, audience string) (*Signer, error) {
	if len(key) == 0 {
		return nil, errors.New("token signing key is empty")
	}
	return &Signer{key: key, ttl: ttl, audience: audience, now: time.Now}, nil
}

// TTL returns the token lifetime.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Issue returns a signed token for userID.
func (s *Signer) Issue(userID uint) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		Audience:  jwt.ClaimStrings{s.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies raw and returns the user id it names.
func (s *Signer) Parse(raw string) (uint, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return 0, ErrExpired
	case err != nil:
		return 0, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 0)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: bad subject %q", ErrInvalid, claims.Subject)
	}
	return uint(id), nil
}

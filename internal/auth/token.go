// Package auth creates and verifies the bearer tokens used to authenticate
// against the Notify API.
//
// A token is an HS256 JWT whose issuer is the service id and whose issued-at
// claim is the signing time. The API rejects tokens whose iat is too far from
// its own clock, so a token must be created for each request.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingIssuer   = errors.New("token has no issuer")
	ErrMissingIssuedAt = errors.New("token has no issued-at")
)

// Claims are the claims carried by an API token.
type Claims struct {
	Issuer   string
	IssuedAt time.Time
}

// CreateToken signs a token for issuer with secret at the given time.
func CreateToken(secret, issuer string, now time.Time) (string, error) {
	if issuer == "" {
		return "", ErrMissingIssuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": issuer,
		"iat": now.Unix(),
	})

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// DecodeToken verifies the token signature against secret and returns its
// claims. Only HS256 is accepted. Expiry is not checked here: the iat window
// is the verifier's policy.
func DecodeToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	iss, err := token.Claims.GetIssuer()
	if err != nil || iss == "" {
		return nil, ErrMissingIssuer
	}
	iat, err := token.Claims.GetIssuedAt()
	if err != nil || iat == nil {
		return nil, ErrMissingIssuedAt
	}

	return &Claims{Issuer: iss, IssuedAt: iat.Time}, nil
}

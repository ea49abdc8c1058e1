package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims holds the claims the CMS backend puts in its access tokens.
// Tokens are read without signature checks; the backend verifies them.
type AccessClaims struct {
	jwt.RegisteredClaims
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
}

// DisplayName returns the best user label carried by the token.
func (c *AccessClaims) DisplayName() string {
	if c.PreferredUsername != "" {
		return c.PreferredUsername
	}
	return c.Name
}

var errNoClaim = errors.New("claim not present")

// ReadAccessClaims decodes the payload of a JWT access token. Opaque tokens
// and malformed JWTs return an error; expired tokens do not.
func ReadAccessClaims(accessToken string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return nil, fmt.Errorf("read access token: %w", err)
	}
	return claims, nil
}

// TokenExpiry returns the exp claim of a JWT access token.
func TokenExpiry(accessToken string) (time.Time, error) {
	claims, err := ReadAccessClaims(accessToken)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("exp: %w", errNoClaim)
	}
	return claims.ExpiresAt.Time, nil
}

// TokenUsername returns the user name carried by an access token, used
// until /auth/me has answered.
func TokenUsername(accessToken string) (string, error) {
	claims, err := ReadAccessClaims(accessToken)
	if err != nil {
		return "", err
	}
	if name := claims.DisplayName(); name != "" {
		return name, nil
	}
	return "", fmt.Errorf("name: %w", errNoClaim)
}

package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	kiterrors "github.com/sessionkit/sessionkit/internal/errors"
)

// Claims holds the subset of access-token claims the client reads. The
// token is decoded, never verified: signature trust is the backend's job,
// and the client only needs the expiry instant and the role for display.
type Claims struct {
	Exp  int64  // Expiration, seconds since epoch
	Iat  int64  // Issued at time
	Sub  string // User's unique ID
	Role string // Role assigned to the user
}

// ExpiresAt returns the expiry instant carried by the claims.
func (c *Claims) ExpiresAt() time.Time {
	return time.Unix(c.Exp, 0)
}

// Decode extracts claims from a raw access token without verifying its
// signature. A missing exp claim counts as a decode failure: a token the
// clock cannot time is useless to the coordinator.
func Decode(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, kiterrors.ErrNoAccessToken
	}

	unverifiedToken, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(kiterrors.ErrTokenDecode, err.Error())
	}

	mapClaims, ok := unverifiedToken.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.Wrap(kiterrors.ErrTokenDecode, "error extracting claims")
	}

	exp, ok := mapClaims["exp"].(float64)
	if !ok {
		return nil, errors.Wrap(kiterrors.ErrTokenDecode, "missing exp claim")
	}

	iat, _ := mapClaims["iat"].(float64)
	sub, _ := mapClaims["sub"].(string)
	role, _ := mapClaims["role"].(string)

	return &Claims{
		Exp:  int64(exp),
		Iat:  int64(iat),
		Sub:  sub,
		Role: role,
	}, nil
}

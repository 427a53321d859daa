package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid sign-in token")

// FromToken builds a User from a JWT. With a secret the HMAC signature is
// verified; without one the claims are only decoded, leaving verification
// to the analysis backend that receives the token.
func FromToken(raw, secret string) (User, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
	if raw == "" {
		return User{}, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	claims := jwt.MapClaims{}
	if secret != "" {
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil {
			return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
			return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && exp.Before(time.Now()) {
			return User{}, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
	}

	u := User{
		ID:    claimString(claims, "sub", "user_id", "uid"),
		Email: claimString(claims, "email"),
		Name:  claimString(claims, "name"),
		Token: raw,
	}
	if u.ID == "" && u.Email == "" {
		return User{}, fmt.Errorf("%w: no subject or email claim", ErrInvalidToken)
	}
	return u, nil
}

func claimString(c jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		if v, ok := c[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Package session is the identity capability: it maps a bearer token to an
// auth identity, and an auth identity to the internal users row. It is
// passed explicitly into stores and the workflow instead of being looked up
// ad hoc at each call site.
package session

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"conciera/internal/domain"
	"conciera/internal/repo"
)

var ErrNotAuthenticated = errors.New("not authenticated")

// Principal identifies the caller at the transport boundary. AuthID is the
// identity-provider id, not the internal users id.
type Principal struct {
	AuthID string
	Source string
}

type claims struct {
	jwt.RegisteredClaims
}

// ParseToken validates an HS256 bearer token and returns its principal.
// The subject claim carries the auth identity id.
func ParseToken(token, secret string) (Principal, error) {
	if strings.TrimSpace(secret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	c := &claims{}
	parsed, err := parser.ParseWithClaims(token, c, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if c.Subject == "" {
		return Principal{}, errors.New("subject claim required")
	}
	return Principal{AuthID: c.Subject, Source: "jwt"}, nil
}

// Resolver turns principals into users rows.
type Resolver struct {
	Repo repo.Repo
}

// CurrentUser resolves the internal user for a principal. A zero principal
// means no session; a principal with no matching users row is treated the
// same way, since the app cannot act for an unknown identity.
func (r Resolver) CurrentUser(ctx context.Context, p Principal) (domain.User, error) {
	if p.AuthID == "" {
		return domain.User{}, ErrNotAuthenticated
	}
	u, err := r.Repo.GetUserByAuthID(ctx, p.AuthID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, ErrNotAuthenticated
		}
		return domain.User{}, err
	}
	return u, nil
}

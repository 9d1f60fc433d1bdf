// Package resolver turns request credentials into caller claims. Both the
// legacy cookie token and the provider session satisfy SessionResolver, so
// guards accept either.
package resolver

//go:generate mockgen -source=resolver.go -destination=mocks/mocks.go -package=mocks SessionResolver

import (
	"errors"
	"net/http"

	"gatehouse/internal/auth/models"
)

var (
	ErrNoToken   = errors.New("not logged in")
	ErrExpired   = errors.New("token expired")
	ErrMalformed = errors.New("invalid token")
)

type SessionResolver interface {
	Resolve(r *http.Request) (*models.Claims, error)
}

// IsAuthError reports whether err is one of the caller-facing resolver
// outcomes rather than an infrastructure failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNoToken) || errors.Is(err, ErrExpired) || errors.Is(err, ErrMalformed)
}

// Chain tries each resolver in order. The first answer other than
// ErrNoToken wins.
type Chain []SessionResolver

func NewChain(resolvers ...SessionResolver) Chain {
	return Chain(resolvers)
}

func (c Chain) Resolve(r *http.Request) (*models.Claims, error) {
	for _, res := range c {
		claims, err := res.Resolve(r)
		if errors.Is(err, ErrNoToken) {
			continue
		}
		return claims, err
	}
	return nil, ErrNoToken
}

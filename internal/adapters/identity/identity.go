package identity

import (
	"context"
	"errors"

	"github.com/mhawash/polar/internal/domain"
)

// ErrNoPrimaryEmail is reported when the provider has no usable primary
// email for the authenticated user. Clients also wrap transport
// failures of the email fetch in it, so callers only ever see one kind
// of "email unavailable".
var ErrNoPrimaryEmail = errors.New("identity provider reported no usable primary email")

// Client reads the authenticating user's profile with freshly issued
// credentials. Implementations make no linking decisions.
type Client interface {
	FetchIdentity(ctx context.Context) (*domain.RemoteIdentity, error)
	// FetchPrimaryEmail returns the primary email and whether the
	// provider asserts ownership of it.
	FetchPrimaryEmail(ctx context.Context) (email string, verified bool, err error)
}

// Provider drives the authorization-code flow for one platform.
type Provider interface {
	Platform() domain.Platform
	AuthCodeURL(state string) string
	// Exchange swaps the authorization code for credentials and a client
	// primed to read the authenticated user's profile.
	Exchange(ctx context.Context, code string) (domain.OAuthCredentials, Client, error)
}

type Registry map[domain.Platform]Provider

func NewRegistry(providers ...Provider) Registry {
	r := Registry{}
	for _, p := range providers {
		r[p.Platform()] = p
	}
	return r
}

func (r Registry) Get(platform domain.Platform) (Provider, bool) {
	p, ok := r[platform]
	return p, ok
}

package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/mhawash/polar/internal/adapters/identity"
	"github.com/mhawash/polar/internal/domain"
)

const issuerURL = "https://accounts.google.com"

// Provider authenticates users through Google OIDC. The full identity
// is carried in the verified ID token, so the returned client answers
// from claims without further network calls.
type Provider struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

func New(ctx context.Context, clientID, clientSecret, redirectURL string) (*Provider, error) {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("google oauth config missing required fields")
	}
	oidcProvider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("init google oidc provider: %w", err)
	}
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     oidcProvider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: oidcProvider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (p *Provider) Platform() domain.Platform { return domain.PlatformGoogle }

func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (p *Provider) Exchange(ctx context.Context, code string) (domain.OAuthCredentials, identity.Client, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return domain.OAuthCredentials{}, nil, fmt.Errorf("google token exchange failed: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return domain.OAuthCredentials{}, nil, errors.New("google did not return id_token")
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return domain.OAuthCredentials{}, nil, fmt.Errorf("google id_token verification failed: %w", err)
	}

	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return domain.OAuthCredentials{}, nil, fmt.Errorf("google id_token claims parse failed: %w", err)
	}
	if claims.Subject == "" {
		return domain.OAuthCredentials{}, nil, errors.New("google id_token missing subject")
	}

	creds := domain.OAuthCredentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		creds.ExpiresAt = &expiry
	}

	client := &claimsClient{
		identity: domain.RemoteIdentity{
			Platform:  domain.PlatformGoogle,
			RemoteID:  claims.Subject,
			Username:  claims.Email,
			Name:      claims.Name,
			AvatarURL: claims.Picture,
		},
		email:    claims.Email,
		verified: claims.EmailVerified,
	}
	return creds, client, nil
}

// claimsClient serves the profile captured at exchange time.
type claimsClient struct {
	identity domain.RemoteIdentity
	email    string
	verified bool
}

func (c *claimsClient) FetchIdentity(_ context.Context) (*domain.RemoteIdentity, error) {
	id := c.identity
	return &id, nil
}

func (c *claimsClient) FetchPrimaryEmail(_ context.Context) (string, bool, error) {
	if c.email == "" {
		return "", false, identity.ErrNoPrimaryEmail
	}
	return c.email, c.verified, nil
}

package github

import (
	"context"
	"time"

	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	"github.com/mhawash/polar/internal/adapters/identity"
	"github.com/mhawash/polar/internal/domain"
	pkglog "github.com/mhawash/polar/pkg/log"
)

type Provider struct {
	oauth   *oauth2.Config
	apiBase string
	logger  pkglog.Logger
}

func NewProvider(clientID, clientSecret, redirectURL, apiBaseURL string, logger pkglog.Logger) *Provider {
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     githuboauth.Endpoint,
			Scopes:       []string{"user:email"},
		},
		apiBase: apiBaseURL,
		logger:  logger,
	}
}

func (p *Provider) Platform() domain.Platform { return domain.PlatformGitHub }

func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

func (p *Provider) Exchange(ctx context.Context, code string) (domain.OAuthCredentials, identity.Client, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return domain.OAuthCredentials{}, nil, err
	}
	creds := domain.OAuthCredentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		creds.ExpiresAt = &expiry
	}
	// GitHub App tokens carry the refresh expiry only in the raw payload.
	if v, ok := token.Extra("refresh_token_expires_in").(float64); ok && v > 0 {
		expiry := time.Now().Add(time.Duration(v) * time.Second)
		creds.RefreshTokenExpiresAt = &expiry
	}
	return creds, NewClient(p.apiBase, creds.AccessToken, p.logger), nil
}

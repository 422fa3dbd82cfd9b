package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mhawash/polar/internal/adapters/identity"
	"github.com/mhawash/polar/internal/domain"
	pkglog "github.com/mhawash/polar/pkg/log"
)

// Client reads the authenticated user's profile from the GitHub REST
// API with a user access token.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  pkglog.Logger
}

func NewClient(baseURL, accessToken string, logger pkglog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   accessToken,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

func (c *Client) FetchIdentity(ctx context.Context) (*domain.RemoteIdentity, error) {
	var payload struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := c.get(ctx, "/user", &payload); err != nil {
		return nil, err
	}
	return &domain.RemoteIdentity{
		Platform:  domain.PlatformGitHub,
		RemoteID:  strconv.FormatInt(payload.ID, 10),
		Username:  payload.Login,
		Name:      payload.Name,
		AvatarURL: payload.AvatarURL,
	}, nil
}

func (c *Client) FetchPrimaryEmail(ctx context.Context) (string, bool, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := c.get(ctx, "/user/emails", &emails); err != nil {
		c.logger.Error().Err(err).Msg("github primary email fetch failed")
		return "", false, fmt.Errorf("%w: %v", identity.ErrNoPrimaryEmail, err)
	}
	for _, e := range emails {
		if e.Primary {
			return e.Email, e.Verified, nil
		}
	}
	return "", false, identity.ErrNoPrimaryEmail
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("Authorization", "Bearer "+c.token)
		res, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
			return backoff.Permanent(fmt.Errorf("github api error: %d", res.StatusCode))
		}
		if res.StatusCode >= 400 {
			return fmt.Errorf("github api error: %d", res.StatusCode)
		}
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 3 * time.Second
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

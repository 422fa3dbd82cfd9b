package support

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Client opens threads in the customer-support tool.
type Client interface {
	// CreateAccountReviewThread opens a thread on the account admin's
	// customer record so the ops team can run the payout review.
	CreateAccountReviewThread(ctx context.Context, customerEmail, accountID, accountType string) error
}

type httpClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) Client {
	return &httpClient{baseURL: baseURL, apiKey: apiKey, client: &http.Client{Timeout: timeout}}
}

func (c *httpClient) CreateAccountReviewThread(ctx context.Context, customerEmail, accountID, accountType string) error {
	// The support tool is optional outside production.
	if c.baseURL == "" {
		return nil
	}
	payload := map[string]interface{}{
		"title":          "Payout account review",
		"customer_email": customerEmail,
		"components": []map[string]string{
			{"label": "Account ID", "value": accountID},
			{"label": "Account type", "value": accountType},
		},
	}
	return c.post(ctx, "/api/v1/threads", payload)
}

func (c *httpClient) post(ctx context.Context, path string, payload interface{}) error {
	op := func() error {
		body, err := json.Marshal(payload)
		if err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		res, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.StatusCode >= 400 {
			return fmt.Errorf("support api error: %d", res.StatusCode)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 3 * time.Second
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// brandColor is the embed accent used by all internal alerts.
const brandColor = 0x3862F8

type Message struct {
	Content string  `json:"content"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

type Embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

// Sender posts internal alerts to the team Discord channel.
type Sender interface {
	SendAlert(ctx context.Context, title, description string) error
}

type webhookSender struct {
	url    string
	client *http.Client
}

func NewWebhookSender(url string, timeout time.Duration) Sender {
	return &webhookSender{url: url, client: &http.Client{Timeout: timeout}}
}

func (s *webhookSender) SendAlert(ctx context.Context, title, description string) error {
	// Webhook URL is optional outside production.
	if s.url == "" {
		return nil
	}
	msg := Message{
		Content: title,
		Embeds: []Embed{{
			Title:       title,
			Description: description,
			Color:       brandColor,
		}},
	}

	op := func() error {
		body, err := json.Marshal(msg)
		if err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		res, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.StatusCode >= 400 {
			return fmt.Errorf("discord webhook error: %d", res.StatusCode)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 3 * time.Second
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

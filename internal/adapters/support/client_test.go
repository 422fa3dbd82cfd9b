package support

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCreateAccountReviewThread(t *testing.T) {
	var received map[string]interface{}
	var authz string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/threads" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		authz = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(server.Close)

	client := NewHTTPClient(server.URL, "sk-test", time.Second)
	err := client.CreateAccountReviewThread(context.Background(), "admin@example.com", "acct-1", "Stripe")
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}
	if authz != "Bearer sk-test" {
		t.Fatalf("missing api key header: %q", authz)
	}
	if received["customer_email"] != "admin@example.com" {
		t.Fatalf("unexpected payload: %+v", received)
	}
}

func TestCreateAccountReviewThreadWithoutBaseURLIsNoop(t *testing.T) {
	client := NewHTTPClient("", "sk-test", time.Second)
	err := client.CreateAccountReviewThread(context.Background(), "admin@example.com", "acct-1", "Stripe")
	if err != nil {
		t.Fatalf("unconfigured support tool should be a no-op, got %v", err)
	}
}

func TestCreateAccountReviewThreadServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	t.Cleanup(server.Close)

	client := NewHTTPClient(server.URL, "sk-test", time.Second)
	err := client.CreateAccountReviewThread(context.Background(), "admin@example.com", "acct-1", "Stripe")
	if err == nil {
		t.Fatal("expected an error for a rejected request")
	}
}

package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestSendMatchNotification(t *testing.T) {
	var gotKey string
	var gotPayload map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(server.URL, "secret", zap.NewNop())

	if err := client.SendMatchNotification(context.Background(), "tok1", "tok2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotKey != "secret" {
		t.Fatalf("expected api key header, got %q", gotKey)
	}
	if gotPayload["token1"] != "tok1" || gotPayload["token2"] != "tok2" {
		t.Fatalf("unexpected payload: %v", gotPayload)
	}
}

func TestSendMatchNotificationSkipsWithoutTokens(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	defer server.Close()

	client := New(server.URL, "secret", zap.NewNop())

	if err := client.SendMatchNotification(context.Background(), "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatalf("gateway must not be called without tokens")
	}
}

func TestSendMatchNotificationReportsGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, "secret", zap.NewNop())

	if err := client.SendMatchNotification(context.Background(), "tok1", ""); err == nil {
		t.Fatalf("expected an error for a 500 response")
	}
}

package otp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWebhookSenderDelivers(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode delivery payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(server.Close)

	sender := NewWebhookSender(server.URL, time.Second, zerolog.Nop())
	err := sender.SendCode(context.Background(), "u1@example.com", "Ada Lovelace", "123456", 2*time.Minute)
	if err != nil {
		t.Fatalf("SendCode() error = %v", err)
	}

	if received["destination"] != "u1@example.com" || received["code"] != "123456" {
		t.Fatalf("payload = %v", received)
	}
	if received["expires_in_seconds"] != float64(120) {
		t.Fatalf("expires_in_seconds = %v", received["expires_in_seconds"])
	}
}

func TestWebhookSenderRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	sender := NewWebhookSender(server.URL, time.Second, zerolog.Nop())
	if err := sender.SendCode(context.Background(), "u1@example.com", "", "123456", time.Minute); err == nil {
		t.Fatal("SendCode() must fail on a non-2xx response")
	}
}

func TestLogSenderNeverFails(t *testing.T) {
	sender := NewLogSender(zerolog.Nop())
	if err := sender.SendCode(context.Background(), "u1@example.com", "", "123456", time.Minute); err != nil {
		t.Fatalf("SendCode() error = %v", err)
	}
}

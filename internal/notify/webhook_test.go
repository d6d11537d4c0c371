package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BrainlyTree-Project/Backend/internal/notify"
	"github.com/BrainlyTree-Project/Backend/models"
)

func TestWebhookSendPostsJSON(t *testing.T) {
	var gotAuth string
	var gotBody notify.Message

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reviewer := models.Reviewer{
		ReviewerID:     "r1",
		WebhookURL:     srv.URL,
		WebhookHeaders: map[string]string{"Authorization": "Bearer token"},
	}
	msg := notify.Message{EventID: "ev-1", Kind: "alert", Subject: "critical alert"}

	ch := notify.NewWebhookChannel(2 * time.Second)
	if err := ch.Send(context.Background(), reviewer, msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAuth != "Bearer token" {
		t.Errorf("expected custom header forwarded, got %q", gotAuth)
	}
	if gotBody.EventID != "ev-1" || gotBody.Subject != "critical alert" {
		t.Errorf("unexpected payload: %+v", gotBody)
	}
}

func TestWebhookSendNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ch := notify.NewWebhookChannel(2 * time.Second)
	err := ch.Send(context.Background(), models.Reviewer{ReviewerID: "r1", WebhookURL: srv.URL}, notify.Message{})
	if err == nil {
		t.Fatal("expected an error for a 502 response")
	}
}

func TestWebhookSendMissingURL(t *testing.T) {
	ch := notify.NewWebhookChannel(2 * time.Second)
	if err := ch.Send(context.Background(), models.Reviewer{ReviewerID: "r1"}, notify.Message{}); err == nil {
		t.Fatal("expected an error when the reviewer has no webhook url")
	}
}

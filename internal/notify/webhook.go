package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/BrainlyTree-Project/Backend/models"
)

// WebhookChannel POSTs the message as JSON to the reviewer's endpoint with
// the reviewer's custom headers. The HTTP client carries an explicit
// timeout; a timed-out call is a failed attempt, never a hang.
type WebhookChannel struct {
	httpClient *http.Client
}

func NewWebhookChannel(timeout time.Duration) *WebhookChannel {
	return &WebhookChannel{
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *WebhookChannel) Name() string { return ChannelWebhook }

func (c *WebhookChannel) Send(ctx context.Context, reviewer models.Reviewer, msg Message) error {
	if reviewer.WebhookURL == "" {
		return fmt.Errorf("reviewer %s has no webhook url", reviewer.ReviewerID)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("error marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reviewer.WebhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range reviewer.WebhookHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected response status: %s", resp.Status)
	}

	return nil
}

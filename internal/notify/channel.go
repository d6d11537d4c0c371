package notify

import (
	"context"

	"github.com/BrainlyTree-Project/Backend/models"
)

const (
	ChannelInApp   = "in_app"
	ChannelEmail   = "email"
	ChannelWebhook = "webhook"
)

// Message is the channel-independent payload built from a review event.
type Message struct {
	EventID  string `json:"event_id"`
	Kind     string `json:"kind"`
	Subject  string `json:"subject"`
	BodyText string `json:"body"`
	BodyHTML string `json:"-"`
	DeviceID string `json:"device_id,omitempty"`
	SiteID   string `json:"site_id,omitempty"`
}

// Channel is the capability every delivery path implements: attempt
// delivery to one reviewer, report success or failure. The dispatcher
// composes channels instead of branching on type.
type Channel interface {
	Name() string
	Send(ctx context.Context, reviewer models.Reviewer, msg Message) error
}

// channelEnabled applies the reviewer's preferences; in-app defaults on.
func channelEnabled(reviewer models.Reviewer, channel string) bool {
	switch channel {
	case ChannelInApp:
		return reviewer.Channels.InAppEnabled()
	case ChannelEmail:
		return reviewer.Channels.Email && reviewer.Email != ""
	case ChannelWebhook:
		return reviewer.Channels.Webhook && reviewer.WebhookURL != ""
	default:
		return false
	}
}

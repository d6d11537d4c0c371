package notify

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/BrainlyTree-Project/Backend/models"
)

// EmailChannel sends a transactional email (subject + HTML + plaintext body,
// single recipient) through SES.
type EmailChannel struct {
	Client *sesv2.Client
	Sender string
}

func NewEmailChannel(client *sesv2.Client) (*EmailChannel, error) {
	sender := os.Getenv("SES_SENDER_ADDRESS")
	if sender == "" {
		return nil, fmt.Errorf("SES_SENDER_ADDRESS environment variable is not set")
	}

	return &EmailChannel{
		Client: client,
		Sender: sender,
	}, nil
}

func (c *EmailChannel) Name() string { return ChannelEmail }

func (c *EmailChannel) Send(ctx context.Context, reviewer models.Reviewer, msg Message) error {
	if reviewer.Email == "" {
		return fmt.Errorf("reviewer %s has no email address", reviewer.ReviewerID)
	}

	body := &sestypes.Body{
		Text: &sestypes.Content{Data: aws.String(msg.BodyText)},
	}
	if msg.BodyHTML != "" {
		body.Html = &sestypes.Content{Data: aws.String(msg.BodyHTML)}
	}

	_, err := c.Client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(c.Sender),
		Destination: &sestypes.Destination{
			ToAddresses: []string{reviewer.Email},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(msg.Subject)},
				Body:    body,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

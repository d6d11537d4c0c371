package models

const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// Delivery is one channel attempt for one reviewer, recorded additively on
// the owning event so partial delivery stays visible.
type Delivery struct {
	ReviewerID  string `json:"reviewer_id" dynamodbav:"reviewer_id"`
	Channel     string `json:"channel" dynamodbav:"channel"`
	Status      string `json:"status" dynamodbav:"status"`
	Error       string `json:"error,omitempty" dynamodbav:"error,omitempty"`
	AttemptedAt int64  `json:"attempted_at" dynamodbav:"attempted_at"`
}

// ReviewEvent records something requiring human attention. TriggerID is the
// idempotency key: the same trigger never creates a second event.
type ReviewEvent struct {
	EventID       string     `json:"event_id" dynamodbav:"event_id"`
	TriggerID     string     `json:"trigger_id" dynamodbav:"trigger_id"`
	CompanyID     string     `json:"company_id" dynamodbav:"company_id"`
	SiteID        string     `json:"site_id,omitempty" dynamodbav:"site_id,omitempty"`
	DeviceID      string     `json:"device_id,omitempty" dynamodbav:"device_id,omitempty"`
	Kind          string     `json:"kind" dynamodbav:"kind"` // alert - score_review
	Subject       string     `json:"subject" dynamodbav:"subject"`
	Body          string     `json:"body" dynamodbav:"body"`
	Undeliverable bool       `json:"undeliverable" dynamodbav:"undeliverable"`
	CreatedAt     int64      `json:"created_at" dynamodbav:"created_at"`
	Deliveries    []Delivery `json:"deliveries,omitempty" dynamodbav:"deliveries,omitempty"`
}

// DeliveredOn reports whether a channel already succeeded for a reviewer,
// so re-dispatching never resends on channels marked sent.
func (e *ReviewEvent) DeliveredOn(reviewerID, channel string) bool {
	for _, d := range e.Deliveries {
		if d.ReviewerID == reviewerID && d.Channel == channel && d.Status == DeliverySent {
			return true
		}
	}
	return false
}

package models

// ChannelPrefs selects delivery channels per reviewer. InApp is a tri-state:
// nil means enabled, so a reviewer with no explicit preferences still gets
// in-app notifications and an event is never silently unrouted.
type ChannelPrefs struct {
	InApp   *bool `json:"in_app,omitempty" dynamodbav:"in_app,omitempty"`
	Email   bool  `json:"email" dynamodbav:"email"`
	Webhook bool  `json:"webhook" dynamodbav:"webhook"`
}

func (p ChannelPrefs) InAppEnabled() bool {
	return p.InApp == nil || *p.InApp
}

type Reviewer struct {
	ReviewerID     string            `json:"reviewer_id" dynamodbav:"reviewer_id"`
	CompanyID      string            `json:"company_id" dynamodbav:"company_id"`
	Name           string            `json:"name" dynamodbav:"name"`
	Role           string            `json:"role" dynamodbav:"role"` // reviewer - super_admin
	Active         bool              `json:"active" dynamodbav:"active"`
	Email          string            `json:"email,omitempty" dynamodbav:"email,omitempty"`
	WebhookURL     string            `json:"webhook_url,omitempty" dynamodbav:"webhook_url,omitempty"`
	WebhookHeaders map[string]string `json:"webhook_headers,omitempty" dynamodbav:"webhook_headers,omitempty"`
	Channels       ChannelPrefs      `json:"channels" dynamodbav:"channels"`
}

const RoleSuperAdmin = "super_admin"

// ReviewerAssignment scopes a reviewer to a company, optionally narrowed to
// one site. An empty SiteID means the assignment covers the whole company.
type ReviewerAssignment struct {
	CompanyID  string `json:"company_id" dynamodbav:"company_id"`
	ReviewerID string `json:"reviewer_id" dynamodbav:"reviewer_id"`
	SiteID     string `json:"site_id,omitempty" dynamodbav:"site_id,omitempty"`
	Active     bool   `json:"active" dynamodbav:"active"`
}

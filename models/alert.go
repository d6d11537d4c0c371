package models

const (
	CategoryAbsolute    = "absolute"
	CategoryShift       = "shift"
	CategoryVelocity    = "velocity"
	CategorySpeed       = "speed"
	CategoryCombination = "combination"
	CategorySystem      = "system"

	SeverityLow      = "low"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"

	ResolutionUnresolved   = "unresolved"
	ResolutionAcknowledged = "acknowledged"
)

// severityRank orders severities for comparisons; unknown values rank lowest.
var severityRank = map[string]int{
	SeverityLow:      1,
	SeverityWarning:  2,
	SeverityError:    3,
	SeverityCritical: 4,
}

func SeverityRank(severity string) int {
	return severityRank[severity]
}

type Alert struct {
	DeviceID   string  `json:"device_id" dynamodbav:"device_id"`
	Timestamp  int64   `json:"timestamp" dynamodbav:"timestamp"`
	CompanyID  string  `json:"company_id" dynamodbav:"company_id"`
	SiteID     string  `json:"site_id,omitempty" dynamodbav:"site_id,omitempty"`
	SessionID  string  `json:"session_id,omitempty" dynamodbav:"session_id,omitempty"`
	Category   string  `json:"category" dynamodbav:"category"`
	Severity   string  `json:"severity" dynamodbav:"severity"`
	Metric     string  `json:"metric,omitempty" dynamodbav:"metric,omitempty"`
	Message    string  `json:"message" dynamodbav:"message"`
	Value      float64 `json:"value" dynamodbav:"value"`
	Threshold  float64 `json:"threshold" dynamodbav:"threshold"`
	Resolution string  `json:"resolution" dynamodbav:"resolution"`
	ExpiresAt  int64   `json:"expires_at" dynamodbav:"expires_at"`
}

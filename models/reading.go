package models

// Reading is one accepted telemetry record or derived-score sample.
// Score-like metrics (e.g. growth_index) are stored as [0,1] fractions and
// only converted to percentages at formatting boundaries.
type Reading struct {
	DeviceID  string             `json:"device_id" dynamodbav:"device_id"`
	SessionID string             `json:"session_id" dynamodbav:"session_id"`
	Timestamp int64              `json:"timestamp" dynamodbav:"timestamp"`
	Metrics   map[string]float64 `json:"metrics" dynamodbav:"metrics"`
	ExpiresAt int64              `json:"expires_at" dynamodbav:"expires_at"`
}

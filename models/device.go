package models

// Device is the projection of the registry record this core reads.
// next_wake_at and the health summary are the only fields we write back.
type Device struct {
	DeviceID        string  `json:"device_id" dynamodbav:"device_id"`
	HardwareAddr    string  `json:"hardware_addr" dynamodbav:"hardware_addr"`
	CompanyID       string  `json:"company_id" dynamodbav:"company_id"`
	SiteID          string  `json:"site_id,omitempty" dynamodbav:"site_id,omitempty"`
	WakeIntervalSec int64   `json:"wake_interval_sec" dynamodbav:"wake_interval_sec"`
	NextWakeAt      int64   `json:"next_wake_at" dynamodbav:"next_wake_at"`
	BatteryPct      float64 `json:"battery_pct" dynamodbav:"battery_pct"`
	SignalDBm       float64 `json:"signal_dbm" dynamodbav:"signal_dbm"`
	Health          string  `json:"health" dynamodbav:"health"` // HEALTHY - DEGRADED - CRITICAL
	Status          string  `json:"status" dynamodbav:"status"` // ONLINE - OFFLINE
	Archived        bool    `json:"archived" dynamodbav:"archived"`
	LastSeenAt      int64   `json:"last_seen_at" dynamodbav:"last_seen_at"`
	UpdatedAt       int64   `json:"updated_at" dynamodbav:"updated_at"`
}

// DeviceHistoryEntry is an append-only audit record per device.
type DeviceHistoryEntry struct {
	DeviceID  string `json:"device_id" dynamodbav:"device_id"`
	Timestamp int64  `json:"timestamp" dynamodbav:"timestamp"`
	Kind      string `json:"kind" dynamodbav:"kind"`
	Detail    string `json:"detail" dynamodbav:"detail"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"`
}

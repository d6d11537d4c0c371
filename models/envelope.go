package models

// Envelope is the incoming message structure bridged from the transport.
type Envelope struct {
	DeviceID  string                 `json:"device_id"`
	SessionID string                 `json:"session_id,omitempty"`
	Timestamp int64                  `json:"timestamp"`
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	Readings  []BatchReading         `json:"readings,omitempty"`
}

// BatchReading is a single reading inside a batch packet. Devices buffer
// readings between wake windows and send them as one packet to reduce
// per-message overhead.
type BatchReading struct {
	Timestamp int64                  `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
}

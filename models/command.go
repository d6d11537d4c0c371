package models

const (
	CommandPending   = "pending"
	CommandDelivered = "delivered"
	CommandCancelled = "cancelled"

	ActionResendUpload = "resend_upload"
)

// Command is an instruction queued for future delivery to a device.
// scheduled_at is a fixed lead time before the device's next wake so the
// instruction is waiting when the device comes online.
type Command struct {
	CommandID   string                 `json:"command_id" dynamodbav:"command_id"`
	DeviceID    string                 `json:"device_id" dynamodbav:"device_id"`
	UploadID    string                 `json:"upload_id" dynamodbav:"upload_id"`
	Action      string                 `json:"action" dynamodbav:"action"`
	Parameters  map[string]interface{} `json:"parameters" dynamodbav:"parameters"`
	Status      string                 `json:"status" dynamodbav:"status"`
	ScheduledAt int64                  `json:"scheduled_at" dynamodbav:"scheduled_at"`
	ExpiresAt   int64                  `json:"expires_at" dynamodbav:"expires_at"`
	CreatedAt   int64                  `json:"created_at" dynamodbav:"created_at"`
}

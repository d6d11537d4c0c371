package models

const (
	UploadReceiving = "receiving"
	UploadComplete  = "complete"
	UploadFailed    = "failed"
)

// Upload tracks one chunked image transfer. The deadline is the device's
// next wake after the one in which the transfer began: the transfer must
// finish before the device sleeps and wakes again.
type Upload struct {
	UploadID       string `json:"upload_id" dynamodbav:"upload_id"`
	DeviceID       string `json:"device_id" dynamodbav:"device_id"`
	ImageName      string `json:"image_name" dynamodbav:"image_name"`
	TotalChunks    int    `json:"total_chunks" dynamodbav:"total_chunks"`
	ReceivedChunks int    `json:"received_chunks" dynamodbav:"received_chunks"`
	Status         string `json:"status" dynamodbav:"status"`
	RetryCount     int    `json:"retry_count" dynamodbav:"retry_count"`
	MaxRetries     int    `json:"max_retries" dynamodbav:"max_retries"`
	DeadlineAt     int64  `json:"deadline_at" dynamodbav:"deadline_at"`
	FailReason     string `json:"fail_reason,omitempty" dynamodbav:"fail_reason,omitempty"`
	CreatedAt      int64  `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt      int64  `json:"updated_at" dynamodbav:"updated_at"`
}

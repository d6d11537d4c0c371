package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BrainlyTree-Project/Backend/models"
)

type commandSaver interface {
	SavePending(ctx context.Context, cmd models.Command) error
}

type retryCounter interface {
	IncrementRetry(ctx context.Context, uploadID string) (int, error)
	Reactivate(ctx context.Context, uploadID string, newDeadline, now int64) error
}

type alertSaver interface {
	SaveAlert(ctx context.Context, alert models.Alert) error
}

type alertNotifier interface {
	NotifyAlert(ctx context.Context, device *models.Device, alert models.Alert) error
}

// QueueResult reports what QueueRetry did. Exhaustion and deduplication are
// normal outcomes, not errors.
type QueueResult struct {
	CommandID    string
	ScheduledAt  int64
	Deduplicated bool
	Exhausted    bool
}

// Queue schedules retry instructions timed to arrive just before the
// device's next wake window.
type Queue struct {
	Commands   commandSaver
	Uploads    retryCounter
	Alerts     alertSaver
	Notifier   alertNotifier
	LeadTime   time.Duration
	CommandTTL time.Duration
	Logger     *slog.Logger
}

// QueueRetry queues a resend instruction for a failed upload. At most one
// pending command exists per (device, upload): a second call while one is
// pending is a no-op. Once max_retries is reached no command is queued;
// instead a high-severity alert is raised and the upload stays failed.
func (q *Queue) QueueRetry(ctx context.Context, now time.Time, device *models.Device, upload *models.Upload) (QueueResult, error) {
	if upload.RetryCount >= upload.MaxRetries {
		return q.raiseExhausted(ctx, now, device, upload)
	}

	scheduledAt := device.NextWakeAt - int64(q.LeadTime.Seconds())
	if scheduledAt < now.Unix() {
		// The lead window already passed, deliver as soon as possible.
		scheduledAt = now.Unix()
	}

	cmd := models.Command{
		CommandID: uuid.NewString(),
		DeviceID:  device.DeviceID,
		UploadID:  upload.UploadID,
		Action:    models.ActionResendUpload,
		Parameters: map[string]interface{}{
			"upload_id":  upload.UploadID,
			"image_name": upload.ImageName,
		},
		ScheduledAt: scheduledAt,
		ExpiresAt:   scheduledAt + int64(q.CommandTTL.Seconds()),
		CreatedAt:   now.Unix(),
	}

	if err := q.Commands.SavePending(ctx, cmd); err != nil {
		if errors.Is(err, ErrDuplicatePending) {
			q.Logger.Info("retry already pending", "device_id", device.DeviceID, "upload_id", upload.UploadID)
			return QueueResult{Deduplicated: true}, nil
		}
		return QueueResult{}, err
	}

	count, err := q.Uploads.IncrementRetry(ctx, upload.UploadID)
	if err != nil {
		return QueueResult{}, fmt.Errorf("increment retry count: %w", err)
	}

	q.Logger.Info("retry queued",
		"device_id", device.DeviceID,
		"upload_id", upload.UploadID,
		"command_id", cmd.CommandID,
		"scheduled_at", scheduledAt,
		"retry", count,
	)

	return QueueResult{CommandID: cmd.CommandID, ScheduledAt: scheduledAt}, nil
}

// AcceptRetry moves a failed upload back to receiving once the device starts
// resending, with the deadline reset to the device's next wake.
func (q *Queue) AcceptRetry(ctx context.Context, now time.Time, device *models.Device, uploadID string) error {
	return q.Uploads.Reactivate(ctx, uploadID, device.NextWakeAt, now.Unix())
}

func (q *Queue) raiseExhausted(ctx context.Context, now time.Time, device *models.Device, upload *models.Upload) (QueueResult, error) {
	alert := models.Alert{
		DeviceID:  device.DeviceID,
		Timestamp: now.Unix(),
		CompanyID: device.CompanyID,
		SiteID:    device.SiteID,
		Category:  models.CategorySystem,
		Severity:  models.SeverityError,
		Message: fmt.Sprintf("final retry exhausted for upload %s after %d attempts",
			upload.UploadID, upload.RetryCount),
		Value:      float64(upload.RetryCount),
		Threshold:  float64(upload.MaxRetries),
		Resolution: models.ResolutionUnresolved,
	}

	if err := q.Alerts.SaveAlert(ctx, alert); err != nil {
		return QueueResult{}, fmt.Errorf("save exhaustion alert: %w", err)
	}

	// Exhaustion needs a human decision; route it through the same reviewer
	// chain as threshold alerts. Dispatch failure is logged, not fatal: the
	// alert is already persisted and queryable.
	if q.Notifier != nil {
		if err := q.Notifier.NotifyAlert(ctx, device, alert); err != nil {
			q.Logger.Error("failed to dispatch exhaustion alert",
				"device_id", device.DeviceID,
				"upload_id", upload.UploadID,
				"error", err,
			)
		}
	}

	q.Logger.Warn("retries exhausted, upload failed permanently",
		"device_id", device.DeviceID,
		"upload_id", upload.UploadID,
		"retries", upload.RetryCount,
	)

	return QueueResult{Exhausted: true}, nil
}

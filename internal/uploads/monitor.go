package uploads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BrainlyTree-Project/Backend/internal/commands"
	"github.com/BrainlyTree-Project/Backend/models"
)

const TimeoutReason = "not completed before next wake"

type sweepStore interface {
	ListReceivingPastDeadline(ctx context.Context, now int64) ([]models.Upload, error)
	MarkFailed(ctx context.Context, uploadID, reason string, now int64) error
}

type deviceSource interface {
	GetDevice(ctx context.Context, deviceID string) (*models.Device, error)
	AppendHistory(ctx context.Context, entry models.DeviceHistoryEntry) error
}

type retryQueuer interface {
	QueueRetry(ctx context.Context, now time.Time, device *models.Device, upload *models.Upload) (commands.QueueResult, error)
}

// TimeoutResult describes one upload the sweep settled.
type TimeoutResult struct {
	UploadID    string `json:"upload_id"`
	DeviceID    string `json:"device_id"`
	CommandID   string `json:"command_id,omitempty"`
	AlertRaised bool   `json:"alert_raised"`
}

type SweepError struct {
	UploadID string `json:"upload_id"`
	Err      string `json:"error"`
}

// SweepSummary is returned instead of erroring on partial failure so the
// scheduler can log and alert without crash-looping.
type SweepSummary struct {
	TimedOut []TimeoutResult `json:"timed_out"`
	Skipped  int             `json:"skipped"`
	Errors   []SweepError    `json:"errors,omitempty"`
}

// Monitor finds in-flight uploads past their deadline and fails them.
// Safe to run concurrently with uploads actively being written and with
// overlapping sweeps: transitions are conditional on the row still being
// in receiving, so a last-instant completion wins.
type Monitor struct {
	Uploads sweepStore
	Devices deviceSource
	Queue   retryQueuer
	Logger  *slog.Logger
}

// Sweep is a pure function of now plus persisted state; the monitor holds
// no timers of its own. A single upload's failure never aborts the sweep.
func (m *Monitor) Sweep(ctx context.Context, now time.Time) (SweepSummary, error) {
	var summary SweepSummary

	overdue, err := m.Uploads.ListReceivingPastDeadline(ctx, now.Unix())
	if err != nil {
		return summary, fmt.Errorf("failed to list overdue uploads: %w", err)
	}

	for _, up := range overdue {
		if err := ctx.Err(); err != nil {
			// Caller cancelled; everything settled so far stays settled.
			return summary, err
		}

		result, err := m.sweepOne(ctx, now, up)
		if err != nil {
			if errors.Is(err, ErrAlreadySettled) {
				summary.Skipped++
				continue
			}
			m.Logger.Error("sweep item failed", "upload_id", up.UploadID, "error", err)
			summary.Errors = append(summary.Errors, SweepError{UploadID: up.UploadID, Err: err.Error()})
			continue
		}

		summary.TimedOut = append(summary.TimedOut, result)
	}

	return summary, nil
}

func (m *Monitor) sweepOne(ctx context.Context, now time.Time, up models.Upload) (TimeoutResult, error) {
	result := TimeoutResult{UploadID: up.UploadID, DeviceID: up.DeviceID}

	// CAS transition first: if this fails on the condition the upload
	// completed (or another sweep got here) and there is nothing to do.
	if err := m.Uploads.MarkFailed(ctx, up.UploadID, TimeoutReason, now.Unix()); err != nil {
		return result, err
	}

	m.Logger.Info("upload timed out", "upload_id", up.UploadID, "device_id", up.DeviceID)

	device, err := m.Devices.GetDevice(ctx, up.DeviceID)
	if err != nil {
		return result, fmt.Errorf("device lookup: %w", err)
	}

	queued, err := m.Queue.QueueRetry(ctx, now, device, &up)
	if err != nil {
		return result, fmt.Errorf("queue retry: %w", err)
	}
	result.CommandID = queued.CommandID
	result.AlertRaised = queued.Exhausted

	entry := models.DeviceHistoryEntry{
		DeviceID:  up.DeviceID,
		Timestamp: now.Unix(),
		Kind:      "upload_timeout",
		Detail:    fmt.Sprintf("upload %s failed: %s (retry %d/%d)", up.UploadID, TimeoutReason, up.RetryCount, up.MaxRetries),
	}
	if err := m.Devices.AppendHistory(ctx, entry); err != nil {
		return result, fmt.Errorf("append history: %w", err)
	}

	return result, nil
}

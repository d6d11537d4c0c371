package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BrainlyTree-Project/Backend/models"
)

type expiredLister interface {
	ListPendingExpired(ctx context.Context, now int64) ([]models.Command, error)
	Cancel(ctx context.Context, deviceID, uploadID string, now int64) error
}

type CleanupError struct {
	CommandID string `json:"command_id"`
	Err       string `json:"error"`
}

type CleanupSummary struct {
	Cancelled int            `json:"cancelled"`
	Skipped   int            `json:"skipped"`
	Errors    []CleanupError `json:"errors,omitempty"`
}

// Cleanup cancels pending commands whose expiry passed unconsumed: the
// device missed its window or went offline for good.
type Cleanup struct {
	Commands expiredLister
}

func (c *Cleanup) CancelExpired(ctx context.Context, now time.Time) (CleanupSummary, error) {
	var summary CleanupSummary

	stale, err := c.Commands.ListPendingExpired(ctx, now.Unix())
	if err != nil {
		return summary, fmt.Errorf("failed to list expired commands: %w", err)
	}

	for _, cmd := range stale {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		err := c.Commands.Cancel(ctx, cmd.DeviceID, cmd.UploadID, now.Unix())
		switch {
		case err == nil:
			summary.Cancelled++
		case errors.Is(err, ErrNotPending):
			// Delivered or cancelled by a concurrent writer; already settled.
			summary.Skipped++
		default:
			summary.Errors = append(summary.Errors, CleanupError{CommandID: cmd.CommandID, Err: err.Error()})
		}
	}

	return summary, nil
}

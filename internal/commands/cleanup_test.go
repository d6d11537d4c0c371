package commands_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BrainlyTree-Project/Backend/internal/commands"
	"github.com/BrainlyTree-Project/Backend/models"
)

type fakeExpiredLister struct {
	expired    []models.Command
	notPending map[string]bool
	cancelled  []string
}

func (f *fakeExpiredLister) ListPendingExpired(ctx context.Context, now int64) ([]models.Command, error) {
	return f.expired, nil
}

func (f *fakeExpiredLister) Cancel(ctx context.Context, deviceID, uploadID string, now int64) error {
	if f.notPending[uploadID] {
		return commands.ErrNotPending
	}
	f.cancelled = append(f.cancelled, uploadID)
	return nil
}

func TestCancelExpired(t *testing.T) {
	store := &fakeExpiredLister{
		expired: []models.Command{
			{CommandID: "c1", DeviceID: "dev-1", UploadID: "up-1"},
			{CommandID: "c2", DeviceID: "dev-1", UploadID: "up-2"},
			{CommandID: "c3", DeviceID: "dev-2", UploadID: "up-3"},
		},
		// up-2 was delivered between the listing and the cancel.
		notPending: map[string]bool{"up-2": true},
	}

	cleanup := &commands.Cleanup{Commands: store}
	summary, err := cleanup.CancelExpired(context.Background(), time.Unix(10000, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Cancelled != 2 {
		t.Errorf("expected 2 cancelled, got %d", summary.Cancelled)
	}
	if summary.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", summary.Skipped)
	}
	if len(summary.Errors) != 0 {
		t.Errorf("expected no errors, got %v", summary.Errors)
	}
}

func TestCancelExpiredStopsOnCancelledContext(t *testing.T) {
	store := &fakeExpiredLister{
		expired: []models.Command{{CommandID: "c1", DeviceID: "dev-1", UploadID: "up-1"}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cleanup := &commands.Cleanup{Commands: store}
	_, err := cleanup.CancelExpired(ctx, time.Unix(10000, 0))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(store.cancelled) != 0 {
		t.Error("no command may be cancelled after the context is done")
	}
}

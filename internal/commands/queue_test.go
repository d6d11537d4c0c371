package commands_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/BrainlyTree-Project/Backend/internal/commands"
	"github.com/BrainlyTree-Project/Backend/models"
)

type fakeCommandSaver struct {
	saved     []models.Command
	duplicate bool
}

func (f *fakeCommandSaver) SavePending(ctx context.Context, cmd models.Command) error {
	if f.duplicate {
		return commands.ErrDuplicatePending
	}
	f.saved = append(f.saved, cmd)
	return nil
}

type fakeRetryCounter struct {
	count       int
	reactivated []string
}

func (f *fakeRetryCounter) IncrementRetry(ctx context.Context, uploadID string) (int, error) {
	f.count++
	return f.count, nil
}

func (f *fakeRetryCounter) Reactivate(ctx context.Context, uploadID string, newDeadline, now int64) error {
	f.reactivated = append(f.reactivated, uploadID)
	return nil
}

type fakeAlertSaver struct {
	alerts []models.Alert
}

func (f *fakeAlertSaver) SaveAlert(ctx context.Context, alert models.Alert) error {
	f.alerts = append(f.alerts, alert)
	return nil
}

type fakeAlertNotifier struct {
	notified []models.Alert
	err      error
}

func (f *fakeAlertNotifier) NotifyAlert(ctx context.Context, device *models.Device, alert models.Alert) error {
	f.notified = append(f.notified, alert)
	return f.err
}

func newQueue(saver *fakeCommandSaver, counter *fakeRetryCounter, alerter *fakeAlertSaver) *commands.Queue {
	return &commands.Queue{
		Commands:   saver,
		Uploads:    counter,
		Alerts:     alerter,
		LeadTime:   5 * time.Minute,
		CommandTTL: time.Hour,
		Logger:     slog.New(slog.DiscardHandler),
	}
}

func TestQueueRetrySchedulesBeforeWake(t *testing.T) {
	saver := &fakeCommandSaver{}
	counter := &fakeRetryCounter{}
	queue := newQueue(saver, counter, &fakeAlertSaver{})

	now := time.Unix(10000, 0)
	device := &models.Device{DeviceID: "dev-1", NextWakeAt: 10000 + 3600}
	upload := &models.Upload{UploadID: "up-1", ImageName: "leaf.jpg", RetryCount: 0, MaxRetries: 3}

	result, err := queue.QueueRetry(context.Background(), now, device, upload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantScheduled := device.NextWakeAt - 300
	if result.ScheduledAt != wantScheduled {
		t.Errorf("expected scheduled_at %d, got %d", wantScheduled, result.ScheduledAt)
	}
	if result.CommandID == "" {
		t.Error("expected a command id")
	}

	if len(saver.saved) != 1 {
		t.Fatalf("expected 1 saved command, got %d", len(saver.saved))
	}
	cmd := saver.saved[0]
	if cmd.Action != models.ActionResendUpload {
		t.Errorf("expected resend_upload action, got %s", cmd.Action)
	}
	if cmd.ExpiresAt != wantScheduled+3600 {
		t.Errorf("expected expiry %d, got %d", wantScheduled+3600, cmd.ExpiresAt)
	}
	if cmd.Parameters["upload_id"] != "up-1" || cmd.Parameters["image_name"] != "leaf.jpg" {
		t.Errorf("unexpected parameters: %v", cmd.Parameters)
	}

	if counter.count != 1 {
		t.Errorf("expected retry count incremented once, got %d", counter.count)
	}
}

func TestQueueRetryPastLeadWindowDeliversNow(t *testing.T) {
	saver := &fakeCommandSaver{}
	queue := newQueue(saver, &fakeRetryCounter{}, &fakeAlertSaver{})

	// Next wake is only a minute away, inside the five minute lead window.
	now := time.Unix(10000, 0)
	device := &models.Device{DeviceID: "dev-1", NextWakeAt: 10060}
	upload := &models.Upload{UploadID: "up-1", MaxRetries: 3}

	result, err := queue.QueueRetry(context.Background(), now, device, upload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ScheduledAt != now.Unix() {
		t.Errorf("expected immediate scheduling at %d, got %d", now.Unix(), result.ScheduledAt)
	}
}

func TestQueueRetryDeduplicates(t *testing.T) {
	saver := &fakeCommandSaver{duplicate: true}
	counter := &fakeRetryCounter{}
	queue := newQueue(saver, counter, &fakeAlertSaver{})

	device := &models.Device{DeviceID: "dev-1", NextWakeAt: 20000}
	upload := &models.Upload{UploadID: "up-1", MaxRetries: 3}

	result, err := queue.QueueRetry(context.Background(), time.Unix(10000, 0), device, upload)
	if err != nil {
		t.Fatalf("deduplication must not be an error: %v", err)
	}
	if !result.Deduplicated {
		t.Error("expected Deduplicated to be set")
	}
	if counter.count != 0 {
		t.Error("retry count must not advance on a deduplicated queue call")
	}
}

func TestQueueRetryExhaustionRaisesAlert(t *testing.T) {
	saver := &fakeCommandSaver{}
	alerter := &fakeAlertSaver{}
	queue := newQueue(saver, &fakeRetryCounter{}, alerter)

	device := &models.Device{DeviceID: "dev-1", CompanyID: "acme", NextWakeAt: 20000}
	upload := &models.Upload{UploadID: "up-1", RetryCount: 3, MaxRetries: 3}

	result, err := queue.QueueRetry(context.Background(), time.Unix(10000, 0), device, upload)
	if err != nil {
		t.Fatalf("exhaustion must not be an error: %v", err)
	}
	if !result.Exhausted {
		t.Error("expected Exhausted to be set")
	}
	if len(saver.saved) != 0 {
		t.Error("no command may be queued after the final retry")
	}

	if len(alerter.alerts) != 1 {
		t.Fatalf("expected 1 exhaustion alert, got %d", len(alerter.alerts))
	}
	alert := alerter.alerts[0]
	if alert.Category != models.CategorySystem || alert.Severity != models.SeverityError {
		t.Errorf("expected system/error alert, got %s/%s", alert.Category, alert.Severity)
	}
	if alert.CompanyID != "acme" {
		t.Errorf("alert must carry routing fields, got company %q", alert.CompanyID)
	}
}

func TestQueueRetryExhaustionNotifiesReviewers(t *testing.T) {
	alerter := &fakeAlertSaver{}
	notifier := &fakeAlertNotifier{}
	queue := newQueue(&fakeCommandSaver{}, &fakeRetryCounter{}, alerter)
	queue.Notifier = notifier

	device := &models.Device{DeviceID: "dev-1", CompanyID: "acme", SiteID: "site-3", NextWakeAt: 20000}
	upload := &models.Upload{UploadID: "up-1", RetryCount: 3, MaxRetries: 3}

	result, err := queue.QueueRetry(context.Background(), time.Unix(10000, 0), device, upload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Exhausted {
		t.Error("expected Exhausted to be set")
	}

	if len(notifier.notified) != 1 {
		t.Fatalf("expected the exhaustion alert to be dispatched, got %d dispatches", len(notifier.notified))
	}
	if notifier.notified[0].Category != models.CategorySystem {
		t.Errorf("dispatched alert category = %s, want %s", notifier.notified[0].Category, models.CategorySystem)
	}
}

func TestQueueRetryExhaustionSurvivesNotifyFailure(t *testing.T) {
	alerter := &fakeAlertSaver{}
	notifier := &fakeAlertNotifier{err: context.DeadlineExceeded}
	queue := newQueue(&fakeCommandSaver{}, &fakeRetryCounter{}, alerter)
	queue.Notifier = notifier

	device := &models.Device{DeviceID: "dev-1", NextWakeAt: 20000}
	upload := &models.Upload{UploadID: "up-1", RetryCount: 3, MaxRetries: 3}

	result, err := queue.QueueRetry(context.Background(), time.Unix(10000, 0), device, upload)
	if err != nil {
		t.Fatalf("dispatch failure must not fail the queue call: %v", err)
	}
	if !result.Exhausted {
		t.Error("expected Exhausted to be set")
	}
	if len(alerter.alerts) != 1 {
		t.Errorf("alert must still be persisted, got %d", len(alerter.alerts))
	}
}

func TestAcceptRetryReactivatesUpload(t *testing.T) {
	counter := &fakeRetryCounter{}
	queue := newQueue(&fakeCommandSaver{}, counter, &fakeAlertSaver{})

	device := &models.Device{DeviceID: "dev-1", NextWakeAt: 20000}
	if err := queue.AcceptRetry(context.Background(), time.Unix(10000, 0), device, "up-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(counter.reactivated) != 1 || counter.reactivated[0] != "up-1" {
		t.Errorf("expected up-1 reactivated, got %v", counter.reactivated)
	}
}

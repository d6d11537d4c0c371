package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BrainlyTree-Project/Backend/models"
)

type reviewerResolver interface {
	Resolve(ctx context.Context, companyID, siteID string) ([]models.Reviewer, error)
}

// AlertEmitter turns a persisted alert into a review event and fans it out:
// resolve the reviewer chain for the device's scope, then dispatch.
type AlertEmitter struct {
	Resolver   reviewerResolver
	Dispatcher *Dispatcher
	Logger     *slog.Logger
}

func (e *AlertEmitter) NotifyAlert(ctx context.Context, device *models.Device, alert models.Alert) error {
	recipients, err := e.Resolver.Resolve(ctx, device.CompanyID, device.SiteID)
	if err != nil {
		return err
	}

	ev := models.ReviewEvent{
		EventID:   uuid.NewString(),
		TriggerID: alertTriggerID(alert),
		CompanyID: device.CompanyID,
		SiteID:    device.SiteID,
		DeviceID:  device.DeviceID,
		Kind:      "alert",
		Subject:   fmt.Sprintf("%s alert: %s on device %s", alert.Severity, alert.Metric, device.DeviceID),
		Body:      alert.Message,
		CreatedAt: time.Now().Unix(),
	}

	summary, err := e.Dispatcher.Dispatch(ctx, ev, recipients)
	if err != nil {
		return err
	}

	e.Logger.Info("alert dispatched",
		"event_id", summary.EventID,
		"sent", summary.Sent,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"undeliverable", summary.Undeliverable,
	)
	return nil
}

// alertTriggerID derives the idempotency key so a replayed reading can never
// notify twice for the same alert.
func alertTriggerID(a models.Alert) string {
	return fmt.Sprintf("alert|%s|%d|%s|%s", a.DeviceID, a.Timestamp, a.Category, a.Metric)
}

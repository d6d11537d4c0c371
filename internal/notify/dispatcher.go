package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BrainlyTree-Project/Backend/models"
)

type eventStore interface {
	EnsureEvent(ctx context.Context, ev models.ReviewEvent) (*models.ReviewEvent, error)
	AppendDelivery(ctx context.Context, triggerID string, d models.Delivery) error
	MarkUndeliverable(ctx context.Context, triggerID string) error
}

// DeliveryFailure identifies one failed channel attempt in the summary.
type DeliveryFailure struct {
	ReviewerID string `json:"reviewer_id"`
	Channel    string `json:"channel"`
	Err        string `json:"error"`
}

// DispatchSummary is what the caller logs; partial failure is data here, not
// an error.
type DispatchSummary struct {
	EventID       string            `json:"event_id"`
	Attempted     int               `json:"attempted"`
	Sent          int               `json:"sent"`
	Failed        int               `json:"failed"`
	Skipped       int               `json:"skipped"`
	Undeliverable bool              `json:"undeliverable"`
	Failures      []DeliveryFailure `json:"failures,omitempty"`
}

// Dispatcher fans an event out to every resolved reviewer over every channel
// that reviewer has enabled. Channel attempts are independent: a failure on
// one never blocks the others. Fan-out is bounded so a burst of alerts does
// not overwhelm the delivery providers.
type Dispatcher struct {
	Events         eventStore
	Channels       []Channel
	Concurrency    int
	AttemptTimeout time.Duration
	Logger         *slog.Logger
}

type attempt struct {
	reviewer models.Reviewer
	channel  Channel
}

// Dispatch is idempotent per (event, reviewer, channel): re-invoking for an
// already-delivered event skips channels marked sent and retries only the
// ones that failed.
func (d *Dispatcher) Dispatch(ctx context.Context, ev models.ReviewEvent, reviewers []models.Reviewer) (DispatchSummary, error) {
	summary := DispatchSummary{EventID: ev.EventID}

	stored, err := d.Events.EnsureEvent(ctx, ev)
	if err != nil {
		return summary, err
	}
	summary.EventID = stored.EventID

	if len(reviewers) == 0 {
		if err := d.Events.MarkUndeliverable(ctx, stored.TriggerID); err != nil {
			return summary, err
		}
		summary.Undeliverable = true
		d.Logger.Warn("event undeliverable, retained for manual inspection", "event_id", stored.EventID)
		return summary, nil
	}

	var attempts []attempt
	for _, reviewer := range reviewers {
		for _, ch := range d.Channels {
			if !channelEnabled(reviewer, ch.Name()) {
				continue
			}
			if stored.DeliveredOn(reviewer.ReviewerID, ch.Name()) {
				summary.Skipped++
				continue
			}
			attempts = append(attempts, attempt{reviewer: reviewer, channel: ch})
		}
	}

	msg := buildMessage(stored)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	limit := d.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for _, a := range attempts {
		g.Go(func() error {
			delivery := d.attemptOne(gctx, a, msg)

			mu.Lock()
			summary.Attempted++
			if delivery.Status == models.DeliverySent {
				summary.Sent++
			} else {
				summary.Failed++
				summary.Failures = append(summary.Failures, DeliveryFailure{
					ReviewerID: a.reviewer.ReviewerID,
					Channel:    a.channel.Name(),
					Err:        delivery.Error,
				})
			}
			mu.Unlock()

			// Record the outcome against the event so partial delivery is
			// reconstructible from the event alone. The write runs on a
			// detached context: an attempt that already reached the provider
			// must land in the log even when the caller is shutting down.
			recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.recordTimeout())
			defer cancel()
			if err := d.Events.AppendDelivery(recordCtx, stored.TriggerID, delivery); err != nil {
				d.Logger.Error("failed to record delivery outcome",
					"event_id", stored.EventID,
					"reviewer_id", a.reviewer.ReviewerID,
					"channel", a.channel.Name(),
					"error", err,
				)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}

	return summary, nil
}

func (d *Dispatcher) recordTimeout() time.Duration {
	if d.AttemptTimeout > 0 {
		return d.AttemptTimeout
	}
	return 5 * time.Second
}

func (d *Dispatcher) attemptOne(ctx context.Context, a attempt, msg Message) models.Delivery {
	attemptCtx, cancel := context.WithTimeout(ctx, d.AttemptTimeout)
	defer cancel()

	delivery := models.Delivery{
		ReviewerID:  a.reviewer.ReviewerID,
		Channel:     a.channel.Name(),
		Status:      models.DeliverySent,
		AttemptedAt: time.Now().Unix(),
	}

	if err := a.channel.Send(attemptCtx, a.reviewer, msg); err != nil {
		// A timed-out or failed call is a failed channel attempt, not a
		// crash of the whole dispatch.
		delivery.Status = models.DeliveryFailed
		delivery.Error = err.Error()
		d.Logger.Warn("channel delivery failed",
			"reviewer_id", a.reviewer.ReviewerID,
			"channel", a.channel.Name(),
			"error", err,
		)
	}

	return delivery
}

func buildMessage(ev *models.ReviewEvent) Message {
	return Message{
		EventID:  ev.EventID,
		Kind:     ev.Kind,
		Subject:  ev.Subject,
		BodyText: ev.Body,
		BodyHTML: "<p>" + ev.Body + "</p>",
		DeviceID: ev.DeviceID,
		SiteID:   ev.SiteID,
	}
}

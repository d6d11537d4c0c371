package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BrainlyTree-Project/Backend/internal/alerts"
	"github.com/BrainlyTree-Project/Backend/internal/devices"
	"github.com/BrainlyTree-Project/Backend/internal/notify"
	"github.com/BrainlyTree-Project/Backend/internal/telemetry"
	"github.com/BrainlyTree-Project/Backend/internal/thresholds"
	"github.com/BrainlyTree-Project/Backend/internal/uploads"
	"github.com/BrainlyTree-Project/Backend/internal/validation"
	"github.com/BrainlyTree-Project/Backend/models"
)

// Service holds dependencies for the ingestion logic
type Service struct {
	Logger            *slog.Logger
	Readings          *telemetry.ReadingStore
	Devices           *devices.DeviceStore
	Uploads           *uploads.UploadStore
	Thresholds        *thresholds.ThresholdStore
	Alerts            *alerts.AlertStore
	Notifier          *notify.AlertEmitter
	DefaultMaxRetries int
}

func (s *Service) HandleRequest(ctx context.Context, event map[string]interface{}) (err error) {
	// Panic Recovery Shield
	defer func() {
		if r := recover(); r != nil {
			s.Logger.Error("CRITICAL: Lambda Panic Recovered", "panic", r)
			err = fmt.Errorf("internal server error")
		}
	}()

	deviceID, kind, envelope, isBatch, err := validation.ValidateMessage(event)
	if err != nil {
		s.logValidationError(err, envelope.DeviceID)
		return err
	}

	switch kind {
	case "readings":
		return s.handleReadings(ctx, deviceID, envelope, isBatch)

	case "image":
		return s.handleImage(ctx, deviceID, envelope)

	case "score":
		return s.handleScore(ctx, deviceID, envelope)

	default:
		return fmt.Errorf("unknown message kind: %s", kind)
	}
}

// handleReadings processes both single and batch reading messages.
func (s *Service) handleReadings(ctx context.Context, deviceID string, envelope models.Envelope, isBatch bool) error {
	if isBatch {
		s.Logger.Info("processing readings batch", "device_id", deviceID, "count", len(envelope.Readings))

		var batch []models.Reading
		var latest models.Reading

		for _, item := range envelope.Readings {
			metrics, ok := toMetrics(item.Payload)
			if !ok {
				s.Logger.Warn("skipping malformed reading in batch", "device_id", deviceID)
				continue
			}

			ts := item.Timestamp
			if ts == 0 {
				ts = envelope.Timestamp
			}

			r := models.Reading{
				DeviceID:  deviceID,
				SessionID: envelope.SessionID,
				Timestamp: ts,
				Metrics:   metrics,
			}
			batch = append(batch, r)
			if r.Timestamp >= latest.Timestamp {
				latest = r
			}
		}

		if len(batch) == 0 {
			return nil
		}

		if err := s.Readings.SaveReadingBatch(ctx, batch); err != nil {
			s.Logger.Error("failed to save readings batch", "error", err)
			return err
		}

		// Health and alerting run once against the newest reading; older
		// buffered readings are history, not current state.
		return s.afterReading(ctx, latest)
	}

	metrics, ok := toMetrics(envelope.Payload)
	if !ok {
		return fmt.Errorf("%w: non-numeric metric", validation.ErrInvalidPayload)
	}

	reading := models.Reading{
		DeviceID:  deviceID,
		SessionID: envelope.SessionID,
		Timestamp: envelope.Timestamp,
		Metrics:   metrics,
	}

	s.Logger.Info("saving reading", "device_id", deviceID)

	if err := s.Readings.SaveReading(ctx, reading); err != nil {
		s.Logger.Error("failed to save reading", "error", err)
		return err
	}

	return s.afterReading(ctx, reading)
}

// afterReading refreshes device health and runs threshold evaluation.
func (s *Service) afterReading(ctx context.Context, reading models.Reading) error {
	if err := s.Devices.UpdateHealthFromReading(ctx, reading); err != nil {
		s.Logger.Error("failed to update device health", "device_id", reading.DeviceID, "error", err)
	}

	// Synthetic devices exist for pipeline verification; their readings are
	// stored but never alert anyone.
	if devices.IsSynthetic(reading.DeviceID) {
		s.Logger.Debug("skipping evaluation for synthetic device", "device_id", reading.DeviceID)
		return nil
	}

	return s.evaluateAndNotify(ctx, reading)
}

func (s *Service) evaluateAndNotify(ctx context.Context, reading models.Reading) error {
	device, err := s.Devices.GetDevice(ctx, reading.DeviceID)
	if err != nil {
		if errors.Is(err, devices.ErrDeviceNotFound) {
			s.Logger.Warn("reading from unregistered device", "device_id", reading.DeviceID)
			return nil
		}
		return err
	}
	if device.Archived {
		return nil
	}

	cfg, err := s.Thresholds.GetEffective(ctx, device.CompanyID, device.DeviceID)
	if err != nil {
		if errors.Is(err, thresholds.ErrNoThresholds) {
			s.Logger.Debug("no thresholds configured", "device_id", device.DeviceID)
			return nil
		}
		return err
	}

	var previous *models.Reading
	if reading.SessionID != "" {
		previous, err = s.Readings.PreviousInSession(ctx, reading.SessionID, reading.Timestamp)
		if err != nil {
			s.Logger.Error("failed to load previous reading", "session_id", reading.SessionID, "error", err)
		}
	}

	fired := alerts.Evaluate(alerts.EvalInput{
		Device:   device,
		Reading:  reading,
		Previous: previous,
		Config:   cfg,
	})

	for _, alert := range fired {
		if err := s.Alerts.SaveAlert(ctx, alert); err != nil {
			s.Logger.Error("failed to save alert", "device_id", alert.DeviceID, "metric", alert.Metric, "error", err)
			continue
		}

		if models.SeverityRank(alert.Severity) < models.SeverityRank(models.SeverityWarning) {
			continue
		}

		if err := s.Notifier.NotifyAlert(ctx, device, alert); err != nil {
			s.Logger.Error("failed to dispatch alert", "device_id", alert.DeviceID, "metric", alert.Metric, "error", err)
		}
	}

	return nil
}

// handleImage routes the three phases of a chunked image transfer.
func (s *Service) handleImage(ctx context.Context, deviceID string, envelope models.Envelope) error {
	phase, _ := envelope.Payload["phase"].(string)

	switch phase {
	case "metadata":
		return s.startUpload(ctx, deviceID, envelope)
	case "chunk":
		return s.recordChunk(ctx, envelope)
	case "complete":
		return s.completeUpload(ctx, envelope)
	default:
		return fmt.Errorf("%w: unknown image phase %q", validation.ErrInvalidPayload, phase)
	}
}

func (s *Service) startUpload(ctx context.Context, deviceID string, envelope models.Envelope) error {
	imageName, _ := envelope.Payload["image_name"].(string)
	totalChunks, _ := envelope.Payload["total_chunks"].(float64)

	uploadID, _ := envelope.Payload["upload_id"].(string)
	if uploadID == "" {
		// Devices that cannot generate ids key the transfer by image name.
		uploadID = deviceID + "|" + imageName
	}

	device, err := s.Devices.GetDevice(ctx, deviceID)
	if err != nil {
		return err
	}

	now := time.Now().Unix()

	// The transfer must finish before the device's next wake; past that point
	// the device has slept and the remaining chunks will never arrive.
	deadline := device.NextWakeAt
	if deadline <= now {
		deadline = now + device.WakeIntervalSec
	}
	if deadline <= now {
		deadline = now + 3600
	}

	up := models.Upload{
		UploadID:    uploadID,
		DeviceID:    deviceID,
		ImageName:   imageName,
		TotalChunks: int(totalChunks),
		Status:      models.UploadReceiving,
		MaxRetries:  s.DefaultMaxRetries,
		DeadlineAt:  deadline,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.Logger.Info("upload started", "upload_id", uploadID, "device_id", deviceID, "total_chunks", up.TotalChunks)
	return s.Uploads.CreateUpload(ctx, up)
}

func (s *Service) recordChunk(ctx context.Context, envelope models.Envelope) error {
	uploadID, _ := envelope.Payload["upload_id"].(string)

	up, err := s.Uploads.RecordChunk(ctx, uploadID, time.Now().Unix())
	if err != nil {
		if errors.Is(err, uploads.ErrAlreadySettled) {
			// Late chunk after completion or timeout; nothing to do.
			s.Logger.Warn("chunk for settled upload ignored", "upload_id", uploadID)
			return nil
		}
		return err
	}

	if up.TotalChunks > 0 && up.ReceivedChunks >= up.TotalChunks {
		if err := s.Uploads.MarkComplete(ctx, uploadID, time.Now().Unix()); err != nil && !errors.Is(err, uploads.ErrAlreadySettled) {
			return err
		}
		s.Logger.Info("upload complete", "upload_id", uploadID, "chunks", up.ReceivedChunks)
	}

	return nil
}

func (s *Service) completeUpload(ctx context.Context, envelope models.Envelope) error {
	uploadID, _ := envelope.Payload["upload_id"].(string)

	up, err := s.Uploads.GetUpload(ctx, uploadID)
	if err != nil {
		return err
	}

	if up.ReceivedChunks < up.TotalChunks {
		// The device thinks it is done but chunks were lost in transit. Leave
		// the transfer receiving so the deadline sweep queues a retry.
		s.Logger.Warn("completion with missing chunks",
			"upload_id", uploadID,
			"received", up.ReceivedChunks,
			"total", up.TotalChunks,
		)
		return nil
	}

	if err := s.Uploads.MarkComplete(ctx, uploadID, time.Now().Unix()); err != nil {
		if errors.Is(err, uploads.ErrAlreadySettled) {
			return nil
		}
		return err
	}

	s.Logger.Info("upload complete", "upload_id", uploadID, "chunks", up.ReceivedChunks)
	return nil
}

// handleScore patches a derived score onto its source reading and re-runs
// evaluation for that metric. Score delivery is best effort: the reading it
// targets may have expired, which is logged and swallowed.
func (s *Service) handleScore(ctx context.Context, deviceID string, envelope models.Envelope) error {
	score, _ := envelope.Payload["score"].(float64)
	metric, _ := envelope.Payload["metric"].(string)

	if err := s.Readings.UpdateScore(ctx, deviceID, envelope.Timestamp, metric, score); err != nil {
		s.Logger.Warn("failed to attach score to reading",
			"device_id", deviceID,
			"metric", metric,
			"score", models.FormatPercent(score),
			"error", err,
		)
		return nil
	}

	if devices.IsSynthetic(deviceID) {
		return nil
	}

	// Reload the patched reading so rules that pair the score with the
	// reading's other metrics see them all.
	stored, err := s.Readings.GetReading(ctx, deviceID, envelope.Timestamp)
	if err != nil {
		s.Logger.Error("failed to reload scored reading", "device_id", deviceID, "error", err)
	}

	return s.evaluateAndNotify(ctx, scoredReading(stored, deviceID, envelope.SessionID, envelope.Timestamp, metric, score))
}

// scoredReading merges a derived score into its stored source reading. The
// fallback single-metric reading covers a reading that expired between the
// patch and the reload.
func scoredReading(stored *models.Reading, deviceID, sessionID string, timestamp int64, metric string, value float64) models.Reading {
	if stored == nil {
		return models.Reading{
			DeviceID:  deviceID,
			SessionID: sessionID,
			Timestamp: timestamp,
			Metrics:   map[string]float64{metric: value},
		}
	}

	if stored.Metrics == nil {
		stored.Metrics = make(map[string]float64, 1)
	}
	stored.Metrics[metric] = value
	return *stored
}

func toMetrics(payload map[string]interface{}) (map[string]float64, bool) {
	metrics := make(map[string]float64, len(payload))
	for name, v := range payload {
		f, ok := v.(float64)
		if !ok {
			return nil, false
		}
		metrics[name] = f
	}
	return metrics, true
}

func (s *Service) logValidationError(err error, deviceID string) {
	switch {
	case errors.Is(err, validation.ErrInvalidEvent), errors.Is(err, validation.ErrInvalidEnvelope):
		s.Logger.Warn("invalid message envelope", "error", err)
	case errors.Is(err, validation.ErrInvalidPayload):
		s.Logger.Warn("invalid payload", "device_id", deviceID, "error", err)
	case errors.Is(err, validation.ErrInvalidTopic):
		s.Logger.Warn("invalid topic", "error", err)
	default:
		s.Logger.Error("unexpected validation error", "error", err)
	}
}

package validation_test

import (
	"errors"
	"testing"

	"github.com/BrainlyTree-Project/Backend/internal/validation"
)

func event(topic string, payload interface{}) map[string]interface{} {
	return map[string]interface{}{"topic": topic, "payload": payload}
}

func readingsPayload() map[string]interface{} {
	return map[string]interface{}{
		"device_id": "b8:f8:62:f9:cf:b8",
		"timestamp": float64(1700000000),
		"payload": map[string]interface{}{
			"moisture":    41.5,
			"battery_pct": 87.0,
		},
	}
}

func TestValidateMessageReadings(t *testing.T) {
	deviceID, kind, envelope, isBatch, err := validation.ValidateMessage(
		event("devices/b8:f8:62:f9:cf:b8/readings", readingsPayload()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if deviceID != "B8F862F9CFB8" {
		t.Errorf("expected normalized device id, got %q", deviceID)
	}
	if kind != "readings" {
		t.Errorf("expected kind readings, got %q", kind)
	}
	if isBatch {
		t.Error("single payload must not be flagged as batch")
	}
	if envelope.Payload["moisture"] != 41.5 {
		t.Errorf("payload lost in decoding: %v", envelope.Payload)
	}
}

func TestValidateMessageBatch(t *testing.T) {
	payload := map[string]interface{}{
		"device_id": "B8F862F9CFB8",
		"timestamp": float64(1700000000),
		"readings": []interface{}{
			map[string]interface{}{
				"timestamp": float64(1699990000),
				"payload":   map[string]interface{}{"moisture": 40.0},
			},
			map[string]interface{}{
				"timestamp": float64(1699995000),
				"payload":   map[string]interface{}{"moisture": 41.0},
			},
		},
	}

	_, _, envelope, isBatch, err := validation.ValidateMessage(
		event("devices/B8F862F9CFB8/readings", payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !isBatch {
		t.Error("expected batch detection")
	}
	if len(envelope.Readings) != 2 {
		t.Errorf("expected 2 readings, got %d", len(envelope.Readings))
	}
}

func TestValidateMessageTopicErrors(t *testing.T) {
	cases := []struct {
		name  string
		topic string
	}{
		{"wrong root", "things/B8F862F9CFB8/readings"},
		{"too short", "devices/B8F862F9CFB8"},
		{"too long", "devices/B8F862F9CFB8/readings/extra"},
		{"unknown kind", "devices/B8F862F9CFB8/selfies"},
		{"bad address", "devices/not-hex!/readings"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, _, err := validation.ValidateMessage(event(tc.topic, readingsPayload()))
			if !errors.Is(err, validation.ErrInvalidTopic) {
				t.Errorf("expected ErrInvalidTopic, got %v", err)
			}
		})
	}
}

func TestValidateMessageEnvelopeErrors(t *testing.T) {
	missingID := readingsPayload()
	delete(missingID, "device_id")

	mismatched := readingsPayload()
	mismatched["device_id"] = "AA:BB:CC:DD:EE:FF"

	future := readingsPayload()
	future["timestamp"] = float64(9999999999)

	cases := []struct {
		name    string
		payload interface{}
	}{
		{"missing device_id", missingID},
		{"device_id mismatch", mismatched},
		{"future timestamp", future},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, _, err := validation.ValidateMessage(event("devices/B8F862F9CFB8/readings", tc.payload))
			if !errors.Is(err, validation.ErrInvalidEnvelope) {
				t.Errorf("expected ErrInvalidEnvelope, got %v", err)
			}
		})
	}
}

func TestValidateMessageMissingEventFields(t *testing.T) {
	if _, _, _, _, err := validation.ValidateMessage(map[string]interface{}{"payload": readingsPayload()}); !errors.Is(err, validation.ErrInvalidEvent) {
		t.Errorf("missing topic: expected ErrInvalidEvent, got %v", err)
	}
	if _, _, _, _, err := validation.ValidateMessage(map[string]interface{}{"topic": "devices/B8F862F9CFB8/readings"}); !errors.Is(err, validation.ErrInvalidEvent) {
		t.Errorf("missing payload: expected ErrInvalidEvent, got %v", err)
	}
}

func TestValidateMessageImagePhases(t *testing.T) {
	base := func(payload map[string]interface{}) map[string]interface{} {
		return map[string]interface{}{
			"device_id": "B8F862F9CFB8",
			"timestamp": float64(1700000000),
			"payload":   payload,
		}
	}

	ok := []map[string]interface{}{
		{"phase": "metadata", "image_name": "leaf.jpg", "total_chunks": float64(12)},
		{"phase": "chunk", "upload_id": "up-1", "chunk_index": float64(3)},
		{"phase": "complete", "upload_id": "up-1"},
	}
	for _, payload := range ok {
		if _, _, _, _, err := validation.ValidateMessage(event("devices/B8F862F9CFB8/image", base(payload))); err != nil {
			t.Errorf("phase %v: unexpected error: %v", payload["phase"], err)
		}
	}

	bad := []map[string]interface{}{
		{"phase": "metadata", "total_chunks": float64(12)},
		{"phase": "metadata", "image_name": "leaf.jpg"},
		{"phase": "chunk", "chunk_index": float64(3)},
		{"phase": "teleport", "upload_id": "up-1"},
		{"image_name": "leaf.jpg"},
	}
	for _, payload := range bad {
		if _, _, _, _, err := validation.ValidateMessage(event("devices/B8F862F9CFB8/image", base(payload))); !errors.Is(err, validation.ErrInvalidPayload) {
			t.Errorf("payload %v: expected ErrInvalidPayload, got %v", payload, err)
		}
	}
}

func TestValidateMessageScore(t *testing.T) {
	base := func(payload map[string]interface{}) map[string]interface{} {
		return map[string]interface{}{
			"device_id": "B8F862F9CFB8",
			"timestamp": float64(1700000000),
			"payload":   payload,
		}
	}

	if _, _, _, _, err := validation.ValidateMessage(
		event("devices/B8F862F9CFB8/score", base(map[string]interface{}{"metric": "growth_index", "score": 0.42}))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := []map[string]interface{}{
		{"metric": "growth_index", "score": 1.5},
		{"metric": "growth_index", "score": -0.1},
		{"metric": "growth_index"},
		{"score": 0.42},
	}
	for _, payload := range bad {
		if _, _, _, _, err := validation.ValidateMessage(event("devices/B8F862F9CFB8/score", base(payload))); !errors.Is(err, validation.ErrInvalidPayload) {
			t.Errorf("payload %v: expected ErrInvalidPayload, got %v", payload, err)
		}
	}
}

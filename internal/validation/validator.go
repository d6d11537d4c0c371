package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BrainlyTree-Project/Backend/internal/devices"
	"github.com/BrainlyTree-Project/Backend/models"
)

var (
	ErrInvalidEvent    = errors.New("invalid event")
	ErrInvalidTopic    = errors.New("invalid topic")
	ErrInvalidEnvelope = errors.New("invalid envelope")
	ErrInvalidPayload  = errors.New("invalid payload")
)

const maxPayloadBytes = 32 * 1024

// ValidateMessage checks an incoming bridged MQTT message end to end and
// returns the normalized hardware address, the message kind from the topic,
// the decoded envelope, and whether the envelope carries a readings batch.
func ValidateMessage(event map[string]interface{}) (
	hardwareAddr string,
	kind string,
	envelope models.Envelope,
	isBatch bool,
	err error,
) {
	topic, payloadRaw, err := validateEvent(event)
	if err != nil {
		return "", "", envelope, false, err
	}

	hardwareAddr, kind, err = validateTopic(topic)
	if err != nil {
		return "", "", envelope, false, err
	}

	if err := decodeEnvelope(payloadRaw, &envelope); err != nil {
		return "", "", envelope, false, err
	}

	if err := validateEnvelope(envelope, hardwareAddr); err != nil {
		return "", "", envelope, false, err
	}

	isBatch = len(envelope.Readings) > 0

	switch kind {
	case "readings":
		if err := validateReadings(envelope, isBatch); err != nil {
			return "", "", envelope, false, err
		}
	case "image":
		if err := validateImage(envelope); err != nil {
			return "", "", envelope, false, err
		}
	case "score":
		if err := validateScore(envelope); err != nil {
			return "", "", envelope, false, err
		}
	}

	return hardwareAddr, kind, envelope, isBatch, nil
}

func validateEvent(event map[string]interface{}) (string, interface{}, error) {
	topic, ok := event["topic"].(string)
	if !ok || topic == "" {
		return "", nil, fmt.Errorf("%w: missing or invalid topic", ErrInvalidEvent)
	}

	payload, ok := event["payload"]
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload", ErrInvalidEvent)
	}

	return topic, payload, nil
}

func validateTopic(topic string) (string, string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 {
		return "", "", fmt.Errorf("%w: expected devices/{hardware_addr}/{kind}", ErrInvalidTopic)
	}

	if parts[0] != "devices" {
		return "", "", fmt.Errorf("%w: invalid topic root", ErrInvalidTopic)
	}

	addr, err := devices.NormalizeHardwareAddr(parts[1])
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidTopic, err)
	}

	kind := parts[2]
	switch kind {
	case "readings", "image", "score":
		return addr, kind, nil
	default:
		return "", "", fmt.Errorf("%w: unsupported message kind", ErrInvalidTopic)
	}
}

func decodeEnvelope(payloadRaw interface{}, env *models.Envelope) error {
	raw, err := json.Marshal(payloadRaw)
	if err != nil {
		return fmt.Errorf("%w: payload marshal failed", ErrInvalidEnvelope)
	}
	if len(raw) > maxPayloadBytes {
		return fmt.Errorf("%w: payload too large", ErrInvalidPayload)
	}

	if err := json.Unmarshal(raw, env); err != nil {
		return fmt.Errorf("%w: payload unmarshal failed", ErrInvalidEnvelope)
	}

	return nil
}

func validateEnvelope(env models.Envelope, topicAddr string) error {
	if env.DeviceID == "" {
		return fmt.Errorf("%w: missing device_id", ErrInvalidEnvelope)
	}

	addr, err := devices.NormalizeHardwareAddr(env.DeviceID)
	if err != nil {
		return fmt.Errorf("%w: malformed device_id", ErrInvalidEnvelope)
	}
	if addr != topicAddr {
		return fmt.Errorf("%w: device_id does not match topic", ErrInvalidEnvelope)
	}

	if env.Timestamp <= 0 {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidEnvelope)
	}
	if env.Timestamp > time.Now().Unix()+60 {
		return fmt.Errorf("%w: timestamp in the future", ErrInvalidEnvelope)
	}

	return nil
}

func validateReadings(env models.Envelope, isBatch bool) error {
	if isBatch {
		for _, r := range env.Readings {
			if len(r.Payload) == 0 {
				return fmt.Errorf("%w: empty reading in batch", ErrInvalidPayload)
			}
		}
		return nil
	}

	if len(env.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	for name, v := range env.Payload {
		if _, ok := v.(float64); !ok {
			return fmt.Errorf("%w: metric %q is not numeric", ErrInvalidPayload, name)
		}
	}

	return nil
}

func validateImage(env models.Envelope) error {
	phase, ok := env.Payload["phase"].(string)
	if !ok || phase == "" {
		return fmt.Errorf("%w: image message missing phase", ErrInvalidPayload)
	}

	switch phase {
	case "metadata":
		name, _ := env.Payload["image_name"].(string)
		if name == "" {
			return fmt.Errorf("%w: metadata missing image_name", ErrInvalidPayload)
		}
		total, ok := env.Payload["total_chunks"].(float64)
		if !ok || total < 1 {
			return fmt.Errorf("%w: metadata missing total_chunks", ErrInvalidPayload)
		}
	case "chunk":
		idx, ok := env.Payload["chunk_index"].(float64)
		if !ok || idx < 0 {
			return fmt.Errorf("%w: chunk missing chunk_index", ErrInvalidPayload)
		}
	case "complete":
	default:
		return fmt.Errorf("%w: unknown image phase %q", ErrInvalidPayload, phase)
	}

	if phase != "metadata" {
		if id, _ := env.Payload["upload_id"].(string); id == "" {
			return fmt.Errorf("%w: image message missing upload_id", ErrInvalidPayload)
		}
	}

	return nil
}

func validateScore(env models.Envelope) error {
	score, ok := env.Payload["score"].(float64)
	if !ok {
		return fmt.Errorf("%w: score message missing score", ErrInvalidPayload)
	}
	if score < 0 || score > 1 {
		return fmt.Errorf("%w: score out of range", ErrInvalidPayload)
	}
	if metric, _ := env.Payload["metric"].(string); metric == "" {
		return fmt.Errorf("%w: score message missing metric", ErrInvalidPayload)
	}

	return nil
}

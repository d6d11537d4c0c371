package ingestion

import (
	"testing"

	"github.com/BrainlyTree-Project/Backend/models"
)

func TestScoredReadingMergesStoredMetrics(t *testing.T) {
	stored := &models.Reading{
		DeviceID:  "dev-1",
		SessionID: "sess-9",
		Timestamp: 1700000000,
		Metrics: map[string]float64{
			"moisture":    0.61,
			"temperature": 0.44,
		},
	}

	got := scoredReading(stored, "dev-1", "", 1700000000, "growth_score", 0.42)

	if len(got.Metrics) != 3 {
		t.Fatalf("merged metrics = %v, want moisture, temperature and growth_score", got.Metrics)
	}
	if got.Metrics["growth_score"] != 0.42 {
		t.Errorf("growth_score = %v, want 0.42", got.Metrics["growth_score"])
	}
	if got.Metrics["moisture"] != 0.61 || got.Metrics["temperature"] != 0.44 {
		t.Errorf("stored metrics lost in merge: %v", got.Metrics)
	}
	if got.SessionID != "sess-9" {
		t.Errorf("session id = %q, want the stored reading's %q", got.SessionID, "sess-9")
	}
}

func TestScoredReadingFallsBackWhenReadingGone(t *testing.T) {
	got := scoredReading(nil, "dev-1", "sess-9", 1700000000, "growth_score", 0.42)

	if got.DeviceID != "dev-1" || got.Timestamp != 1700000000 || got.SessionID != "sess-9" {
		t.Fatalf("fallback reading identity = %+v", got)
	}
	if len(got.Metrics) != 1 || got.Metrics["growth_score"] != 0.42 {
		t.Fatalf("fallback metrics = %v, want only growth_score=0.42", got.Metrics)
	}
}

func TestScoredReadingHandlesNilMetricMap(t *testing.T) {
	stored := &models.Reading{DeviceID: "dev-1", Timestamp: 1700000000}

	got := scoredReading(stored, "dev-1", "", 1700000000, "growth_score", 0.1)

	if got.Metrics["growth_score"] != 0.1 {
		t.Fatalf("metrics = %v, want growth_score=0.1", got.Metrics)
	}
}

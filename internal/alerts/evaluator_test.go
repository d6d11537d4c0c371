package alerts_test

import (
	"reflect"
	"testing"

	"github.com/BrainlyTree-Project/Backend/internal/alerts"
	"github.com/BrainlyTree-Project/Backend/models"
)

func fptr(v float64) *float64 { return &v }

func baseDevice() *models.Device {
	return &models.Device{
		DeviceID:  "B8F862F9CFB8",
		CompanyID: "acme",
		SiteID:    "greenhouse-7",
	}
}

func reading(ts int64, metrics map[string]float64) models.Reading {
	return models.Reading{
		DeviceID:  "B8F862F9CFB8",
		SessionID: "session-1",
		Timestamp: ts,
		Metrics:   metrics,
	}
}

func absoluteConfig(metric string, warnMax, critMax float64) *models.ThresholdConfig {
	return &models.ThresholdConfig{
		CompanyID: "acme",
		Metrics: map[string]models.MetricThresholds{
			metric: {
				Absolute: &models.RangeBounds{
					WarningMax:  fptr(warnMax),
					CriticalMax: fptr(critMax),
				},
			},
		},
	}
}

func TestAbsoluteThresholds(t *testing.T) {
	cfg := absoluteConfig("growth_index", 0.25, 0.40)

	cases := []struct {
		name     string
		value    float64
		severity string
		count    int
	}{
		{"above critical", 0.42, models.SeverityCritical, 1},
		{"above warning only", 0.30, models.SeverityWarning, 1},
		{"within bounds", 0.10, "", 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := alerts.Evaluate(alerts.EvalInput{
				Device:  baseDevice(),
				Reading: reading(1000, map[string]float64{"growth_index": tc.value}),
				Config:  cfg,
			})

			if len(got) != tc.count {
				t.Fatalf("expected %d alerts, got %d", tc.count, len(got))
			}
			if tc.count == 0 {
				return
			}
			if got[0].Severity != tc.severity {
				t.Errorf("expected severity %s, got %s", tc.severity, got[0].Severity)
			}
			if got[0].Category != models.CategoryAbsolute {
				t.Errorf("expected absolute category, got %s", got[0].Category)
			}
			if got[0].CompanyID != "acme" || got[0].SiteID != "greenhouse-7" {
				t.Errorf("alert should carry device routing fields, got %q / %q", got[0].CompanyID, got[0].SiteID)
			}
		})
	}
}

func TestAbsoluteTieResolvesToCritical(t *testing.T) {
	// Warning and critical max set to the same bound: crossing both at once
	// must yield the more severe category.
	cfg := absoluteConfig("growth_index", 0.40, 0.40)

	got := alerts.Evaluate(alerts.EvalInput{
		Device:  baseDevice(),
		Reading: reading(1000, map[string]float64{"growth_index": 0.50}),
		Config:  cfg,
	})

	if len(got) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(got))
	}
	if got[0].Severity != models.SeverityCritical {
		t.Errorf("tie should resolve to critical, got %s", got[0].Severity)
	}
}

func TestVelocityClassification(t *testing.T) {
	bounds := models.VelocityBounds{Normal: 0.05, Elevated: 0.08, High: 0.16}

	cases := []struct {
		magnitude float64
		class     string
		severity  string
	}{
		{0.03, alerts.VelocitySmall, ""},
		{0.05, alerts.VelocitySmall, ""},
		{0.07, alerts.VelocityElevated, models.SeverityWarning},
		{0.12, alerts.VelocityLarge, models.SeverityError},
		{0.16, alerts.VelocityLarge, models.SeverityError},
		{0.17, alerts.VelocityVeryLarge, models.SeverityCritical},
	}

	for _, tc := range cases {
		class, severity := alerts.ClassifyVelocity(tc.magnitude, bounds)
		if class != tc.class || severity != tc.severity {
			t.Errorf("magnitude %.2f: expected (%s, %q), got (%s, %q)",
				tc.magnitude, tc.class, tc.severity, class, severity)
		}
	}
}

func TestVelocityAlertUsesMagnitude(t *testing.T) {
	cfg := &models.ThresholdConfig{
		CompanyID: "acme",
		Metrics: map[string]models.MetricThresholds{
			"growth_index": {
				Velocity: &models.VelocityBounds{Normal: 0.05, Elevated: 0.08, High: 0.16},
			},
		},
	}

	prev := reading(1000, map[string]float64{"growth_index": 0.50})

	// A drop of 0.17 is classified the same as a rise of 0.17.
	got := alerts.Evaluate(alerts.EvalInput{
		Device:   baseDevice(),
		Reading:  reading(2000, map[string]float64{"growth_index": 0.33}),
		Previous: &prev,
		Config:   cfg,
	})

	if len(got) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(got))
	}
	if got[0].Category != models.CategoryVelocity {
		t.Errorf("expected velocity category, got %s", got[0].Category)
	}
	if got[0].Severity != models.SeverityCritical {
		t.Errorf("expected critical for very_large change, got %s", got[0].Severity)
	}
}

func TestShiftRequiresSameSession(t *testing.T) {
	cfg := &models.ThresholdConfig{
		CompanyID: "acme",
		Metrics: map[string]models.MetricThresholds{
			"moisture": {
				Shift: &models.RangeBounds{WarningMax: fptr(5.0)},
			},
		},
	}

	prev := reading(1000, map[string]float64{"moisture": 40})
	curr := reading(2000, map[string]float64{"moisture": 50})

	got := alerts.Evaluate(alerts.EvalInput{
		Device: baseDevice(), Reading: curr, Previous: &prev, Config: cfg,
	})
	if len(got) != 1 || got[0].Category != models.CategoryShift {
		t.Fatalf("expected one shift alert within session, got %v", got)
	}

	// Previous reading from a different session: no baseline, no shift alert.
	prev.SessionID = "session-0"
	got = alerts.Evaluate(alerts.EvalInput{
		Device: baseDevice(), Reading: curr, Previous: &prev, Config: cfg,
	})
	if len(got) != 0 {
		t.Fatalf("expected no alerts across sessions, got %d", len(got))
	}
}

func TestSpeedNormalization(t *testing.T) {
	cfg := &models.ThresholdConfig{
		CompanyID: "acme",
		Metrics: map[string]models.MetricThresholds{
			"trunk_diameter": {
				Speed: &models.SpeedBounds{
					WarningPerDay:  fptr(1.0),
					CriticalPerDay: fptr(3.0),
				},
			},
		},
	}

	prev := reading(0, map[string]float64{"trunk_diameter": 10})

	// 2.0 over half a day is 4.0/day: above critical.
	got := alerts.Evaluate(alerts.EvalInput{
		Device:   baseDevice(),
		Reading:  reading(43200, map[string]float64{"trunk_diameter": 12}),
		Previous: &prev,
		Config:   cfg,
	})
	if len(got) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(got))
	}
	if got[0].Category != models.CategorySpeed || got[0].Severity != models.SeverityCritical {
		t.Errorf("expected critical speed alert, got %s/%s", got[0].Category, got[0].Severity)
	}

	// Same delta over two days is 1.0/day: at the warning bound, not above.
	got = alerts.Evaluate(alerts.EvalInput{
		Device:   baseDevice(),
		Reading:  reading(172800, map[string]float64{"trunk_diameter": 12}),
		Previous: &prev,
		Config:   cfg,
	})
	if len(got) != 0 {
		t.Fatalf("expected no alert at the bound, got %d", len(got))
	}
}

func TestSpeedIgnoresNonPositiveElapsed(t *testing.T) {
	cfg := &models.ThresholdConfig{
		CompanyID: "acme",
		Metrics: map[string]models.MetricThresholds{
			"trunk_diameter": {
				Speed: &models.SpeedBounds{WarningPerDay: fptr(0.1)},
			},
		},
	}

	prev := reading(2000, map[string]float64{"trunk_diameter": 10})
	got := alerts.Evaluate(alerts.EvalInput{
		Device:   baseDevice(),
		Reading:  reading(2000, map[string]float64{"trunk_diameter": 99}),
		Previous: &prev,
		Config:   cfg,
	})

	if len(got) != 0 {
		t.Fatalf("zero elapsed must not divide, got %d alerts", len(got))
	}
}

func combinationConfig() *models.ThresholdConfig {
	return &models.ThresholdConfig{
		CompanyID: "acme",
		Metrics: map[string]models.MetricThresholds{
			"temperature": {Absolute: &models.RangeBounds{WarningMax: fptr(35.0)}},
			"humidity":    {Absolute: &models.RangeBounds{WarningMax: fptr(90.0)}},
		},
		Combinations: []models.CombinationRule{{
			Name:     "heat_stress",
			MetricA:  "temperature",
			MetricB:  "humidity",
			WarningA: 30, WarningB: 80,
			CriticalA: 33, CriticalB: 85,
		}},
	}
}

func TestCombinationBelowStandaloneThresholds(t *testing.T) {
	// Neither metric crosses its own absolute bound but both exceed the joint
	// warning pair.
	got := alerts.Evaluate(alerts.EvalInput{
		Device:  baseDevice(),
		Reading: reading(1000, map[string]float64{"temperature": 31, "humidity": 82}),
		Config:  combinationConfig(),
	})

	if len(got) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(got))
	}
	if got[0].Category != models.CategoryCombination || got[0].Severity != models.SeverityWarning {
		t.Errorf("expected warning combination alert, got %s/%s", got[0].Category, got[0].Severity)
	}
}

func TestCombinationSuppressedByAbsolute(t *testing.T) {
	// Temperature fires its own absolute alert; the combination for the same
	// pair must not double-fire in the same cycle.
	got := alerts.Evaluate(alerts.EvalInput{
		Device:  baseDevice(),
		Reading: reading(1000, map[string]float64{"temperature": 36, "humidity": 86}),
		Config:  combinationConfig(),
	})

	if len(got) != 1 {
		t.Fatalf("expected only the absolute alert, got %d", len(got))
	}
	if got[0].Category != models.CategoryAbsolute {
		t.Errorf("expected absolute category, got %s", got[0].Category)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	cfg := &models.ThresholdConfig{
		CompanyID: "acme",
		Metrics: map[string]models.MetricThresholds{
			"a": {Absolute: &models.RangeBounds{WarningMax: fptr(1.0)}},
			"b": {Absolute: &models.RangeBounds{WarningMax: fptr(1.0)}},
			"c": {Absolute: &models.RangeBounds{WarningMax: fptr(1.0)}},
		},
	}
	in := alerts.EvalInput{
		Device:  baseDevice(),
		Reading: reading(1000, map[string]float64{"a": 2, "b": 2, "c": 2}),
		Config:  cfg,
	}

	first := alerts.Evaluate(in)
	for i := 0; i < 10; i++ {
		if got := alerts.Evaluate(in); !reflect.DeepEqual(got, first) {
			t.Fatalf("evaluation order changed between runs: %v vs %v", got, first)
		}
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 alerts, got %d", len(first))
	}
	if first[0].Metric != "a" || first[1].Metric != "b" || first[2].Metric != "c" {
		t.Errorf("expected sorted metric order, got %s %s %s", first[0].Metric, first[1].Metric, first[2].Metric)
	}
}

func TestEvaluateNoConfigNoMetrics(t *testing.T) {
	if got := alerts.Evaluate(alerts.EvalInput{Device: baseDevice(), Reading: reading(1, map[string]float64{"x": 1})}); got != nil {
		t.Errorf("nil config should yield nil, got %v", got)
	}

	cfg := absoluteConfig("x", 1, 2)
	if got := alerts.Evaluate(alerts.EvalInput{Device: baseDevice(), Reading: reading(1, nil), Config: cfg}); got != nil {
		t.Errorf("empty metrics should yield nil, got %v", got)
	}
}

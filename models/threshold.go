package models

// RangeBounds holds warning/critical min/max pairs for one check. Nil means
// the bound is not configured. Bounds are stored in the same unit as the
// underlying metric; score-like metrics are [0,1] fractions.
type RangeBounds struct {
	WarningMin  *float64 `json:"warning_min,omitempty" dynamodbav:"warning_min,omitempty"`
	WarningMax  *float64 `json:"warning_max,omitempty" dynamodbav:"warning_max,omitempty"`
	CriticalMin *float64 `json:"critical_min,omitempty" dynamodbav:"critical_min,omitempty"`
	CriticalMax *float64 `json:"critical_max,omitempty" dynamodbav:"critical_max,omitempty"`
}

// VelocityBounds classifies the per-reading change magnitude of a bounded
// index: <=Normal is small, <=Elevated is elevated, <=High is large and
// anything above High is very_large.
type VelocityBounds struct {
	Normal   float64 `json:"normal" dynamodbav:"normal"`
	Elevated float64 `json:"elevated" dynamodbav:"elevated"`
	High     float64 `json:"high" dynamodbav:"high"`
}

// SpeedBounds limits the rate of change normalized to per-day / per-week.
type SpeedBounds struct {
	WarningPerDay   *float64 `json:"warning_per_day,omitempty" dynamodbav:"warning_per_day,omitempty"`
	CriticalPerDay  *float64 `json:"critical_per_day,omitempty" dynamodbav:"critical_per_day,omitempty"`
	WarningPerWeek  *float64 `json:"warning_per_week,omitempty" dynamodbav:"warning_per_week,omitempty"`
	CriticalPerWeek *float64 `json:"critical_per_week,omitempty" dynamodbav:"critical_per_week,omitempty"`
}

// MetricThresholds gathers every configured check for one metric.
type MetricThresholds struct {
	Absolute *RangeBounds    `json:"absolute,omitempty" dynamodbav:"absolute,omitempty"`
	Shift    *RangeBounds    `json:"shift,omitempty" dynamodbav:"shift,omitempty"`
	Velocity *VelocityBounds `json:"velocity,omitempty" dynamodbav:"velocity,omitempty"`
	Speed    *SpeedBounds    `json:"speed,omitempty" dynamodbav:"speed,omitempty"`
}

// CombinationRule triggers when two metrics jointly exceed limits lower than
// either metric's standalone threshold.
type CombinationRule struct {
	Name      string  `json:"name" dynamodbav:"name"`
	MetricA   string  `json:"metric_a" dynamodbav:"metric_a"`
	MetricB   string  `json:"metric_b" dynamodbav:"metric_b"`
	WarningA  float64 `json:"warning_a" dynamodbav:"warning_a"`
	WarningB  float64 `json:"warning_b" dynamodbav:"warning_b"`
	CriticalA float64 `json:"critical_a" dynamodbav:"critical_a"`
	CriticalB float64 `json:"critical_b" dynamodbav:"critical_b"`
}

// ThresholdConfig is keyed by company with an optional per-device override.
// A device-specific row wins over the company default. The evaluation engine
// treats a loaded config as an immutable snapshot.
type ThresholdConfig struct {
	CompanyID    string                      `json:"company_id" dynamodbav:"company_id"`
	DeviceID     string                      `json:"device_id" dynamodbav:"device_id"` // "DEFAULT" for the company row
	Metrics      map[string]MetricThresholds `json:"metrics" dynamodbav:"metrics"`
	Combinations []CombinationRule           `json:"combinations,omitempty" dynamodbav:"combinations,omitempty"`
	UpdatedAt    int64                       `json:"updated_at" dynamodbav:"updated_at"`
}

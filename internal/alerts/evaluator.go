package alerts

import (
	"fmt"
	"math"
	"sort"

	"github.com/BrainlyTree-Project/Backend/models"
)

const (
	secondsPerDay  = 86400.0
	secondsPerWeek = 7 * secondsPerDay
)

// Velocity classes for the per-reading change magnitude of a bounded index.
const (
	VelocitySmall     = "small"
	VelocityElevated  = "elevated"
	VelocityLarge     = "large"
	VelocityVeryLarge = "very_large"
)

// EvalInput is everything one evaluation needs. The engine is pure: the same
// reading against the same threshold snapshot always yields the same alerts.
type EvalInput struct {
	Device   *models.Device
	Reading  models.Reading
	Previous *models.Reading
	Config   *models.ThresholdConfig
}

// Evaluate runs the independent rule checks for every configured metric.
// Each check produces at most one alert per reading. Critical bounds are
// checked first and win when both match; ties between equal warning and
// critical bounds resolve to the more severe category for the same reason.
func Evaluate(in EvalInput) []models.Alert {
	if in.Config == nil || len(in.Reading.Metrics) == 0 {
		return nil
	}

	var out []models.Alert
	absoluteFired := make(map[string]bool)

	// Deterministic ordering regardless of map iteration.
	metrics := make([]string, 0, len(in.Config.Metrics))
	for name := range in.Config.Metrics {
		metrics = append(metrics, name)
	}
	sort.Strings(metrics)

	for _, metric := range metrics {
		value, ok := in.Reading.Metrics[metric]
		if !ok {
			continue
		}
		cfg := in.Config.Metrics[metric]

		if a := checkAbsolute(in, metric, value, cfg.Absolute); a != nil {
			absoluteFired[metric] = true
			out = append(out, *a)
		}
		if a := checkShift(in, metric, value, cfg.Shift); a != nil {
			out = append(out, *a)
		}
		if a := checkVelocity(in, metric, value, cfg.Velocity); a != nil {
			out = append(out, *a)
		}
		if a := checkSpeed(in, metric, value, cfg.Speed); a != nil {
			out = append(out, *a)
		}
	}

	for _, rule := range in.Config.Combinations {
		// An absolute alert for either member already covers the condition;
		// do not double-fire the pair in the same cycle.
		if absoluteFired[rule.MetricA] || absoluteFired[rule.MetricB] {
			continue
		}
		if a := checkCombination(in, rule); a != nil {
			out = append(out, *a)
		}
	}

	return out
}

func checkAbsolute(in EvalInput, metric string, value float64, b *models.RangeBounds) *models.Alert {
	if b == nil {
		return nil
	}

	switch {
	case b.CriticalMax != nil && value > *b.CriticalMax:
		return newAlert(in, models.CategoryAbsolute, models.SeverityCritical, metric, value, *b.CriticalMax,
			fmt.Sprintf("%s %.3f above critical limit %.3f", metric, value, *b.CriticalMax))
	case b.CriticalMin != nil && value < *b.CriticalMin:
		return newAlert(in, models.CategoryAbsolute, models.SeverityCritical, metric, value, *b.CriticalMin,
			fmt.Sprintf("%s %.3f below critical limit %.3f", metric, value, *b.CriticalMin))
	case b.WarningMax != nil && value > *b.WarningMax:
		return newAlert(in, models.CategoryAbsolute, models.SeverityWarning, metric, value, *b.WarningMax,
			fmt.Sprintf("%s %.3f above warning limit %.3f", metric, value, *b.WarningMax))
	case b.WarningMin != nil && value < *b.WarningMin:
		return newAlert(in, models.CategoryAbsolute, models.SeverityWarning, metric, value, *b.WarningMin,
			fmt.Sprintf("%s %.3f below warning limit %.3f", metric, value, *b.WarningMin))
	}

	return nil
}

func checkShift(in EvalInput, metric string, value float64, b *models.RangeBounds) *models.Alert {
	if b == nil || in.Previous == nil || in.Previous.SessionID != in.Reading.SessionID {
		return nil
	}

	prev, ok := in.Previous.Metrics[metric]
	if !ok {
		return nil
	}
	delta := value - prev

	switch {
	case b.CriticalMax != nil && delta > *b.CriticalMax:
		return newAlert(in, models.CategoryShift, models.SeverityCritical, metric, delta, *b.CriticalMax,
			fmt.Sprintf("%s shifted %+.3f, above critical limit %.3f", metric, delta, *b.CriticalMax))
	case b.CriticalMin != nil && delta < *b.CriticalMin:
		return newAlert(in, models.CategoryShift, models.SeverityCritical, metric, delta, *b.CriticalMin,
			fmt.Sprintf("%s shifted %+.3f, below critical limit %.3f", metric, delta, *b.CriticalMin))
	case b.WarningMax != nil && delta > *b.WarningMax:
		return newAlert(in, models.CategoryShift, models.SeverityWarning, metric, delta, *b.WarningMax,
			fmt.Sprintf("%s shifted %+.3f, above warning limit %.3f", metric, delta, *b.WarningMax))
	case b.WarningMin != nil && delta < *b.WarningMin:
		return newAlert(in, models.CategoryShift, models.SeverityWarning, metric, delta, *b.WarningMin,
			fmt.Sprintf("%s shifted %+.3f, below warning limit %.3f", metric, delta, *b.WarningMin))
	}

	return nil
}

// ClassifyVelocity buckets a change magnitude. Direction-agnostic: callers
// pass the absolute value.
func ClassifyVelocity(magnitude float64, b models.VelocityBounds) (class, severity string) {
	switch {
	case magnitude <= b.Normal:
		return VelocitySmall, ""
	case magnitude <= b.Elevated:
		return VelocityElevated, models.SeverityWarning
	case magnitude <= b.High:
		return VelocityLarge, models.SeverityError
	default:
		return VelocityVeryLarge, models.SeverityCritical
	}
}

func checkVelocity(in EvalInput, metric string, value float64, b *models.VelocityBounds) *models.Alert {
	if b == nil || in.Previous == nil {
		return nil
	}

	prev, ok := in.Previous.Metrics[metric]
	if !ok {
		return nil
	}
	magnitude := math.Abs(value - prev)

	class, severity := ClassifyVelocity(magnitude, *b)
	if severity == "" {
		return nil
	}

	return newAlert(in, models.CategoryVelocity, severity, metric, magnitude, b.Normal,
		fmt.Sprintf("%s velocity %.3f classified %s", metric, magnitude, class))
}

func checkSpeed(in EvalInput, metric string, value float64, b *models.SpeedBounds) *models.Alert {
	if b == nil || in.Previous == nil {
		return nil
	}

	prev, ok := in.Previous.Metrics[metric]
	if !ok {
		return nil
	}

	elapsed := in.Reading.Timestamp - in.Previous.Timestamp
	if elapsed <= 0 {
		return nil
	}

	perDay := math.Abs(value-prev) / (float64(elapsed) / secondsPerDay)
	perWeek := math.Abs(value-prev) / (float64(elapsed) / secondsPerWeek)

	// Most severe crossing wins; per-day and per-week are two views of the
	// same rate, so only one alert is emitted.
	switch {
	case b.CriticalPerDay != nil && perDay > *b.CriticalPerDay:
		return newAlert(in, models.CategorySpeed, models.SeverityCritical, metric, perDay, *b.CriticalPerDay,
			fmt.Sprintf("%s changing %.3f/day, above critical limit %.3f", metric, perDay, *b.CriticalPerDay))
	case b.CriticalPerWeek != nil && perWeek > *b.CriticalPerWeek:
		return newAlert(in, models.CategorySpeed, models.SeverityCritical, metric, perWeek, *b.CriticalPerWeek,
			fmt.Sprintf("%s changing %.3f/week, above critical limit %.3f", metric, perWeek, *b.CriticalPerWeek))
	case b.WarningPerDay != nil && perDay > *b.WarningPerDay:
		return newAlert(in, models.CategorySpeed, models.SeverityWarning, metric, perDay, *b.WarningPerDay,
			fmt.Sprintf("%s changing %.3f/day, above warning limit %.3f", metric, perDay, *b.WarningPerDay))
	case b.WarningPerWeek != nil && perWeek > *b.WarningPerWeek:
		return newAlert(in, models.CategorySpeed, models.SeverityWarning, metric, perWeek, *b.WarningPerWeek,
			fmt.Sprintf("%s changing %.3f/week, above warning limit %.3f", metric, perWeek, *b.WarningPerWeek))
	}

	return nil
}

func checkCombination(in EvalInput, rule models.CombinationRule) *models.Alert {
	va, okA := in.Reading.Metrics[rule.MetricA]
	vb, okB := in.Reading.Metrics[rule.MetricB]
	if !okA || !okB {
		return nil
	}

	// Joint limits sit below either metric's standalone threshold, to catch
	// compounding conditions single-metric rules miss.
	switch {
	case va > rule.CriticalA && vb > rule.CriticalB:
		a := newAlert(in, models.CategoryCombination, models.SeverityCritical, rule.MetricA, va, rule.CriticalA,
			fmt.Sprintf("%s: %s %.3f and %s %.3f jointly above critical limits", rule.Name, rule.MetricA, va, rule.MetricB, vb))
		return a
	case va > rule.WarningA && vb > rule.WarningB:
		a := newAlert(in, models.CategoryCombination, models.SeverityWarning, rule.MetricA, va, rule.WarningA,
			fmt.Sprintf("%s: %s %.3f and %s %.3f jointly above warning limits", rule.Name, rule.MetricA, va, rule.MetricB, vb))
		return a
	}

	return nil
}

func newAlert(in EvalInput, category, severity, metric string, value, threshold float64, message string) *models.Alert {
	a := &models.Alert{
		DeviceID:   in.Reading.DeviceID,
		Timestamp:  in.Reading.Timestamp,
		SessionID:  in.Reading.SessionID,
		Category:   category,
		Severity:   severity,
		Metric:     metric,
		Message:    message,
		Value:      value,
		Threshold:  threshold,
		Resolution: models.ResolutionUnresolved,
	}
	if in.Device != nil {
		a.CompanyID = in.Device.CompanyID
		a.SiteID = in.Device.SiteID
	}
	return a
}

package devices

import "time"

const (
	HealthHealthy  = "HEALTHY"
	HealthDegraded = "DEGRADED"
	HealthCritical = "CRITICAL"

	StatusOnline  = "ONLINE"
	StatusOffline = "OFFLINE"
)

const (
	batteryDegradedPct = 30.0
	batteryCriticalPct = 15.0
	signalDegradedDBm  = -100.0
	signalCriticalDBm  = -110.0
)

// SummarizeHealth maps the rolling battery/signal counters to a health
// summary. Battery and signal degrade independently; the worse one wins.
func SummarizeHealth(batteryPct, signalDBm float64) string {
	if batteryPct < batteryCriticalPct || signalDBm < signalCriticalDBm {
		return HealthCritical
	}
	if batteryPct < batteryDegradedPct || signalDBm < signalDegradedDBm {
		return HealthDegraded
	}
	return HealthHealthy
}

// ConnectionStatus derives online/offline from the last contact relative to
// the wake interval. A device that missed two consecutive windows is offline.
func ConnectionStatus(lastSeenAt, wakeIntervalSec int64, now time.Time) string {
	if wakeIntervalSec <= 0 {
		return StatusOffline
	}
	if now.Unix()-lastSeenAt > 2*wakeIntervalSec {
		return StatusOffline
	}
	return StatusOnline
}

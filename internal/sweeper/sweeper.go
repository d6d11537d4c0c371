package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/BrainlyTree-Project/Backend/internal/commands"
	"github.com/BrainlyTree-Project/Backend/internal/uploads"
)

// Summary aggregates one scheduled run: overdue uploads settled plus stale
// commands cancelled.
type Summary struct {
	Sweep   uploads.SweepSummary    `json:"sweep"`
	Cleanup commands.CleanupSummary `json:"cleanup"`
}

// Service runs the periodic maintenance pass. It holds no timers of its own;
// the scheduler invokes Run and passes the current time.
type Service struct {
	Monitor *uploads.Monitor
	Cleanup *commands.Cleanup
	Logger  *slog.Logger
}

// Run sweeps overdue uploads first so freshly queued retries are never
// cancelled by the same pass, then cancels commands whose window closed.
func (s *Service) Run(ctx context.Context, now time.Time) (Summary, error) {
	var summary Summary

	sweep, err := s.Monitor.Sweep(ctx, now)
	if err != nil {
		return summary, err
	}
	summary.Sweep = sweep

	cleanup, err := s.Cleanup.CancelExpired(ctx, now)
	if err != nil {
		return summary, err
	}
	summary.Cleanup = cleanup

	s.Logger.Info("maintenance run finished",
		"timed_out", len(sweep.TimedOut),
		"sweep_skipped", sweep.Skipped,
		"sweep_errors", len(sweep.Errors),
		"cancelled", cleanup.Cancelled,
		"cleanup_skipped", cleanup.Skipped,
		"cleanup_errors", len(cleanup.Errors),
	)

	return summary, nil
}

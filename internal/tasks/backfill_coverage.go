package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"
)

// CoverageBackfiller seeds ledger rows for equivalencies that lack one.
type CoverageBackfiller interface {
	BackfillMissing() (int, error)
}

// BackfillCoverageTask seeds coverage records for edges that predate the
// ledger or arrived through a bulk import.
type BackfillCoverageTask struct{}

// Config returns the queue configuration for backfill tasks.
func (t BackfillCoverageTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "backfill_coverage",
		MaxAttempts: 3,
		Backoff:     time.Minute,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// BackfillCoverageProcessor creates a processor function for
// BackfillCoverageTask.
func BackfillCoverageProcessor(backfiller CoverageBackfiller, log *zap.Logger) backlite.QueueProcessor[BackfillCoverageTask] {
	return func(ctx context.Context, task BackfillCoverageTask) error {
		if backfiller == nil {
			return fmt.Errorf("coverage backfiller not configured")
		}

		inserted, err := backfiller.BackfillMissing()
		if err != nil {
			return fmt.Errorf("backfill coverage: %w", err)
		}

		log.Info("backfill coverage task finished", zap.Int("inserted", inserted))
		return nil
	}
}

// NewBackfillCoverageQueue creates a backlite queue for backfill tasks.
func NewBackfillCoverageQueue(backfiller CoverageBackfiller, log *zap.Logger) backlite.Queue {
	return backlite.NewQueue(BackfillCoverageProcessor(backfiller, log))
}

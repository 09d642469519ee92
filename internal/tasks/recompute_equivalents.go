package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"

	"github.com/openlibris/circulate/internal/coverage"
)

// EquivalentsRecomputer runs one coverage pass over the equivalents cache.
type EquivalentsRecomputer interface {
	Run(ctx context.Context) (*coverage.Report, error)
}

// RecomputeEquivalentsTask drains the coverage ledger and rebuilds the
// invalidated closures.
type RecomputeEquivalentsTask struct{}

// Config returns the queue configuration for recompute tasks.
func (t RecomputeEquivalentsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "recompute_equivalents",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     15 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// RecomputeEquivalentsProcessor creates a processor function for
// RecomputeEquivalentsTask.
func RecomputeEquivalentsProcessor(recomputer EquivalentsRecomputer, log *zap.Logger) backlite.QueueProcessor[RecomputeEquivalentsTask] {
	return func(ctx context.Context, task RecomputeEquivalentsTask) error {
		if recomputer == nil {
			return fmt.Errorf("equivalents recomputer not configured")
		}

		report, err := recomputer.Run(ctx)
		if err != nil {
			return fmt.Errorf("recompute equivalents: %w", err)
		}

		log.Info("recompute equivalents task finished",
			zap.Int("records", report.RecordsProcessed),
			zap.Int("succeeded", report.RecordsSucceeded),
			zap.Int("identifiers_rebuilt", report.IdentifiersRebuilt))
		return nil
	}
}

// NewRecomputeEquivalentsQueue creates a backlite queue for recompute tasks.
func NewRecomputeEquivalentsQueue(recomputer EquivalentsRecomputer, log *zap.Logger) backlite.Queue {
	return backlite.NewQueue(RecomputeEquivalentsProcessor(recomputer, log))
}

package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"
)

// WorksReindexer pushes a full document pass into the search index.
type WorksReindexer interface {
	Reindex(ctx context.Context) (int, error)
}

// ReindexWorksTask rebuilds the search index from the catalog and the
// equivalents cache.
type ReindexWorksTask struct{}

// Config returns the queue configuration for reindex tasks.
func (t ReindexWorksTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "reindex_works",
		MaxAttempts: 2,
		Backoff:     5 * time.Minute,
		Timeout:     30 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// ReindexWorksProcessor creates a processor function for ReindexWorksTask.
func ReindexWorksProcessor(reindexer WorksReindexer, log *zap.Logger) backlite.QueueProcessor[ReindexWorksTask] {
	return func(ctx context.Context, task ReindexWorksTask) error {
		if reindexer == nil {
			return fmt.Errorf("works reindexer not configured")
		}

		indexed, err := reindexer.Reindex(ctx)
		if err != nil {
			return fmt.Errorf("reindex works: %w", err)
		}

		log.Info("reindex works task finished", zap.Int("documents", indexed))
		return nil
	}
}

// NewReindexWorksQueue creates a backlite queue for reindex tasks.
func NewReindexWorksQueue(reindexer WorksReindexer, log *zap.Logger) backlite.Queue {
	return backlite.NewQueue(ReindexWorksProcessor(reindexer, log))
}

// Package coverage provides database operations for the equivalency
// coverage ledger: the idempotent work-queue of (equivalency, operation)
// pairs whose closures need (re)computation.
package coverage

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/openlibris/circulate/internal/entities"
)

const inChunkSize = 500

// Repository handles all coverage ledger database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new coverage ledger repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AddFor upserts the ledger row for an (equivalency, operation) pair. An
// existing row is returned unchanged; its status is never reset here. The
// bool reports whether a row was created.
func (r *Repository) AddFor(equivalencyID uint, operation string, status entities.CoverageStatus) (*entities.EquivalencyCoverageRecord, bool, error) {
	if status == "" {
		status = entities.CoverageRegistered
	}

	var record entities.EquivalencyCoverageRecord
	err := r.db.Where("equivalency_id = ? AND operation = ?", equivalencyID, operation).
		First(&record).Error
	if err == nil {
		return &record, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	record = entities.EquivalencyCoverageRecord{
		EquivalencyID: equivalencyID,
		Operation:     operation,
		Status:        status,
		Timestamp:     time.Now(),
	}
	if err := r.db.Create(&record).Error; err != nil {
		return nil, false, err
	}
	return &record, true, nil
}

// BulkAdd inserts ledger rows for every given equivalency that lacks one
// for the operation, chunking inserts at batchSize to bound transaction
// size. Pairs that already have a record are left untouched. Returns the
// number of rows inserted.
func (r *Repository) BulkAdd(equivalencyIDs []uint, operation string, batchSize int, status entities.CoverageStatus) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	if status == "" {
		status = entities.CoverageRegistered
	}

	have := make(map[uint]struct{})
	for _, chunk := range chunkIDs(equivalencyIDs, inChunkSize) {
		var existing []uint
		err := r.db.Model(&entities.EquivalencyCoverageRecord{}).
			Where("equivalency_id IN ? AND operation = ?", chunk, operation).
			Pluck("equivalency_id", &existing).Error
		if err != nil {
			return 0, err
		}
		for _, id := range existing {
			have[id] = struct{}{}
		}
	}

	now := time.Now()
	var records []entities.EquivalencyCoverageRecord
	seen := make(map[uint]struct{}, len(equivalencyIDs))
	for _, id := range equivalencyIDs {
		if _, ok := have[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		records = append(records, entities.EquivalencyCoverageRecord{
			EquivalencyID: id,
			Operation:     operation,
			Status:        status,
			Timestamp:     now,
		})
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := r.db.CreateInBatches(records, batchSize).Error; err != nil {
		return 0, err
	}
	return len(records), nil
}

// MissingCoverage returns the ids of every equivalency with no ledger row
// for the operation. The outer-join-and-filter-null shape makes the
// backfill a single query instead of a per-edge existence check.
func (r *Repository) MissingCoverage(operation string) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&entities.Equivalency{}).
		Joins(
			"LEFT JOIN equivalency_coverage_records c ON c.equivalency_id = equivalencies.id AND c.operation = ?",
			operation,
		).
		Where("c.id IS NULL").
		Order("equivalencies.id ASC").
		Pluck("equivalencies.id", &ids).Error
	return ids, err
}

// NotCovered returns a query scope selecting ledger rows that need work: a
// row counts as needing work if its status is not in countAsCovered
// (default: anything other than Success), or if it is covered but its
// timestamp predates countAsMissingBefore (forced re-coverage of stale work
// after a logic change; zero time disables this).
func NotCovered(countAsCovered []entities.CoverageStatus, countAsMissingBefore time.Time) func(*gorm.DB) *gorm.DB {
	if len(countAsCovered) == 0 {
		countAsCovered = []entities.CoverageStatus{entities.CoverageSuccess}
	}
	return func(db *gorm.DB) *gorm.DB {
		if countAsMissingBefore.IsZero() {
			return db.Where("status NOT IN ?", countAsCovered)
		}
		return db.Where("status NOT IN ? OR timestamp < ?", countAsCovered, countAsMissingBefore)
	}
}

// ItemsThatNeedCoverage returns the next batch of needs-work rows for the
// operation, ledger id ascending (FIFO) starting after afterID, with the
// associated equivalency eager-loaded.
func (r *Repository) ItemsThatNeedCoverage(operation string, afterID uint, limit int, scope func(*gorm.DB) *gorm.DB) ([]entities.EquivalencyCoverageRecord, error) {
	if scope == nil {
		scope = NotCovered(nil, time.Time{})
	}
	var records []entities.EquivalencyCoverageRecord
	err := r.db.Preload("Equivalency").
		Scopes(scope).
		Where("operation = ?", operation).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// MarkSuccess transitions ledger rows to Success.
func (r *Repository) MarkSuccess(recordIDs []uint) error {
	return markStatus(r.db, recordIDs, entities.CoverageSuccess, "")
}

// MarkTransientFailure records a retryable failure; the rows stay eligible
// for the next run.
func (r *Repository) MarkTransientFailure(recordIDs []uint, exception string) error {
	return markStatus(r.db, recordIDs, entities.CoverageTransientFailure, exception)
}

// MarkPersistentFailure records a non-retryable failure.
func (r *Repository) MarkPersistentFailure(recordIDs []uint, exception string) error {
	return markStatus(r.db, recordIDs, entities.CoveragePersistentFailure, exception)
}

// MarkSuccessTx is MarkSuccess against a caller-supplied transaction, so
// the transition can commit atomically with the work it records.
func MarkSuccessTx(tx *gorm.DB, recordIDs []uint) error {
	return markStatus(tx, recordIDs, entities.CoverageSuccess, "")
}

func markStatus(db *gorm.DB, recordIDs []uint, status entities.CoverageStatus, exception string) error {
	if len(recordIDs) == 0 {
		return nil
	}
	now := time.Now()
	for _, chunk := range chunkIDs(recordIDs, inChunkSize) {
		err := db.Model(&entities.EquivalencyCoverageRecord{}).
			Where("id IN ?", chunk).
			Updates(map[string]any{
				"status":    status,
				"exception": exception,
				"timestamp": now,
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func chunkIDs(ids []uint, size int) [][]uint {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	var chunks [][]uint
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

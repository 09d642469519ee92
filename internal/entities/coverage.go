package entities

import (
	"time"
)

type CoverageStatus string

const (
	CoverageRegistered        CoverageStatus = "registered"
	CoverageSuccess           CoverageStatus = "success"
	CoverageTransientFailure  CoverageStatus = "transient failure"
	CoveragePersistentFailure CoverageStatus = "persistent failure"
)

// OperationRecalculateEquivalents is the ledger operation covering the
// recomputation of the recursive equivalents cache for an edge.
const OperationRecalculateEquivalents = "recalculate-equivalents"

// EquivalencyCoverageRecord is a work-queue entry recording whether an
// equivalency's closure has been (re)computed. One record exists per
// (equivalency, operation); a missing record means "never scheduled".
type EquivalencyCoverageRecord struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	EquivalencyID uint           `gorm:"index;uniqueIndex:idx_coverage_equivalency_operation" json:"equivalency_id"`
	Equivalency   Equivalency    `gorm:"foreignKey:EquivalencyID;constraint:OnDelete:CASCADE" json:"-"`
	Operation     string         `gorm:"uniqueIndex:idx_coverage_equivalency_operation;size:64" json:"operation"`
	Status        CoverageStatus `gorm:"size:20;default:'registered';index" json:"status"`
	Exception     string         `gorm:"type:text" json:"exception,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

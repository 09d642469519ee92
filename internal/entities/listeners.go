package entities

import (
	"time"

	"gorm.io/gorm"
)

// Hooks in this file keep the recursive equivalents cache and the coverage
// ledger consistent with identifier/equivalency writes. GORM runs them
// inside the transaction performing the write, so either the write and its
// bookkeeping both land, or neither does.

// AfterCreate inserts the self-referencing closure row the moment an
// identifier exists. Every identifier's closure contains at least itself,
// before any equivalency involving it is recorded.
func (i *Identifier) AfterCreate(tx *gorm.DB) error {
	return tx.Create(&RecursiveEquivalency{
		ParentIdentifierID: i.ID,
		IdentifierID:       i.ID,
		IsParent:           true,
	}).Error
}

// AfterDelete schedules closure recomputation for everything the deleted
// edge could have touched. Removing one edge can change the closure of
// arbitrarily distant nodes that were only reachable through it, so the
// marking covers the cached chains of both endpoints, not just edges
// directly incident on them.
func (e *Equivalency) AfterDelete(tx *gorm.DB) error {
	if e.InputID == 0 || e.OutputID == 0 {
		// Batch delete by condition; endpoints unknown, nothing to mark.
		return nil
	}
	return MarkEquivalenciesStale(tx, []uint{e.InputID, e.OutputID})
}

// MarkEquivalenciesStale creates or resets Registered ledger rows for every
// equivalency touching the cached equivalence chains of the given
// identifiers. The reverse-dependency lookup walks exactly one level: the
// parents whose cached closures contain a touched identifier.
func MarkEquivalenciesStale(tx *gorm.DB, identifierIDs []uint) error {
	if len(identifierIDs) == 0 {
		return nil
	}

	var parents []uint
	err := tx.Model(&RecursiveEquivalency{}).
		Distinct("parent_identifier_id").
		Where("identifier_id IN ?", identifierIDs).
		Pluck("parent_identifier_id", &parents).Error
	if err != nil {
		return err
	}

	touched := make(map[uint]struct{}, len(parents)+len(identifierIDs))
	for _, id := range identifierIDs {
		touched[id] = struct{}{}
	}
	for _, id := range parents {
		touched[id] = struct{}{}
	}
	touchedIDs := make([]uint, 0, len(touched))
	for id := range touched {
		touchedIDs = append(touchedIDs, id)
	}

	var equivalencyIDs []uint
	err = tx.Model(&Equivalency{}).
		Where("input_id IN ? OR output_id IN ?", touchedIDs, touchedIDs).
		Pluck("id", &equivalencyIDs).Error
	if err != nil {
		return err
	}
	if len(equivalencyIDs) == 0 {
		return nil
	}

	now := time.Now()

	// Reset existing records back to Registered.
	err = tx.Model(&EquivalencyCoverageRecord{}).
		Where("equivalency_id IN ? AND operation = ?", equivalencyIDs, OperationRecalculateEquivalents).
		Updates(map[string]any{
			"status":    CoverageRegistered,
			"exception": "",
			"timestamp": now,
		}).Error
	if err != nil {
		return err
	}

	// Insert records for equivalencies that never had one.
	var existing []uint
	err = tx.Model(&EquivalencyCoverageRecord{}).
		Where("equivalency_id IN ? AND operation = ?", equivalencyIDs, OperationRecalculateEquivalents).
		Pluck("equivalency_id", &existing).Error
	if err != nil {
		return err
	}
	have := make(map[uint]struct{}, len(existing))
	for _, id := range existing {
		have[id] = struct{}{}
	}

	var missing []EquivalencyCoverageRecord
	for _, id := range equivalencyIDs {
		if _, ok := have[id]; ok {
			continue
		}
		missing = append(missing, EquivalencyCoverageRecord{
			EquivalencyID: id,
			Operation:     OperationRecalculateEquivalents,
			Status:        CoverageRegistered,
			Timestamp:     now,
		})
	}
	if len(missing) == 0 {
		return nil
	}
	return tx.CreateInBatches(missing, 100).Error
}

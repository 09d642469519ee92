// Package equivalents provides database operations for the recursive
// equivalents cache: the denormalized, pre-computed transitive closures of
// the identifier equivalence graph.
package equivalents

import (
	"gorm.io/gorm"

	"github.com/openlibris/circulate/internal/database/identifiers"
	"github.com/openlibris/circulate/internal/entities"
)

const insertBatchSize = 200

// Repository handles all recursive equivalents cache operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new equivalents cache repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// EquivalentIDs returns the cached closure for a parent identifier, the
// parent itself included, ordered by identifier id.
func (r *Repository) EquivalentIDs(parentID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&entities.RecursiveEquivalency{}).
		Where("parent_identifier_id = ?", parentID).
		Order("identifier_id ASC").
		Pluck("identifier_id", &ids).Error
	return ids, err
}

// Entries returns the raw cache rows for a parent identifier.
func (r *Repository) Entries(parentID uint) ([]entities.RecursiveEquivalency, error) {
	var entries []entities.RecursiveEquivalency
	err := r.db.Where("parent_identifier_id = ?", parentID).
		Order("identifier_id ASC").
		Find(&entries).Error
	return entries, err
}

// ParentsOf returns every identifier whose cached closure contains one of
// the given identifiers as a member. These are the reverse dependencies: a
// change touching a member may invalidate the parent's cached closure even
// though the parent's own edges did not change.
func (r *Repository) ParentsOf(memberIDs []uint) ([]uint, error) {
	var parents []uint
	err := r.db.Model(&entities.RecursiveEquivalency{}).
		Distinct("parent_identifier_id").
		Where("identifier_id IN ?", memberIDs).
		Order("parent_identifier_id ASC").
		Pluck("parent_identifier_id", &parents).Error
	return parents, err
}

// RebuildFor recomputes and persists one parent's closure under the given
// policy. Always a full replace, never an incremental patch, so the result
// is correct after arbitrary graph edits.
func (r *Repository) RebuildFor(parentID uint, policy identifiers.TraversalPolicy) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		pairs, err := identifiers.NewRepository(tx).RecursivelyEquivalentPairs([]uint{parentID}, policy)
		if err != nil {
			return err
		}
		err = tx.Where("parent_identifier_id = ?", parentID).
			Delete(&entities.RecursiveEquivalency{}).Error
		if err != nil {
			return err
		}
		rows := make([]entities.RecursiveEquivalency, 0, len(pairs))
		for _, pair := range pairs {
			rows = append(rows, entities.RecursiveEquivalency{
				ParentIdentifierID: pair.ParentID,
				IdentifierID:       pair.IdentifierID,
				IsParent:           pair.ParentID == pair.IdentifierID,
			})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
}

// Package identifiers provides database operations for the identifier
// equivalence graph: typed identifiers, weighted equivalency edges between
// them, and the recursive traversal that computes transitive closures.
//
// # Usage
//
//	repo := identifiers.NewRepository(db)
//	isbn, _, err := repo.ForForeignID(entities.IdentifierTypeISBN, "9781449358068", true)
//	overdrive, _, err := repo.ForForeignID(entities.IdentifierTypeOverdriveID, "abc-123", true)
//	_, err = repo.EquivalentTo(overdrive, isbn, source, 1.0)
package identifiers

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/openlibris/circulate/internal/entities"
)

// forbiddenCharacters lists characters an identifier value may never contain
// for certain vendor ID types. The vendors' batch-lookup APIs use these as
// separators, so letting them into stored values breaks lookups later.
var forbiddenCharacters = map[entities.IdentifierType]string{
	entities.IdentifierTypeOverdriveID:   ",",
	entities.IdentifierTypeBibliothecaID: ",/",
	entities.IdentifierTypeBoundlessID:   ",",
}

// licenseSources maps vendor ID types to the data source that licenses
// works under that type. Types absent from the map (ISBN, DOI, ...) carry
// bibliographic metadata only and can never resolve a license lookup.
var licenseSources = map[entities.IdentifierType]string{
	entities.IdentifierTypeOverdriveID:   entities.DataSourceOverdrive,
	entities.IdentifierTypeBibliothecaID: entities.DataSourceBibliotheca,
	entities.IdentifierTypeBoundlessID:   entities.DataSourceBoundless,
	entities.IdentifierTypeGutenbergID:   entities.DataSourceGutenberg,
}

// InvalidIdentifierError reports an identifier value that is not acceptable
// for its type.
type InvalidIdentifierError struct {
	Type   entities.IdentifierType
	Value  string
	Reason string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid identifier value %q for type %q: %s", e.Value, e.Type, e.Reason)
}

// UnresolvableIdentifierError reports that an identifier's type has no
// licensing source, so a license-requiring lookup can never succeed for it.
// Distinct from "not found yet".
type UnresolvableIdentifierError struct {
	Type entities.IdentifierType
}

func (e *UnresolvableIdentifierError) Error() string {
	return fmt.Sprintf("identifier type %q has no license source", e.Type)
}

// Repository handles all identifier graph database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new identifiers repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ForForeignID normalizes a possibly deprecated type name, validates the
// value for that type, and looks up or creates the identifier row. The
// second return value reports whether a row was created.
func (r *Repository) ForForeignID(idType entities.IdentifierType, value string, autocreate bool) (*entities.Identifier, bool, error) {
	idType = entities.CanonicalType(idType)
	value = strings.TrimSpace(value)

	if idType == "" {
		return nil, false, &InvalidIdentifierError{Type: idType, Value: value, Reason: "empty type"}
	}
	if value == "" {
		return nil, false, &InvalidIdentifierError{Type: idType, Value: value, Reason: "empty value"}
	}
	if chars, ok := forbiddenCharacters[idType]; ok && strings.ContainsAny(value, chars) {
		return nil, false, &InvalidIdentifierError{
			Type:   idType,
			Value:  value,
			Reason: fmt.Sprintf("must not contain any of %q", chars),
		}
	}

	var identifier entities.Identifier
	err := r.db.Where("type = ? AND value = ?", idType, value).First(&identifier).Error
	if err == nil {
		return &identifier, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	if !autocreate {
		return nil, false, err
	}

	identifier = entities.Identifier{Type: idType, Value: value}
	if err := r.db.Create(&identifier).Error; err != nil {
		return nil, false, err
	}
	return &identifier, true, nil
}

// EquivalentTo idempotently records that input and output refer to the same
// work according to source, with the given confidence. Re-asserting an
// existing edge refreshes its strength and increments its vote count.
// Self-equivalence is never materialized as an edge; the closure cache's
// self-row invariant covers it.
func (r *Repository) EquivalentTo(input, output *entities.Identifier, source *entities.DataSource, strength float64) (*entities.Equivalency, error) {
	if input == nil || output == nil || source == nil {
		return nil, fmt.Errorf("equivalent_to requires input, output and data source")
	}
	if input.ID == output.ID {
		return nil, nil
	}
	if strength < -1 || strength > 1 {
		return nil, fmt.Errorf("equivalency strength %v out of range [-1, 1]", strength)
	}

	var equivalency entities.Equivalency
	err := r.db.Where(
		"input_id = ? AND output_id = ? AND data_source_id = ?",
		input.ID, output.ID, source.ID,
	).First(&equivalency).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		equivalency = entities.Equivalency{
			InputID:      input.ID,
			OutputID:     output.ID,
			DataSourceID: source.ID,
			Strength:     strength,
			Votes:        1,
			Enabled:      true,
		}
		if err := r.db.Create(&equivalency).Error; err != nil {
			return nil, err
		}
		return &equivalency, nil
	}
	if err != nil {
		return nil, err
	}

	equivalency.Strength = strength
	equivalency.Votes++
	if err := r.db.Save(&equivalency).Error; err != nil {
		return nil, err
	}
	return &equivalency, nil
}

// LicenseSourceFor returns the name of the data source that licenses works
// identified by the given type.
func LicenseSourceFor(idType entities.IdentifierType) (string, error) {
	idType = entities.CanonicalType(idType)
	source, ok := licenseSources[idType]
	if !ok {
		return "", &UnresolvableIdentifierError{Type: idType}
	}
	return source, nil
}

// GetByID retrieves an identifier by primary key.
func (r *Repository) GetByID(id uint) (*entities.Identifier, error) {
	var identifier entities.Identifier
	err := r.db.First(&identifier, id).Error
	if err != nil {
		return nil, err
	}
	return &identifier, nil
}

// Existing filters ids down to those that still have an identifier row.
func (r *Repository) Existing(ids []uint) ([]uint, error) {
	var existing []uint
	for _, chunk := range chunkIDs(ids, inChunkSize) {
		var part []uint
		err := r.db.Model(&entities.Identifier{}).
			Where("id IN ?", chunk).
			Pluck("id", &part).Error
		if err != nil {
			return nil, err
		}
		existing = append(existing, part...)
	}
	return existing, nil
}

// Delete removes an identifier. Equivalencies, closure rows and coverage
// records referencing it go with it via FK cascade; cascades bypass the
// equivalency delete hook, so stale coverage for the surviving chain
// members is marked here first, while the cache still reflects the chains.
func (r *Repository) Delete(identifier *entities.Identifier) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := entities.MarkEquivalenciesStale(tx, []uint{identifier.ID}); err != nil {
			return err
		}
		return tx.Delete(&entities.Identifier{}, identifier.ID).Error
	})
}

// DeleteEquivalency removes an edge by id. The full row is loaded first so
// the delete hook observes both endpoints and can schedule recomputation.
func (r *Repository) DeleteEquivalency(id uint) error {
	var equivalency entities.Equivalency
	if err := r.db.First(&equivalency, id).Error; err != nil {
		return err
	}
	return r.db.Delete(&equivalency).Error
}

// SetEquivalencyEnabled flips the administrative override channel on an
// edge. Disabling marks the affected chains stale the same way deletion
// does, since the edge no longer participates in traversals.
func (r *Repository) SetEquivalencyEnabled(id uint, enabled bool) error {
	var equivalency entities.Equivalency
	if err := r.db.First(&equivalency, id).Error; err != nil {
		return err
	}
	if equivalency.Enabled == enabled {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&equivalency).Update("enabled", enabled).Error
		if err != nil {
			return err
		}
		return entities.MarkEquivalenciesStale(tx, []uint{equivalency.InputID, equivalency.OutputID})
	})
}

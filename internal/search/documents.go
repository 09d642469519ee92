package search

import (
	"sort"
	"strconv"

	"gorm.io/gorm"

	"github.com/openlibris/circulate/internal/entities"
)

// DocumentBuilder derives indexable work documents from the catalog. Each
// closure parent becomes one document listing its equivalent identifiers,
// read from the recursive equivalents cache rather than re-traversing the
// graph.
type DocumentBuilder struct {
	db *gorm.DB
}

// NewDocumentBuilder creates a document builder over the given database.
func NewDocumentBuilder(db *gorm.DB) *DocumentBuilder {
	return &DocumentBuilder{db: db}
}

type closureRow struct {
	ParentIdentifierID uint
	Type               entities.IdentifierType
	Value              string
	IsParent           bool
}

// BuildAll produces one document per identifier, its equivalents taken from
// the cached closure.
func (b *DocumentBuilder) BuildAll() ([]Document, error) {
	var rows []closureRow
	err := b.db.Model(&entities.RecursiveEquivalency{}).
		Select("recursive_equivalents.parent_identifier_id",
			"identifiers.type",
			"identifiers.value",
			"recursive_equivalents.is_parent").
		Joins("JOIN identifiers ON identifiers.id = recursive_equivalents.identifier_id").
		Order("recursive_equivalents.parent_identifier_id ASC, identifiers.id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	byParent := make(map[uint][]closureRow)
	for _, row := range rows {
		byParent[row.ParentIdentifierID] = append(byParent[row.ParentIdentifierID], row)
	}

	parents := make([]uint, 0, len(byParent))
	for parent := range byParent {
		parents = append(parents, parent)
	}
	sort.Slice(parents, func(i, j int) bool { return parents[i] < parents[j] })

	documents := make([]Document, 0, len(parents))
	for _, parent := range parents {
		members := byParent[parent]
		document := Document{
			ID:     strconv.FormatUint(uint64(parent), 10),
			Fields: map[string]any{},
		}
		var equivalents []string
		var equivalentTypes []string
		for _, member := range members {
			if member.IsParent {
				document.Fields["identifier_type"] = string(member.Type)
				document.Fields["identifier_value"] = member.Value
				continue
			}
			equivalents = append(equivalents, member.Value)
			equivalentTypes = append(equivalentTypes, string(member.Type))
		}
		document.Fields["equivalents"] = equivalents
		document.Fields["equivalent_types"] = equivalentTypes
		documents = append(documents, document)
	}
	return documents, nil
}

package entities

import (
	"time"
)

type IdentifierType string

const (
	IdentifierTypeOverdriveID   IdentifierType = "Overdrive ID"
	IdentifierTypeBibliothecaID IdentifierType = "Bibliotheca ID"
	IdentifierTypeBoundlessID   IdentifierType = "Boundless ID"
	IdentifierTypeGutenbergID   IdentifierType = "Gutenberg ID"
	IdentifierTypeISBN          IdentifierType = "ISBN"
	IdentifierTypeASIN          IdentifierType = "ASIN"
	IdentifierTypeDOI           IdentifierType = "DOI"
	IdentifierTypeUPC           IdentifierType = "UPC"
	IdentifierTypeURI           IdentifierType = "URI"
)

// DeprecatedTypeNames maps identifier type names that appear in older vendor
// exports to their current names.
var DeprecatedTypeNames = map[IdentifierType]IdentifierType{
	"3M ID":       IdentifierTypeBibliothecaID,
	"Axis 360 ID": IdentifierTypeBoundlessID,
}

// CanonicalType resolves a possibly deprecated type name to its current name.
func CanonicalType(t IdentifierType) IdentifierType {
	if canonical, ok := DeprecatedTypeNames[t]; ok {
		return canonical
	}
	return t
}

// Identifier is a typed external reference to a bibliographic entity,
// e.g. (ISBN, "9781449358068"). Rows are unique on (type, value) and are
// never updated once created.
type Identifier struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Type      IdentifierType `gorm:"uniqueIndex:idx_identifier_type_value;size:64" json:"type"`
	Value     string         `gorm:"uniqueIndex:idx_identifier_type_value;size:256" json:"value"`
	CreatedAt time.Time      `json:"created_at"`
}

type DataSource struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:50" json:"name"`
	DisplayName string    `gorm:"size:100" json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	DataSourceOverdrive    = "overdrive"
	DataSourceBibliotheca  = "bibliotheca"
	DataSourceBoundless    = "boundless"
	DataSourceGutenberg    = "gutenberg"
	DataSourceOCLC         = "oclc_linked_data"
	DataSourceContentCafe  = "content_cafe"
	DataSourceOpenLibrary  = "open_library"
	DataSourceLibraryStaff = "library_staff"
	DataSourceManual       = "manual"
)

// Equivalency is a directed, weighted assertion that two identifiers refer
// to the same work, according to one data source. Strength is in [-1, 1];
// a negative strength asserts non-equivalence. Enabled=false removes the
// edge from consideration without deleting it.
type Equivalency struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	InputID      uint       `gorm:"index;uniqueIndex:idx_equivalency_edge" json:"input_id"`
	Input        Identifier `gorm:"foreignKey:InputID;constraint:OnDelete:CASCADE" json:"-"`
	OutputID     uint       `gorm:"index;uniqueIndex:idx_equivalency_edge" json:"output_id"`
	Output       Identifier `gorm:"foreignKey:OutputID;constraint:OnDelete:CASCADE" json:"-"`
	DataSourceID uint       `gorm:"index;uniqueIndex:idx_equivalency_edge" json:"data_source_id"`
	DataSource   DataSource `gorm:"foreignKey:DataSourceID" json:"data_source,omitempty"`
	Strength     float64    `json:"strength"`
	Votes        int        `gorm:"default:1" json:"votes"`
	Enabled      bool       `gorm:"default:true" json:"enabled"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RecursiveEquivalency is one membership row of a cached transitive closure:
// identifier_id is reachable from parent_identifier_id under the production
// traversal policy. The table is a pure cache, always re-derivable from
// Identifier + Equivalency, and is fully replaced per parent on rebuild.
type RecursiveEquivalency struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	ParentIdentifierID uint       `gorm:"index;uniqueIndex:idx_recursive_parent_identifier" json:"parent_identifier_id"`
	ParentIdentifier   Identifier `gorm:"foreignKey:ParentIdentifierID;constraint:OnDelete:CASCADE" json:"-"`
	IdentifierID       uint       `gorm:"index;uniqueIndex:idx_recursive_parent_identifier" json:"identifier_id"`
	Identifier         Identifier `gorm:"foreignKey:IdentifierID;constraint:OnDelete:CASCADE" json:"-"`
	IsParent           bool       `gorm:"default:false" json:"is_parent"`
}

func (RecursiveEquivalency) TableName() string {
	return "recursive_equivalents"
}

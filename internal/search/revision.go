// Package search implements the versioned-schema search index layer: the
// revision directory, the pointer-based blue/green migration state machine,
// and the document builder that derives indexable work documents from the
// catalog and the recursive equivalents cache.
package search

import (
	"fmt"
	"sort"
)

// Revision is an immutable (version, mapping document) pair. Physical
// indexes are named base-v<version>, so a revision always maps to the same
// index and re-creating it is idempotent.
type Revision struct {
	Version int
	Fields  map[string]any
}

// IndexName returns the physical index name for this revision.
func (r *Revision) IndexName(base string) string {
	return fmt.Sprintf("%s-v%d", base, r.Version)
}

// Mapping returns the mapping document for this revision.
func (r *Revision) Mapping() map[string]any {
	return map[string]any{"properties": r.Fields}
}

func keywordField() map[string]any { return map[string]any{"type": "keyword"} }
func textField() map[string]any    { return map[string]any{"type": "text"} }

func v1Revision() *Revision {
	return &Revision{
		Version: 1,
		Fields: map[string]any{
			"identifier_type":  keywordField(),
			"identifier_value": keywordField(),
			"equivalents":      keywordField(),
		},
	}
}

func v2Revision() *Revision {
	return &Revision{
		Version: 2,
		Fields: map[string]any{
			"identifier_type":  keywordField(),
			"identifier_value": keywordField(),
			"equivalents":      keywordField(),
			"equivalent_types": keywordField(),
			"title":            textField(),
			"sort_title":       keywordField(),
		},
	}
}

// RevisionDirectory holds every known schema revision keyed by version.
type RevisionDirectory struct {
	revisions map[int]*Revision
}

// NewRevisionDirectory returns the directory of built-in revisions.
func NewRevisionDirectory() *RevisionDirectory {
	directory := &RevisionDirectory{revisions: make(map[int]*Revision)}
	for _, revision := range []*Revision{v1Revision(), v2Revision()} {
		directory.revisions[revision.Version] = revision
	}
	return directory
}

// Version returns the revision with the given version number.
func (d *RevisionDirectory) Version(version int) (*Revision, error) {
	revision, ok := d.revisions[version]
	if !ok {
		return nil, fmt.Errorf("unknown search schema revision %d", version)
	}
	return revision, nil
}

// Highest returns the newest known revision.
func (d *RevisionDirectory) Highest() *Revision {
	versions := make([]int, 0, len(d.revisions))
	for version := range d.revisions {
		versions = append(versions, version)
	}
	sort.Ints(versions)
	return d.revisions[versions[len(versions)-1]]
}

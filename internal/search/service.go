package search

import (
	"fmt"
)

// Document is one indexable work document. ID must be set; the search
// backend keys submissions by it.
type Document struct {
	ID     string
	Fields map[string]any
}

// SubmitError reports a single document the backend rejected. Submission
// continues past rejected documents; the caller alerts per-document rather
// than aborting the pass.
type SubmitError struct {
	ID  string
	Err error
}

func (e SubmitError) Error() string {
	return fmt.Sprintf("document %q: %v", e.ID, e.Err)
}

// Service is the narrow contract the migrator and indexer need from a
// search backend. The wire protocol behind it (OpenSearch REST calls) is
// the implementation's concern; every mutating call here is idempotent so
// migrations can be retried blindly.
//
// Pointers are named aliases: the read pointer always resolves to a
// populated index (possibly the bootstrap empty index), and the write
// pointer names the index receiving new documents.
type Service interface {
	// ReadPointer returns the index the read pointer resolves to, or ""
	// when the pointer has never been set.
	ReadPointer() (string, error)
	// WritePointer returns the index the write pointer resolves to, or "".
	WritePointer() (string, error)
	// CreateEmptyIndex creates the permanent empty bootstrap index.
	CreateEmptyIndex(base string) error
	// ReadPointerSet points the read alias at the revision's index.
	ReadPointerSet(base string, revision *Revision) error
	// ReadPointerSetEmpty points the read alias at the bootstrap index.
	ReadPointerSetEmpty(base string) error
	// WritePointerSet points the write alias at the revision's index.
	WritePointerSet(base string, revision *Revision) error
	// IndexCreate creates the revision's index with its mapping. An index
	// that already exists is not an error.
	IndexCreate(base string, revision *Revision) error
	// IndexIsPopulated reports whether the revision's index has been marked
	// as having received at least one full pass of documents.
	IndexIsPopulated(base string, revision *Revision) (bool, error)
	// IndexSetPopulated marks the revision's index populated.
	IndexSetPopulated(base string, revision *Revision) error
	// IndexSubmitDocuments submits a batch of documents to the named index.
	// Rejected documents are reported individually; the error return is for
	// backend-level failures only.
	IndexSubmitDocuments(indexName string, documents []Document) ([]SubmitError, error)
}

// EmptyIndexName returns the name of the permanent bootstrap index for a
// base name.
func EmptyIndexName(base string) string {
	return base + "-empty"
}

func populatedMarker(base string, revision *Revision) string {
	return revision.IndexName(base) + "-populated"
}

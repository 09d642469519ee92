package search

import (
	"fmt"
	"sync"
)

// MemoryService is the in-process Service implementation. It backs the
// embedded search mode and the test suites; a real OpenSearch client slots
// in behind the same interface.
type MemoryService struct {
	mu        sync.Mutex
	indexes   map[string]map[string]Document
	mappings  map[string]map[string]any
	populated map[string]bool
	read      string
	write     string

	// pointerOps records every pointer mutation in order, e.g.
	// "write:catalog-v2". Tests assert flip ordering against it.
	pointerOps []string

	// failSubmitIDs lists document ids the service will reject, to
	// exercise per-document error reporting.
	failSubmitIDs map[string]bool
}

// NewMemoryService creates an empty in-process search service.
func NewMemoryService() *MemoryService {
	return &MemoryService{
		indexes:       make(map[string]map[string]Document),
		mappings:      make(map[string]map[string]any),
		populated:     make(map[string]bool),
		failSubmitIDs: make(map[string]bool),
	}
}

func (s *MemoryService) ReadPointer() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read, nil
}

func (s *MemoryService) WritePointer() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write, nil
}

func (s *MemoryService) CreateEmptyIndex(base string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := EmptyIndexName(base)
	if _, ok := s.indexes[name]; !ok {
		s.indexes[name] = make(map[string]Document)
	}
	return nil
}

func (s *MemoryService) ReadPointerSet(base string, revision *Revision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.read = revision.IndexName(base)
	s.pointerOps = append(s.pointerOps, "read:"+s.read)
	return nil
}

func (s *MemoryService) ReadPointerSetEmpty(base string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.read = EmptyIndexName(base)
	s.pointerOps = append(s.pointerOps, "read:"+s.read)
	return nil
}

func (s *MemoryService) WritePointerSet(base string, revision *Revision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write = revision.IndexName(base)
	s.pointerOps = append(s.pointerOps, "write:"+s.write)
	return nil
}

func (s *MemoryService) IndexCreate(base string, revision *Revision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := revision.IndexName(base)
	if _, ok := s.indexes[name]; !ok {
		s.indexes[name] = make(map[string]Document)
	}
	s.mappings[name] = revision.Mapping()
	return nil
}

func (s *MemoryService) IndexIsPopulated(base string, revision *Revision) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.populated[populatedMarker(base, revision)], nil
}

func (s *MemoryService) IndexSetPopulated(base string, revision *Revision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.populated[populatedMarker(base, revision)] = true
	return nil
}

func (s *MemoryService) IndexSubmitDocuments(indexName string, documents []Document) ([]SubmitError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.indexes[indexName]
	if !ok {
		return nil, fmt.Errorf("index %q does not exist", indexName)
	}
	var submitErrors []SubmitError
	for _, document := range documents {
		if document.ID == "" {
			submitErrors = append(submitErrors, SubmitError{ID: document.ID, Err: fmt.Errorf("document has no id")})
			continue
		}
		if s.failSubmitIDs[document.ID] {
			submitErrors = append(submitErrors, SubmitError{ID: document.ID, Err: fmt.Errorf("rejected")})
			continue
		}
		index[document.ID] = document
	}
	return submitErrors, nil
}

// Documents returns the documents stored in an index, for inspection.
func (s *MemoryService) Documents(indexName string) []Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	var documents []Document
	for _, document := range s.indexes[indexName] {
		documents = append(documents, document)
	}
	return documents
}

// IndexExists reports whether an index has been created.
func (s *MemoryService) IndexExists(indexName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.indexes[indexName]
	return ok
}

// PointerOps returns the ordered log of pointer mutations.
func (s *MemoryService) PointerOps() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops := make([]string, len(s.pointerOps))
	copy(ops, s.pointerOps)
	return ops
}

// FailSubmitsFor makes the service reject future submissions of the given
// document ids.
func (s *MemoryService) FailSubmitsFor(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.failSubmitIDs[id] = true
	}
}

package search

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/openlibris/circulate/internal/metrics"
)

// MigrationError wraps a failure during index migration. Fatal errors mean
// the migration cannot proceed and a human should look; partial state is
// NOT cleaned up (the target index may exist half-populated), and re-running
// the migration is the recovery path since every step is idempotent.
type MigrationError struct {
	Fatal bool
	msg   string
	err   error
}

func (e *MigrationError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *MigrationError) Unwrap() error {
	return e.err
}

func fatalMigration(msg string, err error) *MigrationError {
	return &MigrationError{Fatal: true, msg: msg, err: err}
}

// Migrator coordinates read/write pointers and index creation/population
// against the versioned schema directory, so that an index migration is
// atomic from the caller's point of view: readers stay on the old index
// until the new one is populated, then both pointers flip.
type Migrator struct {
	service   Service
	directory *RevisionDirectory
	log       *zap.Logger
}

// NewMigrator creates a migrator over the given search service.
func NewMigrator(service Service, directory *RevisionDirectory, log *zap.Logger) *Migrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Migrator{service: service, directory: directory, log: log}
}

// EnsurePointers bootstraps a cluster with no pointers: the permanent empty
// index is created and the read pointer aimed at it, so the read pointer
// always resolves to a populated index.
func (m *Migrator) EnsurePointers(base string) error {
	read, err := m.service.ReadPointer()
	if err != nil {
		return fatalMigration("could not read the read pointer", err)
	}
	if read != "" {
		return nil
	}
	if err := m.service.CreateEmptyIndex(base); err != nil {
		return fatalMigration("could not create the empty index", err)
	}
	if err := m.service.ReadPointerSetEmpty(base); err != nil {
		return fatalMigration("could not bootstrap the read pointer", err)
	}
	m.log.Info("bootstrapped read pointer to empty index", zap.String("base", base))
	return nil
}

// Migrate moves the index toward the requested schema version. It returns
// nil when nothing is to be done: either the write pointer already names a
// populated index of that version, or the target index turned out to be
// populated already and the pointers were flipped on the spot. Otherwise
// the caller receives an in-progress handle and is expected to submit
// documents and call Finish.
func (m *Migrator) Migrate(base string, version int) (*MigrationInProgress, error) {
	revision, err := m.directory.Version(version)
	if err != nil {
		return nil, fatalMigration("cannot migrate", err)
	}

	write, err := m.service.WritePointer()
	if err != nil {
		return nil, fatalMigration("could not read the write pointer", err)
	}
	populated, err := m.service.IndexIsPopulated(base, revision)
	if err != nil {
		return nil, fatalMigration("could not check index population", err)
	}
	if write == revision.IndexName(base) && populated {
		return nil, nil
	}

	// Idempotent: an index that already exists is not an error, so a
	// half-done earlier attempt is simply resumed.
	if err := m.service.IndexCreate(base, revision); err != nil {
		return nil, fatalMigration(fmt.Sprintf("could not create index %s", revision.IndexName(base)), err)
	}

	inProgress := &MigrationInProgress{
		base:     base,
		revision: revision,
		service:  m.service,
		log:      m.log,
	}
	if populated {
		// Documents are already there from a previous attempt; only the
		// pointers are behind.
		if err := inProgress.Finish(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	m.log.Info("search index migration started",
		zap.String("base", base),
		zap.Int("version", version))
	return inProgress, nil
}

// MigrationInProgress is the handle for a migration whose target index
// exists but has not yet received a full document pass.
type MigrationInProgress struct {
	base     string
	revision *Revision
	service  Service
	log      *zap.Logger
}

// IndexName returns the physical name of the target index.
func (m *MigrationInProgress) IndexName() string {
	return m.revision.IndexName(m.base)
}

// AddDocuments submits a batch of documents to the target index. Rejections
// are reported per document; submission continues past them.
func (m *MigrationInProgress) AddDocuments(documents []Document) ([]SubmitError, error) {
	submitErrors, err := m.service.IndexSubmitDocuments(m.IndexName(), documents)
	if err != nil {
		return nil, fatalMigration("document submission failed", err)
	}
	metrics.SearchDocumentsSubmitted.Add(float64(len(documents) - len(submitErrors)))
	metrics.SearchDocumentErrors.Add(float64(len(submitErrors)))
	for _, submitError := range submitErrors {
		m.log.Warn("search index rejected document",
			zap.String("index", m.IndexName()),
			zap.String("document_id", submitError.ID),
			zap.Error(submitError.Err))
	}
	return submitErrors, nil
}

// Finish marks the index populated, then flips the write pointer, then the
// read pointer. The ordering is strict: the write pointer moves first so no
// reader is ever pointed at an index that is not also receiving current
// writes. Safe to call more than once; every step is an idempotent set.
func (m *MigrationInProgress) Finish() error {
	if err := m.service.IndexSetPopulated(m.base, m.revision); err != nil {
		return fatalMigration("could not mark index populated", err)
	}
	if err := m.service.WritePointerSet(m.base, m.revision); err != nil {
		return fatalMigration("could not set the write pointer", err)
	}
	if err := m.service.ReadPointerSet(m.base, m.revision); err != nil {
		return fatalMigration("could not set the read pointer", err)
	}
	m.log.Info("search index migration finished",
		zap.String("index", m.IndexName()))
	return nil
}

// Cancel abandons the migration with pointers untouched. The partially
// built target index is deliberately left behind: it costs nothing, and the
// next attempt resumes it because index creation is idempotent.
func (m *MigrationInProgress) Cancel() error {
	m.log.Info("search index migration cancelled",
		zap.String("index", m.IndexName()))
	return nil
}

package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/openlibris/circulate/internal/metrics"
)

// Indexer runs full reindex passes: bootstrap pointers if needed, migrate
// to the target schema revision, and push every catalog document through.
type Indexer struct {
	service   Service
	migrator  *Migrator
	builder   *DocumentBuilder
	directory *RevisionDirectory
	base      string
	version   int
	log       *zap.Logger
}

// NewIndexer creates an indexer targeting the given schema version; a
// non-positive version means the highest known revision.
func NewIndexer(service Service, directory *RevisionDirectory, builder *DocumentBuilder, base string, version int, log *zap.Logger) *Indexer {
	if log == nil {
		log = zap.NewNop()
	}
	if version <= 0 {
		version = directory.Highest().Version
	}
	return &Indexer{
		service:   service,
		migrator:  NewMigrator(service, directory, log),
		builder:   builder,
		directory: directory,
		base:      base,
		version:   version,
		log:       log,
	}
}

// Reindex performs one full pass and returns the number of documents
// accepted by the index.
func (ix *Indexer) Reindex(ctx context.Context) (int, error) {
	if err := ix.migrator.EnsurePointers(ix.base); err != nil {
		return 0, err
	}

	documents, err := ix.builder.BuildAll()
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	inProgress, err := ix.migrator.Migrate(ix.base, ix.version)
	if err != nil {
		return 0, err
	}

	if inProgress != nil {
		submitErrors, err := inProgress.AddDocuments(documents)
		if err != nil {
			return 0, err
		}
		if err := inProgress.Finish(); err != nil {
			return 0, err
		}
		return len(documents) - len(submitErrors), nil
	}

	// Already converged: refresh the live write index in place.
	write, err := ix.service.WritePointer()
	if err != nil {
		return 0, fatalMigration("could not read the write pointer", err)
	}
	submitErrors, err := ix.service.IndexSubmitDocuments(write, documents)
	if err != nil {
		return 0, fatalMigration("document submission failed", err)
	}
	metrics.SearchDocumentsSubmitted.Add(float64(len(documents) - len(submitErrors)))
	metrics.SearchDocumentErrors.Add(float64(len(submitErrors)))
	for _, submitError := range submitErrors {
		ix.log.Warn("search index rejected document",
			zap.String("index", write),
			zap.String("document_id", submitError.ID),
			zap.Error(submitError.Err))
	}
	return len(documents) - len(submitErrors), nil
}

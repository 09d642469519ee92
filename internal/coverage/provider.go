// Package coverage implements the batch worker that keeps the recursive
// equivalents cache honest: it drains the coverage ledger oldest-first,
// works out which identifiers' closures a dirty edge invalidates, rebuilds
// those closures and records the outcome back on the ledger.
package coverage

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	coveragedb "github.com/openlibris/circulate/internal/database/coverage"
	"github.com/openlibris/circulate/internal/database/equivalents"
	"github.com/openlibris/circulate/internal/database/identifiers"
	"github.com/openlibris/circulate/internal/database/settings"
	"github.com/openlibris/circulate/internal/entities"
	"github.com/openlibris/circulate/internal/metrics"
	"github.com/openlibris/circulate/internal/signal"
)

const (
	defaultBatchSize  = 50
	insertBatchSize   = 200
	refreshCooldown   = time.Minute
	defaultOperation  = entities.OperationRecalculateEquivalents
	backfillBatchSize = 500
)

// Options configures a Provider.
type Options struct {
	// BatchSize is how many ledger rows one batch drains. Default 50.
	BatchSize int
	// Policy bounds the closure traversal. Zero value means the production
	// default policy.
	Policy identifiers.TraversalPolicy
	// CountAsMissingBefore forces re-coverage of rows covered before this
	// time. Zero disables it.
	CountAsMissingBefore time.Time
}

// Report summarizes one provider run.
type Report struct {
	Backfilled          int
	Batches             int
	RecordsProcessed    int
	RecordsSucceeded    int
	BatchFailures       int
	IdentifiersRebuilt  int
}

// Provider is the equivalent-identifiers coverage provider. A Provider is
// safe to reuse across runs; each run gets a fresh already-covered set.
type Provider struct {
	db       *gorm.DB
	log      *zap.Logger
	records  *coveragedb.Repository
	settings *settings.Repository
	gate     *signal.CooldownGate
	opts     Options

	// afterRebuild, when set, runs inside the batch transaction between the
	// cache rebuild and the ledger status update. Used to inject faults.
	afterRebuild func(tx *gorm.DB) error
}

// NewProvider creates a coverage provider over the given database handle.
func NewProvider(db *gorm.DB, log *zap.Logger, opts Options) *Provider {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Policy == (identifiers.TraversalPolicy{}) {
		opts.Policy = identifiers.DefaultTraversalPolicy()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{
		db:       db,
		log:      log,
		records:  coveragedb.NewRepository(db),
		settings: settings.NewRepository(db),
		gate:     signal.NewCooldownGate(refreshCooldown),
		opts:     opts,
	}
}

// runContext carries per-run state. The already-covered set prevents
// redundant rebuilds within one pass when several ledger rows resolve to
// the same identifier chain; it never outlives the run.
type runContext struct {
	alreadyCovered map[uint]struct{}
}

func newRunContext() *runContext {
	return &runContext{alreadyCovered: make(map[uint]struct{})}
}

// Run executes one full coverage pass: backfill missing ledger rows, then
// drain needs-work rows oldest-first in transactional batches. A batch
// failure is contained to that batch; the affected rows are marked as a
// transient failure and retried on the next run. The context is honored at
// batch boundaries.
func (p *Provider) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	backfilled, err := p.BackfillMissing()
	if err != nil {
		return report, err
	}
	report.Backfilled = backfilled
	if backfilled > 0 {
		p.log.Info("backfilled coverage records", zap.Int("count", backfilled))
	}

	run := newRunContext()
	scope := coveragedb.NotCovered(nil, p.opts.CountAsMissingBefore)

	var afterID uint
	for {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		batch, err := p.records.ItemsThatNeedCoverage(defaultOperation, afterID, p.opts.BatchSize, scope)
		if err != nil {
			return report, err
		}
		if len(batch) == 0 {
			break
		}
		afterID = batch[len(batch)-1].ID
		report.Batches++
		report.RecordsProcessed += len(batch)
		metrics.CoverageRecordsProcessed.Add(float64(len(batch)))

		result, err := p.processBatch(run, batch)
		if err != nil {
			report.BatchFailures++
			metrics.CoverageBatchFailures.Inc()
			p.log.Error("coverage batch failed",
				zap.Uint("last_record_id", afterID),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			if markErr := p.records.MarkTransientFailure(recordIDs(batch), err.Error()); markErr != nil {
				return report, markErr
			}
			continue
		}

		report.RecordsSucceeded += len(result.succeededRecords)
		report.IdentifiersRebuilt += len(result.rebuiltIdentifiers)
		metrics.CoverageRecordsSucceeded.Add(float64(len(result.succeededRecords)))
		metrics.ClosureRebuilds.Add(float64(len(result.rebuiltIdentifiers)))

		if p.gate.TryPass(time.Now()) {
			if err := p.settings.Set(entities.SettingKeyEquivalentsRefreshedAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
				p.log.Warn("could not refresh equivalents timestamp", zap.Error(err))
			}
		}
	}

	p.log.Info("coverage run finished",
		zap.Int("batches", report.Batches),
		zap.Int("records", report.RecordsProcessed),
		zap.Int("succeeded", report.RecordsSucceeded),
		zap.Int("identifiers_rebuilt", report.IdentifiersRebuilt),
		zap.Int("batch_failures", report.BatchFailures))
	return report, nil
}

// BackfillMissing inserts Registered ledger rows for every equivalency that
// has none for the recalculate operation. Runs before work selection on
// every pass, so edges created since the last run cannot be silently
// starved of scheduling.
func (p *Provider) BackfillMissing() (int, error) {
	missing, err := p.records.MissingCoverage(defaultOperation)
	if err != nil {
		return 0, err
	}
	if len(missing) == 0 {
		return 0, nil
	}
	return p.records.BulkAdd(missing, defaultOperation, backfillBatchSize, entities.CoverageRegistered)
}

type batchResult struct {
	succeededRecords   []uint
	rebuiltIdentifiers []uint
}

// processBatch rebuilds every closure a batch of dirty ledger rows
// invalidates, inside one transaction, and transitions the eligible rows to
// Success in that same transaction. On error everything rolls back and the
// batch's ledger rows keep their pre-run state.
func (p *Provider) processBatch(run *runContext, batch []entities.EquivalencyCoverageRecord) (*batchResult, error) {
	result := &batchResult{}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		need, err := p.identifiersForCoverage(tx, batch)
		if err != nil {
			return err
		}
		for id := range run.alreadyCovered {
			delete(need, id)
		}

		seeds := make([]uint, 0, len(need))
		for id := range need {
			seeds = append(seeds, id)
		}
		sort.Slice(seeds, func(i, j int) bool { return seeds[i] < seeds[j] })

		graph := identifiers.NewRepository(tx)

		// An identifier deleted since its ledger row was registered must not
		// poison the batch: drop it here, leave its rows un-advanced.
		seeds, err = graph.Existing(seeds)
		if err != nil {
			return err
		}

		completed := make(map[uint]struct{}, len(seeds))
		if len(seeds) > 0 {
			pairs, err := graph.RecursivelyEquivalentPairs(seeds, p.opts.Policy)
			if err != nil {
				return err
			}

			// Full-replace per parent: delete a parent's rows on its first
			// appearance in this batch only, then insert the new set.
			rows := make([]entities.RecursiveEquivalency, 0, len(pairs))
			for _, pair := range pairs {
				if _, done := completed[pair.ParentID]; !done {
					err := tx.Where("parent_identifier_id = ?", pair.ParentID).
						Delete(&entities.RecursiveEquivalency{}).Error
					if err != nil {
						return err
					}
					completed[pair.ParentID] = struct{}{}
				}
				rows = append(rows, entities.RecursiveEquivalency{
					ParentIdentifierID: pair.ParentID,
					IdentifierID:       pair.IdentifierID,
					IsParent:           pair.ParentID == pair.IdentifierID,
				})
			}
			if len(rows) > 0 {
				if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
					return err
				}
			}
		}

		if p.afterRebuild != nil {
			if err := p.afterRebuild(tx); err != nil {
				return err
			}
		}

		// Only rows whose both endpoints got a fresh closure (this batch or
		// earlier in this run) may become Success. Anything else stays put
		// and is retried next run.
		covered := func(id uint) bool {
			if _, ok := completed[id]; ok {
				return true
			}
			_, ok := run.alreadyCovered[id]
			return ok
		}
		for _, record := range batch {
			if covered(record.Equivalency.InputID) && covered(record.Equivalency.OutputID) {
				result.succeededRecords = append(result.succeededRecords, record.ID)
			}
		}
		if err := coveragedb.MarkSuccessTx(tx, result.succeededRecords); err != nil {
			return err
		}

		for id := range completed {
			result.rebuiltIdentifiers = append(result.rebuiltIdentifiers, id)
		}
		sort.Slice(result.rebuiltIdentifiers, func(i, j int) bool {
			return result.rebuiltIdentifiers[i] < result.rebuiltIdentifiers[j]
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, id := range result.rebuiltIdentifiers {
		run.alreadyCovered[id] = struct{}{}
	}
	return result, nil
}

// identifiersForCoverage resolves the set of identifiers whose closures a
// batch invalidates. Not just the edge endpoints: every identifier whose
// previously computed closure contains one of those endpoints is included,
// because its cached closure may be stale even though its own edges did not
// change. The reverse lookup is one level deep; parents discovered here are
// not re-expanded.
func (p *Provider) identifiersForCoverage(tx *gorm.DB, batch []entities.EquivalencyCoverageRecord) (map[uint]struct{}, error) {
	endpoints := make(map[uint]struct{}, len(batch)*2)
	for _, record := range batch {
		endpoints[record.Equivalency.InputID] = struct{}{}
		endpoints[record.Equivalency.OutputID] = struct{}{}
	}

	endpointIDs := make([]uint, 0, len(endpoints))
	for id := range endpoints {
		endpointIDs = append(endpointIDs, id)
	}
	sort.Slice(endpointIDs, func(i, j int) bool { return endpointIDs[i] < endpointIDs[j] })

	parents, err := equivalents.NewRepository(tx).ParentsOf(endpointIDs)
	if err != nil {
		return nil, err
	}

	need := endpoints
	for _, id := range parents {
		need[id] = struct{}{}
	}
	return need, nil
}

func recordIDs(batch []entities.EquivalencyCoverageRecord) []uint {
	ids := make([]uint, 0, len(batch))
	for _, record := range batch {
		ids = append(ids, record.ID)
	}
	return ids
}

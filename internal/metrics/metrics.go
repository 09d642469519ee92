// Package metrics registers the prometheus instruments for the equivalence
// and search subsystems. Counters are package-level so the batch jobs can
// increment them without threading a registry through every call.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CoverageRecordsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "equivalency_coverage_records_processed_total",
		Help: "Total number of coverage ledger records pulled into batches.",
	})
	CoverageRecordsSucceeded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "equivalency_coverage_records_succeeded_total",
		Help: "Total number of coverage ledger records transitioned to success.",
	})
	CoverageBatchFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "equivalency_coverage_batch_failures_total",
		Help: "Total number of coverage batches rolled back by an error.",
	})
	ClosureRebuilds = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recursive_equivalents_rebuilds_total",
		Help: "Total number of identifiers whose closure cache was rebuilt.",
	})
	SearchDocumentsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "search_documents_submitted_total",
		Help: "Total number of documents submitted to the search index.",
	})
	SearchDocumentErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "search_document_errors_total",
		Help: "Total number of documents the search index rejected.",
	})
)

func init() {
	prometheus.MustRegister(
		CoverageRecordsProcessed,
		CoverageRecordsSucceeded,
		CoverageBatchFailures,
		ClosureRebuilds,
		SearchDocumentsSubmitted,
		SearchDocumentErrors,
	)
}

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName is the instrumentation scope for every ckg metric.
const InstrumentationName = "github.com/noumenal/ckg/internal/memory"

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Metrics holds the OTel instruments for the Unified Memory facade (C7)
// and the stores it composes. A nil *Metrics is a valid, inert value:
// every Record* method no-ops, so components can hold an unconditional
// *Metrics field without branching on whether telemetry is enabled.
type Metrics struct {
	searchDuration metric.Float64Histogram
	searchResults  metric.Int64Histogram

	documentsAdded   metric.Int64Counter
	documentsDeleted metric.Int64Counter
	documentErrors   metric.Int64Counter

	tierEvictions     metric.Int64Counter
	journalRecoveries metric.Int64Counter

	routerClassifications metric.Int64Counter
	rerankInvocations     metric.Int64Counter

	activeCollections metric.Int64UpDownCounter

	initialized bool
}

// NewMetrics creates every instrument against the given meter. A nil
// meter resolves to the OTel global meter provider (typically a no-op
// until a Telemetry instance calls otel.SetMeterProvider).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(InstrumentationName)
	}
	m := &Metrics{}
	var err error

	if m.searchDuration, err = meter.Float64Histogram(
		"ckg.search.duration",
		metric.WithDescription("Latency of Search across vector, graph, and rerank stages."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if m.searchResults, err = meter.Int64Histogram(
		"ckg.search.results",
		metric.WithDescription("Number of fused results returned per Search call."),
		metric.WithUnit("{result}"),
	); err != nil {
		return nil, err
	}

	if m.documentsAdded, err = meter.Int64Counter(
		"ckg.documents.added",
		metric.WithDescription("Total documents committed by addDocument, by collection."),
		metric.WithUnit("{document}"),
	); err != nil {
		return nil, err
	}

	if m.documentsDeleted, err = meter.Int64Counter(
		"ckg.documents.deleted",
		metric.WithDescription("Total documents removed by deleteDocument, by collection."),
		metric.WithUnit("{document}"),
	); err != nil {
		return nil, err
	}

	if m.documentErrors, err = meter.Int64Counter(
		"ckg.documents.errors",
		metric.WithDescription("Total addDocument/deleteDocument failures, by collection and op."),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}

	if m.tierEvictions, err = meter.Int64Counter(
		"ckg.tier.evictions",
		metric.WithDescription("Items demoted from the live HNSW graph to the cold store during Tick."),
		metric.WithUnit("{item}"),
	); err != nil {
		return nil, err
	}

	if m.journalRecoveries, err = meter.Int64Counter(
		"ckg.journal.recoveries",
		metric.WithDescription("Pending transaction records redone when a collection is opened."),
		metric.WithUnit("{transaction}"),
	); err != nil {
		return nil, err
	}

	if m.routerClassifications, err = meter.Int64Counter(
		"ckg.router.classifications",
		metric.WithDescription("Queries classified by the semantic router, by intent."),
		metric.WithUnit("{query}"),
	); err != nil {
		return nil, err
	}

	if m.rerankInvocations, err = meter.Int64Counter(
		"ckg.rerank.invocations",
		metric.WithDescription("Search calls that ran the cognitive reranker."),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}

	if m.activeCollections, err = meter.Int64UpDownCounter(
		"ckg.collections.active",
		metric.WithDescription("Collections currently open within this UnifiedMemory instance."),
		metric.WithUnit("{collection}"),
	); err != nil {
		return nil, err
	}

	m.initialized = true
	return m, nil
}

// RecordSearch records one Search call's latency, result count, and
// whether it ran the reranker.
func (m *Metrics) RecordSearch(ctx context.Context, duration time.Duration, resultCount int, reranked bool) {
	if m == nil || !m.initialized {
		return
	}
	m.searchDuration.Record(ctx, duration.Seconds())
	m.searchResults.Record(ctx, int64(resultCount))
	if reranked {
		m.rerankInvocations.Add(ctx, 1)
	}
}

// RecordDocumentAdded records a successful addDocument.
func (m *Metrics) RecordDocumentAdded(ctx context.Context, collection string) {
	if m == nil || !m.initialized {
		return
	}
	m.documentsAdded.Add(ctx, 1, metric.WithAttributes(attribute.String("collection", collection)))
}

// RecordDocumentDeleted records a successful deleteDocument.
func (m *Metrics) RecordDocumentDeleted(ctx context.Context, collection string) {
	if m == nil || !m.initialized {
		return
	}
	m.documentsDeleted.Add(ctx, 1, metric.WithAttributes(attribute.String("collection", collection)))
}

// RecordDocumentError records a failed addDocument/deleteDocument.
func (m *Metrics) RecordDocumentError(ctx context.Context, collection, op string) {
	if m == nil || !m.initialized {
		return
	}
	m.documentErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("collection", collection),
		attribute.String("op", op),
	))
}

// RecordTierEvictions records how many items Tick demoted to cold for
// one collection.
func (m *Metrics) RecordTierEvictions(ctx context.Context, collection string, count int) {
	if m == nil || !m.initialized || count == 0 {
		return
	}
	m.tierEvictions.Add(ctx, int64(count), metric.WithAttributes(attribute.String("collection", collection)))
}

// RecordJournalRecovery records how many pending transactions were
// redone when a collection's journal was opened.
func (m *Metrics) RecordJournalRecovery(ctx context.Context, collection string, count int) {
	if m == nil || !m.initialized || count == 0 {
		return
	}
	m.journalRecoveries.Add(ctx, int64(count), metric.WithAttributes(attribute.String("collection", collection)))
}

// RecordRouterClassification records one Classify call's chosen intent.
func (m *Metrics) RecordRouterClassification(ctx context.Context, intent string) {
	if m == nil || !m.initialized {
		return
	}
	m.routerClassifications.Add(ctx, 1, metric.WithAttributes(attribute.String("intent", intent)))
}

// RecordCollectionOpened tracks one more collection handle becoming live.
func (m *Metrics) RecordCollectionOpened(ctx context.Context) {
	if m == nil || !m.initialized {
		return
	}
	m.activeCollections.Add(ctx, 1)
}

// RecordCollectionsClosed tracks count collection handles going away
// (Close drops every handle at once).
func (m *Metrics) RecordCollectionsClosed(ctx context.Context, count int) {
	if m == nil || !m.initialized || count == 0 {
		return
	}
	m.activeCollections.Add(ctx, -int64(count))
}

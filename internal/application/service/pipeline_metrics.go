package service

import (
	"arxivshorts/internal/domain/valueobject"
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	ItemsProcessedCounterName     = "arxivshorts_items_processed_total"
	ItemFetchDurationName         = "arxivshorts_item_fetch_duration_seconds"
	CounterUpdateFailuresName     = "arxivshorts_counter_update_failures_total"
	BatchesTriggeredCounterName   = "arxivshorts_batches_triggered_total"
	PlaceholdersPaddedCounterName = "arxivshorts_placeholders_padded_total"
	JobsSubmittedCounterName      = "arxivshorts_jobs_submitted_total"
	JobsFinishedCounterName       = "arxivshorts_jobs_finished_total"
	OutputRecordsCounterName      = "arxivshorts_output_records_total"
)

// Attribute keys.
const (
	AttrDisposition = "disposition"
	AttrResult      = "result"
	AttrJobStatus   = "job_status"
	AttrOutcome     = "outcome"
)

// Output record outcomes.
const (
	OutcomeLoaded       = "loaded"
	OutcomePlaceholder  = "placeholder"
	OutcomeMalformed    = "malformed"
	OutcomeEmptyPayload = "empty_payload"
	OutcomeWriteFailure = "write_failure"
)

const meterName = "arxivshorts/pipeline"

func fetchLatencyBuckets() []float64 {
	return []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
}

// PipelineMetrics records pipeline throughput. A nil *PipelineMetrics is a no-op.
type PipelineMetrics struct {
	itemsProcessed     metric.Int64Counter
	fetchDuration      metric.Float64Histogram
	counterFailures    metric.Int64Counter
	batchesTriggered   metric.Int64Counter
	placeholdersPadded metric.Int64Counter
	jobsSubmitted      metric.Int64Counter
	jobsFinished       metric.Int64Counter
	outputRecords      metric.Int64Counter
}

// NewPipelineMetrics creates the instruments from provider, or from the global
// provider when provider is nil.
func NewPipelineMetrics(provider metric.MeterProvider) (*PipelineMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	var errs []error
	record := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	m := &PipelineMetrics{}
	var err error

	m.itemsProcessed, err = meter.Int64Counter(ItemsProcessedCounterName,
		metric.WithDescription("Work items processed by disposition"))
	record(err)
	m.fetchDuration, err = meter.Float64Histogram(ItemFetchDurationName,
		metric.WithDescription("Content fetch latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(fetchLatencyBuckets()...))
	record(err)
	m.counterFailures, err = meter.Int64Counter(CounterUpdateFailuresName,
		metric.WithDescription("Failed batch counter update attempts"))
	record(err)
	m.batchesTriggered, err = meter.Int64Counter(BatchesTriggeredCounterName,
		metric.WithDescription("Batch compile and dispatch runs"))
	record(err)
	m.placeholdersPadded, err = meter.Int64Counter(PlaceholdersPaddedCounterName,
		metric.WithDescription("Placeholder records added to compiled batches"))
	record(err)
	m.jobsSubmitted, err = meter.Int64Counter(JobsSubmittedCounterName,
		metric.WithDescription("Bulk inference job submissions"))
	record(err)
	m.jobsFinished, err = meter.Int64Counter(JobsFinishedCounterName,
		metric.WithDescription("Bulk inference jobs that reached a terminal state"))
	record(err)
	m.outputRecords, err = meter.Int64Counter(OutputRecordsCounterName,
		metric.WithDescription("Output artifact lines by outcome"))
	record(err)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return m, nil
}

// RecordItem counts one processed work item.
func (m *PipelineMetrics) RecordItem(ctx context.Context, disposition valueobject.Disposition) {
	if m == nil {
		return
	}
	m.itemsProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrDisposition, disposition.String())))
}

// RecordFetch records the latency of one content fetch.
func (m *PipelineMetrics) RecordFetch(ctx context.Context, duration time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.fetchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrResult, resultLabel(ok))))
}

// RecordCounterFailure counts one failed counter update attempt.
func (m *PipelineMetrics) RecordCounterFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.counterFailures.Add(ctx, 1)
}

// RecordBatchTriggered counts one compile and dispatch run.
func (m *PipelineMetrics) RecordBatchTriggered(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	m.batchesTriggered.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrResult, resultLabel(ok))))
}

// RecordPlaceholders counts placeholder records padded into a batch.
func (m *PipelineMetrics) RecordPlaceholders(ctx context.Context, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.placeholdersPadded.Add(ctx, int64(n))
}

// RecordJobSubmitted counts one job submission attempt.
func (m *PipelineMetrics) RecordJobSubmitted(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	m.jobsSubmitted.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrResult, resultLabel(ok))))
}

// RecordJobFinished counts a job reaching a terminal status.
func (m *PipelineMetrics) RecordJobFinished(ctx context.Context, status valueobject.JobStatus) {
	if m == nil {
		return
	}
	m.jobsFinished.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrJobStatus, status.String())))
}

// RecordOutputRecords counts output lines with the given outcome.
func (m *PipelineMetrics) RecordOutputRecords(ctx context.Context, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.outputRecords.Add(ctx, int64(n), metric.WithAttributes(attribute.String(AttrOutcome, outcome)))
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

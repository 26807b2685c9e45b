package service

import (
	"arxivshorts/internal/application/common/logging"
	"arxivshorts/internal/application/common/slogger"
	"arxivshorts/internal/domain/entity"
	"arxivshorts/internal/domain/valueobject"
	"arxivshorts/internal/port/inbound"
	"arxivshorts/internal/port/outbound"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrNotOutputArtifact = errors.New("object is not a bulk job output artifact")

// OutputLoaderService implements inbound.OutputLoader.
type OutputLoaderService struct {
	blobs   outbound.BlobStore
	results outbound.ResultRepository
	metrics *PipelineMetrics
}

// NewOutputLoader creates the output demultiplexer.
func NewOutputLoader(
	blobs outbound.BlobStore,
	results outbound.ResultRepository,
	metrics *PipelineMetrics,
) *OutputLoaderService {
	return &OutputLoaderService{blobs: blobs, results: results, metrics: metrics}
}

// Load reads one output artifact and upserts a result record per real item.
// Lines are handled sequentially and a bad line only skips itself.
func (l *OutputLoaderService) Load(ctx context.Context, key string) (*inbound.LoadSummary, error) {
	if !entity.IsOutputArtifactKey(key) {
		return nil, fmt.Errorf("%w: %s", ErrNotOutputArtifact, key)
	}

	data, err := l.blobs.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read output artifact %s: %w", key, err)
	}

	summary := &inbound.LoadSummary{Key: key}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		summary.Lines++
		l.loadLine(ctx, line, summary)
	}

	l.metrics.RecordOutputRecords(ctx, OutcomeLoaded, summary.Loaded)
	l.metrics.RecordOutputRecords(ctx, OutcomePlaceholder, summary.Placeholders)
	l.metrics.RecordOutputRecords(ctx, OutcomeMalformed, summary.Malformed)
	l.metrics.RecordOutputRecords(ctx, OutcomeEmptyPayload, summary.EmptyPayloads)
	l.metrics.RecordOutputRecords(ctx, OutcomeWriteFailure, summary.WriteFailures)

	slogger.Info(ctx, "Loaded output artifact", slogger.Fields{
		"key":            key,
		"lines":          summary.Lines,
		"loaded":         summary.Loaded,
		"placeholders":   summary.Placeholders,
		"malformed":      summary.Malformed,
		"empty_payloads": summary.EmptyPayloads,
		"write_failures": summary.WriteFailures,
	})
	return summary, nil
}

func (l *OutputLoaderService) loadLine(ctx context.Context, line string, summary *inbound.LoadSummary) {
	var out entity.BatchOutputRecord
	if err := json.Unmarshal([]byte(line), &out); err != nil {
		summary.Malformed++
		slogger.Warn(ctx, "Skipping malformed output line", slogger.Field("error", err.Error()))
		return
	}

	if valueobject.IsPlaceholderID(out.RecordID) ||
		valueobject.ContainsSkipSentinel(out.PromptText()) ||
		valueobject.ContainsSkipSentinel(out.GeneratedText()) {
		summary.Placeholders++
		slogger.Debug(ctx, "Skipping placeholder record", slogger.Field("record_id", out.RecordID))
		return
	}

	id, err := valueobject.ParseRecordID(out.RecordID)
	if err != nil {
		summary.Malformed++
		slogger.Warn(ctx, "Skipping output line with invalid recordId", slogger.Field("record_id", out.RecordID))
		return
	}
	itemCtx := logging.WithItemID(logging.WithBatchID(ctx, id.BatchID()), id.ItemID())

	payload, err := entity.ParseResultPayload(out.GeneratedText())
	if err != nil {
		summary.EmptyPayloads++
		slogger.Warn(itemCtx, "Generated text is not valid JSON, storing empty result", slogger.Field("error", err.Error()))
		payload = entity.ResultPayload{}
	}

	if err := l.results.Upsert(itemCtx, entity.NewResultRecord(id, payload)); err != nil {
		summary.WriteFailures++
		slogger.ErrorWithError(itemCtx, err, "Failed to upsert result record", nil)
		return
	}
	summary.Loaded++
}

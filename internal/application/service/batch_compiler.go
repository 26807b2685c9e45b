package service

import (
	"arxivshorts/internal/application/common/slogger"
	"arxivshorts/internal/domain/entity"
	"arxivshorts/internal/port/outbound"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"
)

var ErrInvalidThreshold = errors.New("batch threshold must be positive")

// CompiledBatch describes a serialized batch input artifact.
type CompiledBatch struct {
	BatchID      string
	InputKey     string
	Records      int
	Placeholders int
	Truncated    int
	Skipped      int
}

// BatchCompiler gathers item artifacts into one fixed-size batch input artifact.
type BatchCompiler struct {
	blobs     outbound.BlobStore
	prompts   *PromptBuilder
	threshold int
	metrics   *PipelineMetrics
}

// NewBatchCompiler creates a batch compiler producing exactly threshold records.
func NewBatchCompiler(
	blobs outbound.BlobStore,
	prompts *PromptBuilder,
	threshold int,
	metrics *PipelineMetrics,
) (*BatchCompiler, error) {
	if threshold <= 0 {
		return nil, ErrInvalidThreshold
	}
	return &BatchCompiler{blobs: blobs, prompts: prompts, threshold: threshold, metrics: metrics}, nil
}

// Threshold returns the number of records every compiled batch holds.
func (c *BatchCompiler) Threshold() int {
	return c.threshold
}

// Compile lists the batch's artifacts in key order, pads or truncates them to
// the threshold and writes the JSONL artifact under a new snapshot key. Every
// compile produces its own snapshot.
func (c *BatchCompiler) Compile(ctx context.Context, batchID string) (*CompiledBatch, error) {
	start := time.Now()

	keys, err := c.blobs.List(ctx, entity.ArtifactPrefix(batchID))
	if err != nil {
		return nil, fmt.Errorf("list artifacts for batch %s: %w", batchID, err)
	}
	slices.Sort(keys)

	compiled := &CompiledBatch{BatchID: batchID, InputKey: entity.NewCompiledBatchKey(batchID)}
	records := make([]entity.BatchRecord, 0, c.threshold)
	seen := make(map[string]struct{}, c.threshold)

	for _, key := range keys {
		if !entity.IsItemArtifactKey(key) {
			continue
		}
		data, err := c.blobs.Get(ctx, key)
		if err != nil {
			if errors.Is(err, outbound.ErrBlobNotFound) {
				continue
			}
			return nil, fmt.Errorf("read artifact %s: %w", key, err)
		}
		decoded, err := entity.DecodeArtifactRecords(batchID, data)
		if err != nil {
			compiled.Skipped++
			slogger.Warn(ctx, "Skipping unreadable artifact", slogger.Fields2("key", key, "error", err.Error()))
			continue
		}
		for _, record := range decoded {
			if _, dup := seen[record.RecordID]; dup {
				continue
			}
			seen[record.RecordID] = struct{}{}
			records = append(records, record)
		}
	}

	if len(records) > c.threshold {
		compiled.Truncated = len(records) - c.threshold
		slogger.Warn(ctx, "Batch has more artifacts than the threshold, truncating", slogger.Fields3(
			"artifacts", len(records),
			"threshold", c.threshold,
			"dropped", compiled.Truncated,
		))
		records = records[:c.threshold]
	}
	compiled.Records = len(records)

	placeholder := c.prompts.Placeholder()
	for n := 1; len(records) < c.threshold; n++ {
		records = append(records, entity.NewPlaceholderRecord(n, placeholder))
		compiled.Placeholders++
	}

	payload, err := encodeJSONL(records)
	if err != nil {
		return nil, err
	}
	if err := c.blobs.Put(ctx, compiled.InputKey, payload); err != nil {
		return nil, fmt.Errorf("write batch input %s: %w", compiled.InputKey, err)
	}

	c.metrics.RecordPlaceholders(ctx, compiled.Placeholders)
	slogger.Info(ctx, "Compiled batch input", slogger.Fields{
		"input_key":    compiled.InputKey,
		"records":      compiled.Records,
		"placeholders": compiled.Placeholders,
		"duration_ms":  time.Since(start).Milliseconds(),
	})
	return compiled, nil
}

func encodeJSONL(records []entity.BatchRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			return nil, fmt.Errorf("encode record %s: %w", record.RecordID, err)
		}
	}
	return buf.Bytes(), nil
}

package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Blob store layout.
const (
	InputArtifactsDir  = "input_jsons"
	CompiledBatchDir   = "output_jsonl"
	CompiledBatchStem  = "batch_prompts"
	CompiledBatchExt   = ".jsonl"
	OutputArtifactRoot = "inferred-outputs"
	OutputArtifactExt  = ".jsonl.out"
	artifactExt        = ".json"
)

var ErrArtifactMismatch = errors.New("artifact record does not match its batch")

// ArtifactPrefix returns the key prefix holding every item artifact of a batch.
func ArtifactPrefix(batchID string) string {
	return batchID + "/" + InputArtifactsDir + "/"
}

// ArtifactKey returns the key of one item's artifact. The item id is part of
// the key so a redelivered item overwrites its previous artifact.
func ArtifactKey(batchID, itemID string) string {
	return ArtifactPrefix(batchID) + keySafe(itemID) + artifactExt
}

// CompiledBatchKey returns the key of one serialized batch input snapshot.
// A snapshot is written once and read by both the submit and the output step
// of its job, so later compiles of the batch never change it.
func CompiledBatchKey(batchID, snapshotID string) string {
	return batchID + "/" + CompiledBatchDir + "/" + CompiledBatchStem + "-" + keySafe(snapshotID) + CompiledBatchExt
}

// NewCompiledBatchKey returns a compiled batch key with a fresh snapshot id.
func NewCompiledBatchKey(batchID string) string {
	return CompiledBatchKey(batchID, uuid.NewString())
}

// OutputPrefix returns the prefix the bulk job writes its results under.
func OutputPrefix(batchID string) string {
	return OutputArtifactRoot + "/" + batchID + "/"
}

// OutputArtifactKey returns the key of the output artifact produced by one job.
func OutputArtifactKey(outputPrefix, jobName string) string {
	return outputPrefix + keySafe(jobName) + OutputArtifactExt
}

// IsOutputArtifactKey reports whether key names a bulk job output artifact.
func IsOutputArtifactKey(key string) bool {
	return strings.Contains(key, OutputArtifactRoot+"/") && strings.HasSuffix(key, OutputArtifactExt)
}

// IsItemArtifactKey reports whether key names an item artifact.
func IsItemArtifactKey(key string) bool {
	return strings.Contains(key, "/"+InputArtifactsDir+"/") && strings.HasSuffix(key, artifactExt)
}

// keySafe escapes s into a single key segment. The escaping is reversible, so
// distinct ids never share a key.
func keySafe(s string) string {
	return url.PathEscape(s)
}

// ItemArtifact is the persisted prompt record of one successfully processed item.
type ItemArtifact struct {
	batchID string
	itemID  string
	record  BatchRecord
}

// NewItemArtifact builds the artifact for a processed work item.
func NewItemArtifact(item *WorkItem, input ModelInput) *ItemArtifact {
	return &ItemArtifact{
		batchID: item.BatchID(),
		itemID:  item.ItemID(),
		record:  NewPromptRecord(item.RecordID(), input),
	}
}

// BatchID returns the batch id.
func (a *ItemArtifact) BatchID() string { return a.batchID }

// ItemID returns the item id.
func (a *ItemArtifact) ItemID() string { return a.itemID }

// Record returns the prompt record.
func (a *ItemArtifact) Record() BatchRecord { return a.record }

// Key returns the blob key of the artifact.
func (a *ItemArtifact) Key() string { return ArtifactKey(a.batchID, a.itemID) }

// Encode serializes the artifact payload.
func (a *ItemArtifact) Encode() ([]byte, error) {
	return json.Marshal(a.record)
}

// DecodeArtifactRecords reads an artifact body that holds either a single
// record object or a list of records, and keeps only records of batchID.
func DecodeArtifactRecords(batchID string, data []byte) ([]BatchRecord, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}

	var raws []json.RawMessage
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &raws); err != nil {
			return nil, fmt.Errorf("decode artifact list: %w", err)
		}
	} else {
		raws = []json.RawMessage{json.RawMessage(trimmed)}
	}

	records := make([]BatchRecord, 0, len(raws))
	for _, raw := range raws {
		record, err := DecodeBatchRecord(raw)
		if err != nil {
			return nil, err
		}
		if record.IsPlaceholder() {
			continue
		}
		if !strings.HasPrefix(record.RecordID, batchID+"#") {
			return nil, fmt.Errorf("%w: %s", ErrArtifactMismatch, record.RecordID)
		}
		records = append(records, record)
	}
	return records, nil
}

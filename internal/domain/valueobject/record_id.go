package valueobject

import (
	"errors"
	"fmt"
	"strings"
)

// Record identifier conventions shared by the batch input and output artifacts.
const (
	// RecordIDSeparator joins the batch id and the item id inside a record id.
	RecordIDSeparator = "#"
	// PlaceholderPrefix marks padding records that carry no real item.
	PlaceholderPrefix = "dummy_"
	// SkipSentinel is embedded in placeholder prompts so their outputs can be discarded.
	SkipSentinel = "SKIP PARSING THIS RECORD"
)

var (
	ErrEmptyBatchID        = errors.New("batch id cannot be empty")
	ErrEmptyItemID         = errors.New("item id cannot be empty")
	ErrMalformedRecordID   = errors.New("malformed record id")
	ErrSeparatorInBatchID  = errors.New("batch id cannot contain the record separator")
	ErrPlaceholderRecordID = errors.New("record id refers to a placeholder")
)

// RecordID is the composite "<batch_id>#<item_id>" key of a real batch record.
type RecordID struct {
	batchID string
	itemID  string
}

// NewRecordID builds a record id from its parts.
func NewRecordID(batchID, itemID string) (RecordID, error) {
	if strings.TrimSpace(batchID) == "" {
		return RecordID{}, ErrEmptyBatchID
	}
	if strings.TrimSpace(itemID) == "" {
		return RecordID{}, ErrEmptyItemID
	}
	if strings.Contains(batchID, RecordIDSeparator) {
		return RecordID{}, ErrSeparatorInBatchID
	}
	return RecordID{batchID: batchID, itemID: itemID}, nil
}

// ParseRecordID splits a raw record id on the first separator.
// Placeholder ids and ids without a separator are rejected.
func ParseRecordID(raw string) (RecordID, error) {
	if IsPlaceholderID(raw) {
		return RecordID{}, fmt.Errorf("%w: %s", ErrPlaceholderRecordID, raw)
	}
	batchID, itemID, found := strings.Cut(raw, RecordIDSeparator)
	if !found || batchID == "" || itemID == "" {
		return RecordID{}, fmt.Errorf("%w: %q", ErrMalformedRecordID, raw)
	}
	return RecordID{batchID: batchID, itemID: itemID}, nil
}

// BatchID returns the batch part.
func (r RecordID) BatchID() string {
	return r.batchID
}

// ItemID returns the item part.
func (r RecordID) ItemID() string {
	return r.itemID
}

// String returns the wire form of the record id.
func (r RecordID) String() string {
	return r.batchID + RecordIDSeparator + r.itemID
}

// IsZero reports whether the record id was never initialized.
func (r RecordID) IsZero() bool {
	return r.batchID == "" && r.itemID == ""
}

// PlaceholderID returns the n-th placeholder id, counting from 1.
func PlaceholderID(n int) string {
	return fmt.Sprintf("%s%d", PlaceholderPrefix, n)
}

// IsPlaceholderID reports whether raw names a padding record, either directly
// ("dummy_3") or as the item part of a composite id ("B1#dummy_3").
func IsPlaceholderID(raw string) bool {
	if strings.HasPrefix(raw, PlaceholderPrefix) {
		return true
	}
	_, itemID, found := strings.Cut(raw, RecordIDSeparator)
	return found && strings.HasPrefix(itemID, PlaceholderPrefix)
}

// ContainsSkipSentinel reports whether text carries the placeholder skip instruction.
func ContainsSkipSentinel(text string) bool {
	return strings.Contains(text, SkipSentinel)
}

package entity

import (
	"arxivshorts/internal/domain/valueobject"
	"encoding/json"
	"errors"
	"fmt"
)

// RecordKind discriminates the two variants of a batch input record.
type RecordKind string

// Record kinds.
const (
	RecordKindPrompt      RecordKind = "prompt"
	RecordKindPlaceholder RecordKind = "placeholder"
)

// RoleUser is the only role the pipeline sends.
const RoleUser = "user"

// ContentTypeText tags a text content block.
const ContentTypeText = "text"

var ErrEmptyRecordID = errors.New("record has no recordId")

// ContentBlock is one piece of message content.
type ContentBlock struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

// Message is a single chat turn inside a model input.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ModelInput is the request body the bulk job executor runs for one record.
type ModelInput struct {
	AnthropicVersion string    `json:"anthropic_version,omitempty"`
	MaxTokens        int       `json:"max_tokens"`
	Messages         []Message `json:"messages"`
}

// NewTextModelInput builds a single-turn user prompt.
func NewTextModelInput(text string, maxTokens int) ModelInput {
	return ModelInput{
		MaxTokens: maxTokens,
		Messages: []Message{{
			Role:    RoleUser,
			Content: []ContentBlock{{Type: ContentTypeText, Text: text}},
		}},
	}
}

// PromptText returns the text of the first content block of the first message.
func (m ModelInput) PromptText() string {
	if len(m.Messages) == 0 || len(m.Messages[0].Content) == 0 {
		return ""
	}
	return m.Messages[0].Content[0].Text
}

// BatchRecord is one line of a batch input artifact: either a real prompt or a
// placeholder that pads the batch to its required size.
type BatchRecord struct {
	Kind       RecordKind `json:"-"`
	RecordID   string     `json:"recordId"`
	ModelInput ModelInput `json:"modelInput"`
}

// NewPromptRecord builds the record for a real work item.
func NewPromptRecord(id valueobject.RecordID, input ModelInput) BatchRecord {
	return BatchRecord{Kind: RecordKindPrompt, RecordID: id.String(), ModelInput: input}
}

// NewPlaceholderRecord builds the n-th padding record.
func NewPlaceholderRecord(n int, input ModelInput) BatchRecord {
	return BatchRecord{Kind: RecordKindPlaceholder, RecordID: valueobject.PlaceholderID(n), ModelInput: input}
}

// IsPlaceholder reports whether the record is padding.
func (r BatchRecord) IsPlaceholder() bool {
	return r.Kind == RecordKindPlaceholder
}

// DecodeBatchRecord parses one input line and derives its kind from the id and prompt.
func DecodeBatchRecord(data []byte) (BatchRecord, error) {
	var record BatchRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return BatchRecord{}, fmt.Errorf("decode batch record: %w", err)
	}
	if record.RecordID == "" {
		return BatchRecord{}, ErrEmptyRecordID
	}
	record.Kind = RecordKindPrompt
	if valueobject.IsPlaceholderID(record.RecordID) || valueobject.ContainsSkipSentinel(record.ModelInput.PromptText()) {
		record.Kind = RecordKindPlaceholder
	}
	return record, nil
}

// ModelOutput is the generated content for one record.
type ModelOutput struct {
	Content []ContentBlock `json:"content"`
}

// BatchOutputRecord is one line of a batch output artifact.
type BatchOutputRecord struct {
	RecordID    string      `json:"recordId"`
	ModelInput  *ModelInput `json:"modelInput,omitempty"`
	ModelOutput ModelOutput `json:"modelOutput"`
	Error       string      `json:"error,omitempty"`
}

// GeneratedText returns the text of the first output content block.
func (o BatchOutputRecord) GeneratedText() string {
	if len(o.ModelOutput.Content) == 0 {
		return ""
	}
	return o.ModelOutput.Content[0].Text
}

// PromptText returns the echoed prompt text, if the executor included it.
func (o BatchOutputRecord) PromptText() string {
	if o.ModelInput == nil {
		return ""
	}
	return o.ModelInput.PromptText()
}

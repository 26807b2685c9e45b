// Package messaging defines the wire schema of work item queue messages.
package messaging

import (
	"arxivshorts/internal/domain/entity"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyMessage   = errors.New("message body is empty")
	ErrMissingBatchID = errors.New("message has no batch_id")
	ErrMissingItemID  = errors.New("message has no item id")
)

// WorkItemMessage is the JSON body published for every work item.
// The producer writes article_id; item_id is accepted as an alias.
type WorkItemMessage struct {
	BatchID       string   `json:"batch_id"`
	ItemID        string   `json:"item_id,omitempty"`
	ArticleID     string   `json:"article_id,omitempty"`
	SourceLocator string   `json:"source_locator,omitempty"`
	Title         string   `json:"title"`
	Abstract      string   `json:"abstract"`
	Authors       []string `json:"authors"`
	URL           string   `json:"url"`
}

// DecodeWorkItemMessage parses a message body.
func DecodeWorkItemMessage(data []byte) (*WorkItemMessage, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, ErrEmptyMessage
	}
	var msg WorkItemMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal work item message: %w", err)
	}
	return &msg, nil
}

// ResolvedItemID returns item_id, falling back to article_id.
func (m *WorkItemMessage) ResolvedItemID() string {
	if m.ItemID != "" {
		return m.ItemID
	}
	return m.ArticleID
}

// Validate checks the fields needed to account for the message.
func (m *WorkItemMessage) Validate() error {
	if strings.TrimSpace(m.BatchID) == "" {
		return ErrMissingBatchID
	}
	if strings.TrimSpace(m.ResolvedItemID()) == "" {
		return ErrMissingItemID
	}
	return nil
}

// ToWorkItem converts the message into a domain WorkItem.
func (m *WorkItemMessage) ToWorkItem() (*entity.WorkItem, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return entity.NewWorkItem(
		m.BatchID,
		m.ResolvedItemID(),
		m.SourceLocator,
		m.Title,
		m.Abstract,
		m.Authors,
		m.URL,
	)
}

// Encode serializes the message body.
func (m *WorkItemMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

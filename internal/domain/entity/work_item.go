package entity

import (
	"arxivshorts/internal/domain/valueobject"
	"errors"
	"strings"
)

var ErrMissingSourceLocator = errors.New("work item has no source locator")

// WorkItem is one article queued for summarization. It is immutable once built.
type WorkItem struct {
	recordID      valueobject.RecordID
	sourceLocator string
	title         string
	abstract      string
	authors       []string
	url           string
}

// NewWorkItem creates a WorkItem. The source locator falls back to url when empty.
func NewWorkItem(
	batchID, itemID, sourceLocator, title, abstract string,
	authors []string,
	url string,
) (*WorkItem, error) {
	recordID, err := valueobject.NewRecordID(batchID, itemID)
	if err != nil {
		return nil, err
	}

	locator := strings.TrimSpace(sourceLocator)
	if locator == "" {
		locator = strings.TrimSpace(url)
	}
	if locator == "" {
		return nil, ErrMissingSourceLocator
	}

	authorsCopy := make([]string, len(authors))
	copy(authorsCopy, authors)

	return &WorkItem{
		recordID:      recordID,
		sourceLocator: locator,
		title:         title,
		abstract:      abstract,
		authors:       authorsCopy,
		url:           url,
	}, nil
}

// BatchID returns the batch the item belongs to.
func (w *WorkItem) BatchID() string { return w.recordID.BatchID() }

// ItemID returns the item identifier.
func (w *WorkItem) ItemID() string { return w.recordID.ItemID() }

// RecordID returns the composite record id.
func (w *WorkItem) RecordID() valueobject.RecordID { return w.recordID }

// SourceLocator returns the location the content fetcher reads from.
func (w *WorkItem) SourceLocator() string { return w.sourceLocator }

// Title returns the article title.
func (w *WorkItem) Title() string { return w.title }

// Abstract returns the article abstract.
func (w *WorkItem) Abstract() string { return w.abstract }

// Authors returns a copy of the author list.
func (w *WorkItem) Authors() []string {
	out := make([]string, len(w.authors))
	copy(out, w.authors)
	return out
}

// URL returns the canonical article URL.
func (w *WorkItem) URL() string { return w.url }

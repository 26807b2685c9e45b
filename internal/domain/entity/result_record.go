package entity

import (
	"arxivshorts/internal/domain/valueobject"
	"encoding/json"
	"strings"
	"time"
)

// StringList decodes either a JSON array of strings or a single comma-separated string.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*l = nil
	for _, part := range strings.Split(single, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

// ResultPayload is the structured summary the model generates for an article.
type ResultPayload struct {
	Headline  string     `json:"headline"`
	Summary   string     `json:"summary"`
	Eyebrow   string     `json:"eyebrow"`
	Byline    string     `json:"byline"`
	URL       string     `json:"url"`
	Authors   StringList `json:"authors"`
	ArticleID string     `json:"articleId"`
}

// ParseResultPayload decodes generated text. Callers substitute an empty
// payload on error.
func ParseResultPayload(text string) (ResultPayload, error) {
	var payload ResultPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &payload); err != nil {
		return ResultPayload{}, err
	}
	return payload, nil
}

// ResultRecord is the loaded summary of one item, keyed by (batch id, item id).
type ResultRecord struct {
	batchID    string
	itemID     string
	headline   string
	summary    string
	byline     string
	articleURL string
	authors    []string
	articleID  string
	loadedAt   time.Time
}

// NewResultRecord derives a result record from a parsed payload. The byline
// prefers the eyebrow field and the article id defaults to the item id.
func NewResultRecord(id valueobject.RecordID, payload ResultPayload) *ResultRecord {
	byline := payload.Eyebrow
	if byline == "" {
		byline = payload.Byline
	}
	articleID := payload.ArticleID
	if articleID == "" {
		articleID = id.ItemID()
	}
	authors := []string(payload.Authors)
	if authors == nil {
		authors = []string{}
	}
	return &ResultRecord{
		batchID:    id.BatchID(),
		itemID:     id.ItemID(),
		headline:   payload.Headline,
		summary:    payload.Summary,
		byline:     byline,
		articleURL: payload.URL,
		authors:    authors,
		articleID:  articleID,
		loadedAt:   time.Now(),
	}
}

// RestoreResultRecord creates a ResultRecord from stored data.
func RestoreResultRecord(
	batchID, itemID, headline, summary, byline, articleURL string,
	authors []string,
	articleID string,
	loadedAt time.Time,
) *ResultRecord {
	return &ResultRecord{
		batchID:    batchID,
		itemID:     itemID,
		headline:   headline,
		summary:    summary,
		byline:     byline,
		articleURL: articleURL,
		authors:    authors,
		articleID:  articleID,
		loadedAt:   loadedAt,
	}
}

// BatchID returns the batch id.
func (r *ResultRecord) BatchID() string { return r.batchID }

// ItemID returns the item id.
func (r *ResultRecord) ItemID() string { return r.itemID }

// Headline returns the generated headline.
func (r *ResultRecord) Headline() string { return r.headline }

// Summary returns the generated summary.
func (r *ResultRecord) Summary() string { return r.summary }

// Byline returns the short eyebrow line.
func (r *ResultRecord) Byline() string { return r.byline }

// ArticleURL returns the canonical article URL.
func (r *ResultRecord) ArticleURL() string { return r.articleURL }

// Authors returns the author list.
func (r *ResultRecord) Authors() []string { return r.authors }

// ArticleID returns the canonical article id.
func (r *ResultRecord) ArticleID() string { return r.articleID }

// LoadedAt returns when the record was derived.
func (r *ResultRecord) LoadedAt() time.Time { return r.loadedAt }

// IsEmpty reports whether the model produced no usable fields.
func (r *ResultRecord) IsEmpty() bool {
	return r.headline == "" && r.summary == "" && r.byline == "" && r.articleURL == "" && len(r.authors) == 0
}

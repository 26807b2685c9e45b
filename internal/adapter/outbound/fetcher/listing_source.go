package fetcher

import (
	"arxivshorts/internal/application/common/slogger"
	"arxivshorts/internal/domain/messaging"
	"arxivshorts/internal/port/outbound"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DatePlaceholder is replaced by the batch id in the listing URL template.
const DatePlaceholder = "{{date}}"

// ListingSource implements outbound.ListingSource over the daily arXiv catch-up page.
type ListingSource struct {
	urlTemplate string
	config      Config
}

var _ outbound.ListingSource = (*ListingSource)(nil)

// NewListingSource creates a listing source for urlTemplate.
func NewListingSource(urlTemplate string, cfg Config) (*ListingSource, error) {
	if strings.TrimSpace(urlTemplate) == "" {
		return nil, errors.New("listing URL template cannot be empty")
	}
	return &ListingSource{urlTemplate: urlTemplate, config: cfg.withDefaults()}, nil
}

// URLFor returns the listing URL of a batch.
func (s *ListingSource) URLFor(batchID string) string {
	return strings.ReplaceAll(s.urlTemplate, DatePlaceholder, batchID)
}

// FetchListing downloads and parses the listing of batchID.
func (s *ListingSource) FetchListing(ctx context.Context, batchID string) ([]*messaging.WorkItemMessage, error) {
	url := s.URLFor(batchID)
	page, err := getPage(ctx, s.config, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing %s: %w", url, err)
	}

	items, total, err := ParseListing(page, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing %s: %w", url, err)
	}
	slogger.Info(ctx, "Parsed listing", slogger.Fields3(
		"url", url,
		"entries", total,
		"with_html", len(items),
	))
	return items, nil
}

// ParseListing reads the dt/dd pairs of dl#articles and keeps the entries
// that link an HTML rendering. It also returns the number of entries seen.
func ParseListing(page []byte, batchID string) ([]*messaging.WorkItemMessage, int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, 0, err
	}

	articles := doc.Find("dl#articles").First()
	if articles.Length() == 0 {
		slogger.WarnNoCtx("Listing has no articles list", nil)
		return []*messaging.WorkItemMessage{}, 0, nil
	}

	var (
		items     = []*messaging.WorkItemMessage{}
		total     int
		articleID string
		htmlURL   string
	)
	articles.Children().Each(func(_ int, child *goquery.Selection) {
		switch goquery.NodeName(child) {
		case "dt":
			total++
			articleID, htmlURL = parseListingTerm(child)
		case "dd":
			if articleID == "" || htmlURL == "" {
				return
			}
			items = append(items, parseListingDescription(child, batchID, articleID, htmlURL))
			articleID, htmlURL = "", ""
		}
	})
	return items, total, nil
}

func parseListingTerm(dt *goquery.Selection) (articleID, htmlURL string) {
	dt.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		switch {
		case strings.Contains(href, "/abs/"):
			if id, ok := a.Attr("id"); ok {
				articleID = strings.TrimSpace(id)
			}
		case strings.Contains(href, "/html/"):
			htmlURL = strings.TrimSpace(href)
		}
	})
	return articleID, htmlURL
}

func parseListingDescription(dd *goquery.Selection, batchID, articleID, htmlURL string) *messaging.WorkItemMessage {
	title := normSpace(dd.Find("div.list-title.mathjax").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))

	authors := []string{}
	dd.Find("div.list-authors a").Each(func(_ int, a *goquery.Selection) {
		if name := normSpace(a.Text()); name != "" {
			authors = append(authors, name)
		}
	})

	return &messaging.WorkItemMessage{
		BatchID:   batchID,
		ArticleID: articleID,
		Title:     title,
		Abstract:  normSpace(dd.Find("p.mathjax").First().Text()),
		Authors:   authors,
		URL:       htmlURL,
	}
}

package fetcher

import (
	"arxivshorts/internal/application/common/slogger"
	"arxivshorts/internal/port/outbound"
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const sectionSeparator = "\n\n"

// ArticleFetcher implements outbound.ContentFetcher for arXiv HTML articles.
type ArticleFetcher struct {
	config Config
}

var _ outbound.ContentFetcher = (*ArticleFetcher)(nil)

// NewArticleFetcher creates a fetcher; zero config fields take defaults.
func NewArticleFetcher(cfg Config) *ArticleFetcher {
	return &ArticleFetcher{config: cfg.withDefaults()}
}

// Fetch downloads the article at locator and extracts its sections from the
// table of contents. A page without a usable TOC yields empty sections.
func (f *ArticleFetcher) Fetch(ctx context.Context, locator string) (*outbound.Sections, error) {
	page, err := getPage(ctx, f.config, locator)
	if err != nil {
		return nil, &outbound.FetchError{Kind: outbound.FetchErrorUnreachable, Locator: locator, Err: err}
	}

	sections, err := ExtractSections(page)
	if err != nil {
		return nil, &outbound.FetchError{Kind: outbound.FetchErrorParseFailure, Locator: locator, Err: err}
	}
	if sections.IsEmpty() {
		slogger.Debug(ctx, "Article has no recognizable sections", slogger.Field("locator", locator))
	}
	return sections, nil
}

// ExtractSections walks the article TOC and collects the introduction, the
// experiment or method sections and the result or evaluation sections.
func ExtractSections(page []byte) (*outbound.Sections, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	sections := &outbound.Sections{}
	toc := doc.Find("nav.ltx_TOC ol.ltx_toclist").First()
	if toc.Length() == 0 {
		return sections, nil
	}

	collectSections(doc, toc, sections)
	return sections, nil
}

// collectSections visits the entries of one TOC list. A matching entry takes
// its whole section, nested subsections included, so its children are only
// visited when the entry itself does not match.
func collectSections(doc *goquery.Document, list *goquery.Selection, sections *outbound.Sections) {
	list.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		if !collectEntry(doc, li, sections) {
			collectSections(doc, li.ChildrenFiltered("ol"), sections)
		}
	})
}

func collectEntry(doc *goquery.Document, li *goquery.Selection, sections *outbound.Sections) bool {
	link := li.ChildrenFiltered("a[href]").First()
	href, _ := link.Attr("href")
	_, sectionID, ok := strings.Cut(href, "#")
	if !ok || sectionID == "" {
		return false
	}

	// Ids such as "S2.SS1" are not valid CSS id selectors.
	section := doc.Find("section").FilterFunction(func(_ int, s *goquery.Selection) bool {
		id, _ := s.Attr("id")
		return id == sectionID
	}).First()
	if section.Length() == 0 {
		return false
	}

	text := nodeText(section)
	title := strings.ToLower(normSpace(link.Text()))
	switch {
	case strings.Contains(title, "introduction"):
		sections.Introduction = text
	case strings.Contains(title, "experiment"), strings.Contains(title, "method"):
		sections.Experiment = appendSection(sections.Experiment, text)
	case strings.Contains(title, "result"), strings.Contains(title, "evaluation"):
		sections.Results = appendSection(sections.Results, text)
	default:
		return false
	}
	return true
}

func appendSection(existing, text string) string {
	if existing == "" {
		return text
	}
	return existing + sectionSeparator + text
}

// nodeText joins the text nodes under sel with single spaces so adjacent
// block elements do not run together.
func nodeText(sel *goquery.Selection) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return normSpace(strings.Join(parts, " "))
}

package outbound

import (
	"context"
	"fmt"
	"strings"
)

// FetchErrorKind classifies content fetch failures.
type FetchErrorKind string

// Fetch error kinds.
const (
	FetchErrorUnreachable  FetchErrorKind = "unreachable"
	FetchErrorParseFailure FetchErrorKind = "parse_failure"
)

// FetchError is returned by ContentFetcher implementations.
type FetchError struct {
	Kind    FetchErrorKind
	Locator string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.Locator, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.Locator, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Sections holds the article sections a prompt is built from.
type Sections struct {
	Introduction string
	Experiment   string
	Results      string
}

// IsEmpty reports whether no section carries text.
func (s Sections) IsEmpty() bool {
	return strings.TrimSpace(s.Introduction) == "" &&
		strings.TrimSpace(s.Experiment) == "" &&
		strings.TrimSpace(s.Results) == ""
}

// ContentFetcher reads an article and extracts its sections.
type ContentFetcher interface {
	// Fetch retrieves the page at locator. Implementations bound the network
	// call with a timeout and return a *FetchError on failure.
	Fetch(ctx context.Context, locator string) (*Sections, error)
}

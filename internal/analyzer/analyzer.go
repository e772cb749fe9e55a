package analyzer

import (
	"context"
	"net/url"
	"time"
)

// Config holds analyzer configuration
type Config struct {
	FetchTimeout     time.Duration
	ProbeTimeout     time.Duration
	ProbeConcurrency int
}

// DefaultConfig returns default analyzer configuration
func DefaultConfig() *Config {
	return &Config{
		FetchTimeout:     10 * time.Second,
		ProbeTimeout:     5 * time.Second,
		ProbeConcurrency: 10,
	}
}

// Result is the aggregated structural report for one page. A failed fetch is
// represented by FetchError alongside zero-valued counts, never by a missing
// Result.
type Result struct {
	HTMLVersion        string         `json:"html_version"`
	Title              string         `json:"title"`
	HeadingCounts      map[string]int `json:"heading_counts"`
	InternalLinksCount int            `json:"internal_links_count"`
	ExternalLinksCount int            `json:"external_links_count"`
	BrokenLinks        []BrokenLink   `json:"broken_links"`
	HasLoginForm       bool           `json:"has_login_form"`
	FetchError         string         `json:"fetch_error,omitempty"`
}

// Analyzer runs the full page-analysis pipeline
type Analyzer struct {
	fetcher *Fetcher
	prober  *Prober
}

// New creates an Analyzer from the given configuration
func New(config *Config) *Analyzer {
	if config == nil {
		config = DefaultConfig()
	}
	return &Analyzer{
		fetcher: NewFetcher(config.FetchTimeout),
		prober:  NewProber(config.ProbeTimeout, config.ProbeConcurrency),
	}
}

// Analyze fetches pageURL, parses it, classifies and liveness-checks its
// links, and detects login forms. It never returns an error: page-level
// failures are recorded in Result.FetchError and leave every count at zero.
func (a *Analyzer) Analyze(ctx context.Context, pageURL string) *Result {
	result := &Result{
		HTMLVersion:   UnknownHTMLVersion,
		HeadingCounts: emptyHeadingCounts(),
	}

	content, err := a.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		result.FetchError = err.Error()
		return result
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		result.FetchError = err.Error()
		return result
	}

	page, err := ParsePage(content)
	if err != nil {
		result.FetchError = err.Error()
		return result
	}

	result.HTMLVersion = page.HTMLVersion()
	result.Title = page.Title()
	result.HeadingCounts = page.HeadingCounts()
	result.HasLoginForm = page.HasLoginForm()

	hrefs := page.AnchorHrefs()
	internal, external, resolved := ClassifyLinks(hrefs, base)
	result.InternalLinksCount = internal
	result.ExternalLinksCount = external
	result.BrokenLinks = a.prober.Probe(ctx, resolved)

	return result
}

func emptyHeadingCounts() map[string]int {
	return map[string]int{"h1": 0, "h2": 0, "h3": 0, "h4": 0, "h5": 0, "h6": 0}
}

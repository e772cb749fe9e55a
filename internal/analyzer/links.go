package analyzer

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
)

// BrokenLink records one unreachable link. StatusCode is nil when the probe
// itself failed (timeout, DNS, refused connection) rather than returned an
// HTTP error status.
type BrokenLink struct {
	URL        string `json:"url"`
	StatusCode *int   `json:"status_code"`
}

// ClassifyLinks resolves each href against the page URL and labels it internal
// or external by exact host comparison. Every href is classified: an href that
// cannot be parsed counts as external and is passed through unresolved so the
// liveness probe records it as broken. No deduplication is performed, so
// internal+external always equals len(hrefs).
func ClassifyLinks(hrefs []string, base *url.URL) (internal, external int, resolved []string) {
	resolved = make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		ref, err := url.Parse(href)
		if err != nil {
			external++
			resolved = append(resolved, href)
			continue
		}

		abs := base.ResolveReference(ref)
		if abs.Host == base.Host {
			internal++
		} else {
			external++
		}
		resolved = append(resolved, abs.String())
	}
	return internal, external, resolved
}

// Prober issues lightweight existence checks against resolved links
type Prober struct {
	client      *http.Client
	concurrency int
}

// NewProber creates a Prober with the given per-probe timeout and worker
// limit. Redirects are followed.
func NewProber(timeout time.Duration, concurrency int) *Prober {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Prober{
		concurrency: concurrency,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxConnsPerHost:     concurrency,
				MaxIdleConnsPerHost: concurrency,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Probe checks every link with a HEAD request using a bounded pool of workers.
// Only failures are reported: a response status >= 400 yields an entry with
// that code, a probe error yields an entry with no code. Reachable links
// produce nothing. Entries keep the input order.
func (p *Prober) Probe(ctx context.Context, links []string) []BrokenLink {
	if len(links) == 0 {
		return nil
	}

	results := make([]*BrokenLink, len(links))

	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)
	for i, link := range links {
		i, link := i, link
		g.Go(func() error {
			results[i] = p.probeOne(ctx, link)
			return nil
		})
	}
	g.Wait()

	var broken []BrokenLink
	for _, r := range results {
		if r != nil {
			broken = append(broken, *r)
		}
	}
	return broken
}

// probeOne returns a BrokenLink if the target is unreachable, nil otherwise
func (p *Prober) probeOne(ctx context.Context, link string) *BrokenLink {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
	if err != nil {
		return &BrokenLink{URL: link}
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return &BrokenLink{URL: link}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		code := resp.StatusCode
		return &BrokenLink{URL: link, StatusCode: &code}
	}
	return nil
}

package analyzer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testAnalyzer() *Analyzer {
	return New(&Config{
		FetchTimeout:     2 * time.Second,
		ProbeTimeout:     2 * time.Second,
		ProbeConcurrency: 4,
	})
}

func TestAnalyze(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Sample Page</title></head>
<body>
	<h1>Main</h1>
	<h2>Sub one</h2>
	<h2>Sub two</h2>
	<a href="/alive">internal ok</a>
	<a href="/dead">internal broken</a>
	<a href="http://external.invalid/x">external unreachable</a>
	<form action="/login"><input type="text" name="u"><input type="password" name="p"></form>
</body>
</html>`)
	})
	mux.HandleFunc("/alive", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/dead", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	result := testAnalyzer().Analyze(context.Background(), server.URL)

	if result.FetchError != "" {
		t.Fatalf("unexpected fetch error: %s", result.FetchError)
	}
	if result.HTMLVersion != "html" {
		t.Errorf("HTMLVersion = %q, want %q", result.HTMLVersion, "html")
	}
	if result.Title != "Sample Page" {
		t.Errorf("Title = %q, want %q", result.Title, "Sample Page")
	}
	if result.HeadingCounts["h1"] != 1 || result.HeadingCounts["h2"] != 2 {
		t.Errorf("heading counts = %v, want h1=1 h2=2", result.HeadingCounts)
	}
	if result.InternalLinksCount != 2 {
		t.Errorf("InternalLinksCount = %d, want 2", result.InternalLinksCount)
	}
	if result.ExternalLinksCount != 1 {
		t.Errorf("ExternalLinksCount = %d, want 1", result.ExternalLinksCount)
	}
	if !result.HasLoginForm {
		t.Error("HasLoginForm = false, want true")
	}

	// /dead responds 404, external.invalid does not resolve.
	if len(result.BrokenLinks) != 2 {
		t.Fatalf("BrokenLinks = %+v, want 2 entries", result.BrokenLinks)
	}
	var withCode, withoutCode int
	for _, bl := range result.BrokenLinks {
		if bl.StatusCode != nil {
			withCode++
			if *bl.StatusCode != http.StatusNotFound {
				t.Errorf("status code = %d, want 404", *bl.StatusCode)
			}
		} else {
			withoutCode++
		}
	}
	if withCode != 1 || withoutCode != 1 {
		t.Errorf("broken link codes: %d with code, %d without; want 1 and 1", withCode, withoutCode)
	}
}

func TestAnalyzeFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	result := testAnalyzer().Analyze(context.Background(), server.URL)

	if result.FetchError == "" {
		t.Fatal("expected a fetch error description")
	}
	if result.HTMLVersion != UnknownHTMLVersion {
		t.Errorf("HTMLVersion = %q, want %q", result.HTMLVersion, UnknownHTMLVersion)
	}
	if result.Title != "" {
		t.Errorf("Title = %q, want empty", result.Title)
	}
	for tag, count := range result.HeadingCounts {
		if count != 0 {
			t.Errorf("HeadingCounts[%q] = %d, want 0", tag, count)
		}
	}
	if result.InternalLinksCount != 0 || result.ExternalLinksCount != 0 {
		t.Errorf("link counts = %d/%d, want 0/0", result.InternalLinksCount, result.ExternalLinksCount)
	}
	if len(result.BrokenLinks) != 0 {
		t.Errorf("BrokenLinks = %+v, want empty", result.BrokenLinks)
	}
	if result.HasLoginForm {
		t.Error("HasLoginForm = true, want false")
	}
}

func TestAnalyzeTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	address := server.URL
	server.Close()

	result := testAnalyzer().Analyze(context.Background(), address)

	if result.FetchError == "" {
		t.Fatal("expected a fetch error description for an unreachable host")
	}
	if result.InternalLinksCount != 0 || result.ExternalLinksCount != 0 {
		t.Error("expected zero link counts on transport failure")
	}
}

package analyzer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", raw, err)
	}
	return u
}

func TestClassifyLinks(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		hrefs    []string
		internal int
		external int
	}{
		{
			name:     "relative and absolute",
			base:     "http://a.com",
			hrefs:    []string{"/x", "http://b.com"},
			internal: 1,
			external: 1,
		},
		{
			name:     "fragment and query only resolve to the page itself",
			base:     "http://a.com/page",
			hrefs:    []string{"#section", "?q=1"},
			internal: 2,
			external: 0,
		},
		{
			name:     "protocol-relative href",
			base:     "https://a.com",
			hrefs:    []string{"//b.com/asset", "//a.com/asset"},
			internal: 1,
			external: 1,
		},
		{
			name:     "no host normalization",
			base:     "http://a.com",
			hrefs:    []string{"http://www.a.com/x"},
			internal: 0,
			external: 1,
		},
		{
			name:     "repeated hrefs count every time",
			base:     "http://a.com",
			hrefs:    []string{"/dup", "/dup", "/dup"},
			internal: 3,
			external: 0,
		},
		{
			name:     "mailto counts as external",
			base:     "http://a.com",
			hrefs:    []string{"mailto:someone@a.com"},
			internal: 0,
			external: 1,
		},
		{
			name:     "unparseable href counts as external",
			base:     "http://a.com",
			hrefs:    []string{"http://[::1"},
			internal: 0,
			external: 1,
		},
		{
			name:     "empty href resolves to the page",
			base:     "http://a.com/page",
			hrefs:    []string{""},
			internal: 1,
			external: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := mustParseURL(t, tt.base)
			internal, external, resolved := ClassifyLinks(tt.hrefs, base)
			if internal != tt.internal {
				t.Errorf("internal = %d, want %d", internal, tt.internal)
			}
			if external != tt.external {
				t.Errorf("external = %d, want %d", external, tt.external)
			}
			if internal+external != len(tt.hrefs) {
				t.Errorf("internal+external = %d, want %d", internal+external, len(tt.hrefs))
			}
			if len(resolved) != len(tt.hrefs) {
				t.Errorf("len(resolved) = %d, want %d", len(resolved), len(tt.hrefs))
			}
		})
	}
}

func TestClassifyLinksResolution(t *testing.T) {
	base := mustParseURL(t, "http://a.com/dir/page.html")
	_, _, resolved := ClassifyLinks([]string{"../up", "sub/child", "http://b.com/abs"}, base)

	want := []string{"http://a.com/up", "http://a.com/dir/sub/child", "http://b.com/abs"}
	for i, w := range want {
		if resolved[i] != w {
			t.Errorf("resolved[%d] = %q, want %q", i, resolved[i], w)
		}
	}
}

func TestProbe(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/server-error", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "/ok")
		w.WriteHeader(http.StatusMovedPermanently)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	// A server that is no longer listening produces probe errors.
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	prober := NewProber(2*time.Second, 4)
	links := []string{
		server.URL + "/ok",
		server.URL + "/missing",
		server.URL + "/missing", // no dedup: recorded twice
		server.URL + "/server-error",
		server.URL + "/redirect", // redirects are followed, lands on /ok
		deadURL + "/gone",
	}

	broken := prober.Probe(context.Background(), links)

	if len(broken) != 4 {
		t.Fatalf("Probe() recorded %d broken links, want 4: %+v", len(broken), broken)
	}

	byURL := make(map[string][]BrokenLink)
	for _, bl := range broken {
		byURL[bl.URL] = append(byURL[bl.URL], bl)
	}

	missing := byURL[server.URL+"/missing"]
	if len(missing) != 2 {
		t.Errorf("expected /missing recorded twice, got %d", len(missing))
	}
	for _, bl := range missing {
		if bl.StatusCode == nil || *bl.StatusCode != http.StatusNotFound {
			t.Errorf("/missing status code = %v, want 404", bl.StatusCode)
		}
	}

	serverErr := byURL[server.URL+"/server-error"]
	if len(serverErr) != 1 || serverErr[0].StatusCode == nil || *serverErr[0].StatusCode != http.StatusInternalServerError {
		t.Errorf("/server-error not recorded with code 500: %+v", serverErr)
	}

	gone := byURL[deadURL+"/gone"]
	if len(gone) != 1 {
		t.Fatalf("expected dead server link recorded once, got %d", len(gone))
	}
	if gone[0].StatusCode != nil {
		t.Errorf("probe error should record no status code, got %d", *gone[0].StatusCode)
	}

	if _, recorded := byURL[server.URL+"/ok"]; recorded {
		t.Error("reachable link must not be recorded")
	}
	if _, recorded := byURL[server.URL+"/redirect"]; recorded {
		t.Error("redirecting link that lands on a 200 must not be recorded")
	}
}

func TestProbeEmpty(t *testing.T) {
	prober := NewProber(time.Second, 4)
	if broken := prober.Probe(context.Background(), nil); broken != nil {
		t.Errorf("Probe(nil) = %v, want nil", broken)
	}
}

func TestProbeMalformedLink(t *testing.T) {
	prober := NewProber(time.Second, 1)
	broken := prober.Probe(context.Background(), []string{"http://[::1"})

	if len(broken) != 1 {
		t.Fatalf("expected malformed link recorded, got %d entries", len(broken))
	}
	if broken[0].StatusCode != nil {
		t.Errorf("malformed link should record no status code, got %d", *broken[0].StatusCode)
	}
}

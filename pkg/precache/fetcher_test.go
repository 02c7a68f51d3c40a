package precache

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgeup-ai/offline-router/internal/testutil"
	"github.com/edgeup-ai/offline-router/pkg/client"
	"go.uber.org/multierr"
)

func newTestFetcher(t *testing.T, cfg Config) (*Fetcher, *testutil.MockOrigin) {
	t.Helper()
	origin := testutil.NewMockOrigin()
	t.Cleanup(origin.Close)
	return NewFetcher(origin.Client(), origin.URL(), cfg), origin
}

func TestFetchAll_Success(t *testing.T) {
	fetcher, origin := newTestFetcher(t, DefaultConfig())

	results, err := fetcher.FetchAll(context.Background(), []string{"/", "/logo.png", "/api/courses"})
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	want := []string{"/", "/logo.png", "/api/courses"}
	for i, res := range results {
		if res.URL.Path != want[i] {
			t.Errorf("result %d: path = %s, want %s (input order)", i, res.URL.Path, want[i])
		}
		if res.Entry.StatusCode != http.StatusOK {
			t.Errorf("result %d: status = %d", i, res.Entry.StatusCode)
		}
		if res.Entry.URL != origin.URL().String()+want[i] {
			t.Errorf("result %d: entry URL = %s", i, res.Entry.URL)
		}
	}
	if string(results[1].Entry.Data) != "png-logo" {
		t.Errorf("logo body = %q", results[1].Entry.Data)
	}
}

func TestFetchAll_Deduplicates(t *testing.T) {
	fetcher, origin := newTestFetcher(t, DefaultConfig())

	results, err := fetcher.FetchAll(context.Background(), []string{"/login", "/login#top", origin.URL().String() + "/login"})
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Expected 1 result, got %d", len(results))
	}
	if got := origin.PathCount("/login"); got != 1 {
		t.Errorf("Expected 1 origin request, got %d", got)
	}
}

func TestFetchAll_PartialFailure(t *testing.T) {
	fetcher, origin := newTestFetcher(t, DefaultConfig())
	origin.SetResponse("/dashboard", testutil.MockResponse{StatusCode: http.StatusInternalServerError})

	results, err := fetcher.FetchAll(context.Background(), []string{"/", "/dashboard", "/missing"})
	if err == nil {
		t.Fatal("Expected error")
	}
	if len(results) != 1 {
		t.Errorf("Expected 1 successful result, got %d", len(results))
	}

	errs := multierr.Errors(err)
	if len(errs) != 2 {
		t.Fatalf("Expected 2 errors, got %d: %v", len(errs), err)
	}
	var urlErr *URLError
	if !errors.As(errs[0], &urlErr) {
		t.Fatalf("Expected *URLError, got %T", errs[0])
	}
	if urlErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", urlErr.StatusCode)
	}
}

func TestFetchAll_InvalidURL(t *testing.T) {
	fetcher, _ := newTestFetcher(t, DefaultConfig())

	results, err := fetcher.FetchAll(context.Background(), []string{"http://[::1", "/"})
	if err == nil {
		t.Fatal("Expected error for invalid URL")
	}
	if len(results) != 1 {
		t.Errorf("Expected 1 result, got %d", len(results))
	}
}

func TestFetchAll_RespectsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	fetcher, origin := newTestFetcher(t, Config{MaxConcurrency: 2})

	paths := []string{"/a", "/b", "/c", "/d", "/e", "/f"}
	for _, p := range paths {
		origin.SetHandler(p, func(w http.ResponseWriter, r *http.Request) {
			n := inFlight.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			w.Write([]byte(r.URL.Path))
		})
	}

	results, err := fetcher.FetchAll(context.Background(), paths)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(results) != len(paths) {
		t.Errorf("Expected %d results, got %d", len(paths), len(results))
	}
	if peak.Load() > 2 {
		t.Errorf("Peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestFetchAll_ContextCancelled(t *testing.T) {
	fetcher, _ := newTestFetcher(t, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetcher.FetchAll(ctx, []string{"/", "/login"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	base, _ := url.Parse("https://app.edgeup.ai")
	f := NewFetcher(http.DefaultClient, base, DefaultConfig())

	u, err := f.Resolve("/dashboard?tab=gs1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if u.String() != "https://app.edgeup.ai/dashboard?tab=gs1" {
		t.Errorf("Resolve = %s", u)
	}

	noBase := NewFetcher(http.DefaultClient, nil, DefaultConfig())
	if _, err := noBase.Resolve("/dashboard"); err == nil {
		t.Error("Expected error resolving relative URL without base")
	}
}

func TestFetchAll_FollowsRedirects(t *testing.T) {
	origin := testutil.NewMockOrigin()
	t.Cleanup(origin.Close)
	origin.SetResponse("/start", testutil.MockResponse{
		StatusCode: http.StatusFound,
		Headers:    map[string]string{"Location": "/"},
	})

	cfg := client.DefaultConfig()
	cfg.Transport = origin.Client().Transport
	originClient, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New failed: %v", err)
	}
	fetcher := NewFetcher(originClient, origin.URL(), DefaultConfig())

	results, err := fetcher.FetchAll(context.Background(), []string{"/start"})
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	entry := results[0].Entry
	if entry.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 after redirect", entry.StatusCode)
	}
	if entry.URL != origin.URL().String()+"/start" {
		t.Errorf("entry URL = %s, want the requested URL", entry.URL)
	}
	if origin.PathCount("/") != 1 {
		t.Errorf("redirect target fetched %d times, want 1", origin.PathCount("/"))
	}
}

func TestFetchAll_RedirectLoop(t *testing.T) {
	origin := testutil.NewMockOrigin()
	t.Cleanup(origin.Close)
	origin.SetResponse("/loop", testutil.MockResponse{
		StatusCode: http.StatusTemporaryRedirect,
		Headers:    map[string]string{"Location": "/loop"},
	})

	cfg := client.DefaultConfig()
	cfg.Transport = origin.Client().Transport
	originClient, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New failed: %v", err)
	}
	fetcher := NewFetcher(originClient, origin.URL(), DefaultConfig())

	_, err = fetcher.FetchAll(context.Background(), []string{"/loop"})
	if !errors.Is(err, ErrTooManyRedirects) {
		t.Fatalf("Expected ErrTooManyRedirects, got %v", err)
	}
	if got := origin.PathCount("/loop"); got != maxRedirects+1 {
		t.Errorf("loop fetched %d times, want %d", got, maxRedirects+1)
	}
}

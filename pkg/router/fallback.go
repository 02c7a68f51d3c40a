package router

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/edgeup-ai/offline-router/pkg/cache"
)

var (
	//go:embed assets/offline.html
	offlinePage []byte

	//go:embed assets/placeholder.svg
	imagePlaceholder []byte
)

// AuthOfflineBody is returned for the session check when offline and uncached.
const AuthOfflineBody = `{"success":false,"error":"Offline mode - please check your connection"}`

// offlineFallback answers a request whose strategy failed. Navigations get
// the cached home document or the offline page; anything else gets a 503.
func (r *Router) offlineFallback(ctx context.Context, fr *FetchRequest) *http.Response {
	req := fr.Request

	if !fr.IsNavigation() {
		offlineFallbacksTotal.WithLabelValues("text").Inc()
		return syntheticResponse(req, http.StatusServiceUnavailable, "text/plain; charset=utf-8", []byte("Offline"))
	}

	if home, err := r.fetcher.Resolve(r.config.HomePath); err == nil {
		entry, err := r.match(ctx, r.config.StaticName(), cache.NewKey(http.MethodGet, home))
		if err == nil {
			offlineFallbacksTotal.WithLabelValues("home").Inc()
			return cache.EntryToResponse(entry, req)
		}
	}

	offlineFallbacksTotal.WithLabelValues("offline_page").Inc()
	return syntheticResponse(req, http.StatusOK, "text/html; charset=utf-8", offlinePage)
}

func authOfflineResponse(req *http.Request) *http.Response {
	return syntheticResponse(req, http.StatusServiceUnavailable, "application/json", []byte(AuthOfflineBody))
}

func imagePlaceholderResponse(req *http.Request) *http.Response {
	return syntheticResponse(req, http.StatusOK, "image/svg+xml", imagePlaceholder)
}

func syntheticResponse(req *http.Request, status int, contentType string, body []byte) *http.Response {
	header := http.Header{}
	header.Set("Content-Type", contentType)
	header.Set("Content-Length", strconv.Itoa(len(body)))
	header.Set("Cache-Control", "no-store")

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

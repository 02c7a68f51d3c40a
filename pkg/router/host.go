package router

import (
	"io"
	"net/http"
	"strings"
)

// Hop-by-hop headers, removed when forwarding.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ServeHTTP serves req as a fetch against the origin and writes the
// resulting response.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	out, err := r.OriginRequest(req)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	resp, err := r.Fetch(req.Context(), NewFetchRequest(out))
	if err != nil {
		r.logger.Warn().Err(err).Str("method", req.Method).Str("path", req.URL.Path).Msg("Passthrough request failed")
		http.Error(w, "origin unreachable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if err := WriteResponse(w, resp); err != nil {
		r.logger.Debug().Err(err).Str("method", req.Method).Str("path", req.URL.Path).Msg("Response body copy interrupted")
	}
}

// OriginRequest rewrites an incoming request to target the origin.
func (r *Router) OriginRequest(req *http.Request) (*http.Request, error) {
	target := *r.config.Origin
	target.Path = req.URL.Path
	target.RawPath = req.URL.RawPath
	target.RawQuery = req.URL.RawQuery
	target.Fragment = ""

	var body io.Reader
	if req.Body != nil && req.Body != http.NoBody {
		body = req.Body
	}
	out, err := http.NewRequestWithContext(req.Context(), req.Method, target.String(), body)
	if err != nil {
		return nil, err
	}

	out.Header = req.Header.Clone()
	removeHopHeaders(out.Header)
	out.ContentLength = req.ContentLength
	out.Host = target.Host
	return out, nil
}

// WriteResponse copies resp to w. The returned error comes from copying the
// body, after the status line has been sent.
func WriteResponse(w http.ResponseWriter, resp *http.Response) error {
	header := w.Header()
	for key, values := range resp.Header {
		for _, value := range values {
			header.Add(key, value)
		}
	}
	removeHopHeaders(header)

	w.WriteHeader(resp.StatusCode)
	if resp.Body == nil {
		return nil
	}
	_, err := io.Copy(w, resp.Body)
	return err
}

func removeHopHeaders(h http.Header) {
	for _, name := range strings.Split(h.Get("Connection"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			h.Del(name)
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

package router

import (
	"net/http"
	"strings"
)

// Request modes and destinations, as reported by Sec-Fetch-Mode and
// Sec-Fetch-Dest.
const (
	ModeNavigate = "navigate"
	ModeNoCORS   = "no-cors"
	ModeCORS     = "cors"

	DestDocument = "document"
	DestImage    = "image"
	DestEmpty    = "empty"
)

// FetchRequest is one intercepted request.
type FetchRequest struct {
	Request *http.Request

	// Mode is "navigate" for top-level page loads.
	Mode string

	// Destination is the kind of resource requested ("document", "image", ...).
	Destination string
}

// NewFetchRequest wraps r, reading Sec-Fetch-Mode and Sec-Fetch-Dest.
// Clients that do not send them are classified from the Accept header.
func NewFetchRequest(r *http.Request) *FetchRequest {
	fr := &FetchRequest{
		Request:     r,
		Mode:        strings.ToLower(r.Header.Get("Sec-Fetch-Mode")),
		Destination: strings.ToLower(r.Header.Get("Sec-Fetch-Dest")),
	}

	accept := r.Header.Get("Accept")
	if fr.Mode == "" {
		if r.Method == http.MethodGet && strings.Contains(accept, "text/html") {
			fr.Mode = ModeNavigate
		} else {
			fr.Mode = ModeNoCORS
		}
	}
	if fr.Destination == "" {
		switch {
		case fr.Mode == ModeNavigate:
			fr.Destination = DestDocument
		case strings.HasPrefix(accept, "image/"):
			fr.Destination = DestImage
		default:
			fr.Destination = DestEmpty
		}
	}
	return fr
}

// IsNavigation reports whether the request is a top-level navigation.
func (f *FetchRequest) IsNavigation() bool {
	return f.Mode == ModeNavigate
}

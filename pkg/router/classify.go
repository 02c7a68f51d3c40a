package router

import "strings"

// RequestClass selects the strategy for a same-origin GET request.
type RequestClass string

const (
	ClassAPI   RequestClass = "api"
	ClassAsset RequestClass = "asset"
	ClassPage  RequestClass = "page"
)

// Classify maps a URL path to its request class. First match wins:
// an /api/ prefix, then any dot in the path, then page.
func Classify(path string) RequestClass {
	switch {
	case strings.HasPrefix(path, "/api/"):
		return ClassAPI
	case strings.Contains(path, "."):
		return ClassAsset
	default:
		return ClassPage
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

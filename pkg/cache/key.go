package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Key identifies a cached response inside a namespace.
type Key struct {
	// Method is the request method. Only GET keys can be stored.
	Method string

	// URL is the absolute request URL, fragment stripped
	URL string

	// Partition separates entries stored for different credentials.
	// Empty for anonymous requests.
	Partition string
}

// NewKey builds a key from a method and URL.
// The fragment is dropped and the scheme and host are lower-cased.
func NewKey(method string, u *url.URL) Key {
	if method == "" {
		method = http.MethodGet
	}
	if u == nil {
		return Key{Method: strings.ToUpper(method)}
	}

	normalized := *u
	normalized.Fragment = ""
	normalized.RawFragment = ""
	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)
	if normalized.Path == "" {
		normalized.Path = "/"
	}

	return Key{
		Method: strings.ToUpper(method),
		URL:    normalized.String(),
	}
}

// KeyForRequest builds the key for an HTTP request.
func KeyForRequest(req *http.Request) Key {
	if req == nil {
		return Key{}
	}
	return NewKey(req.Method, req.URL)
}

// WithPartition returns a copy of k scoped to partition.
func (k Key) WithPartition(partition string) Key {
	k.Partition = partition
	return k
}

// String generates the storage form of the key.
// Format: METHOD URL [PARTITION]
//
// Example:
//
//	GET https://app.edgeup.ai/api/courses
//	GET https://app.edgeup.ai/api/auth/me 3f2a9c0d81b4e6a7
func (k Key) String() string {
	if k.Partition == "" {
		return fmt.Sprintf("%s %s", k.Method, k.URL)
	}
	return fmt.Sprintf("%s %s %s", k.Method, k.URL, k.Partition)
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	method, rest, ok := strings.Cut(s, " ")
	if !ok || method == "" || rest == "" {
		return Key{}, fmt.Errorf("malformed cache key %q", s)
	}
	rawURL, partition, _ := strings.Cut(rest, " ")
	if rawURL == "" {
		return Key{}, fmt.Errorf("malformed cache key %q", s)
	}
	return Key{Method: method, URL: rawURL, Partition: partition}, nil
}

// CredentialPartition derives a partition from the values of the named
// request headers. Requests carrying none of them map to "".
func CredentialPartition(req *http.Request, headers []string) string {
	if req == nil {
		return ""
	}
	hash := sha256.New()
	found := false
	for _, name := range headers {
		for _, value := range req.Header.Values(name) {
			found = true
			fmt.Fprintf(hash, "%s\x00%s\x00", http.CanonicalHeaderKey(name), value)
		}
	}
	if !found {
		return ""
	}
	return hex.EncodeToString(hash.Sum(nil)[:8])
}

// Cacheable reports whether responses for this key may be stored.
func (k Key) Cacheable() bool {
	return k.Method == http.MethodGet && k.URL != ""
}

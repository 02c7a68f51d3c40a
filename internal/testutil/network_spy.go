package testutil

import (
	"errors"
	"net/http"
	"sync"
)

// ErrNetworkDown is returned by NetworkSpy while offline.
var ErrNetworkDown = errors.New("network unreachable")

// NetworkSpy wraps a Doer, records every call and can simulate an outage.
type NetworkSpy struct {
	next Doer

	mu      sync.Mutex
	offline bool
	calls   []string
}

// Doer executes an HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewNetworkSpy wraps next; a nil next behaves like a permanent outage.
func NewNetworkSpy(next Doer) *NetworkSpy {
	return &NetworkSpy{next: next}
}

// Do records the call and forwards it unless offline.
func (s *NetworkSpy) Do(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req.Method+" "+req.URL.Path)
	offline := s.offline || s.next == nil
	s.mu.Unlock()

	if offline {
		return nil, ErrNetworkDown
	}
	return s.next.Do(req)
}

// SetOffline toggles the simulated outage.
func (s *NetworkSpy) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

// Calls returns the recorded "METHOD /path" strings.
func (s *NetworkSpy) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallCount returns the number of recorded calls.
func (s *NetworkSpy) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Reset clears recorded calls.
func (s *NetworkSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

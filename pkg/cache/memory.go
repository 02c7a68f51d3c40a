package cache

import (
	"context"
	"sort"
	"sync"
)

// MemoryStorage keeps namespaces in process memory.
type MemoryStorage struct {
	mu         sync.RWMutex
	namespaces map[string]*memoryNamespace
}

// Verify interface implementation
var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		namespaces: make(map[string]*memoryNamespace),
	}
}

// Open returns the named namespace, creating it if needed.
func (s *MemoryStorage) Open(_ context.Context, name string) (Namespace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[name]
	if !ok {
		ns = &memoryNamespace{name: name, entries: make(map[string]*Entry)}
		s.namespaces[name] = ns
	}
	return ns, nil
}

// Names lists the existing namespaces, sorted.
func (s *MemoryStorage) Names(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.namespaces))
	for name := range s.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Drop removes a namespace.
func (s *MemoryStorage) Drop(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[name]
	if !ok {
		return false, nil
	}
	delete(s.namespaces, name)

	// Handles opened before the drop keep working on a detached map
	ns.mu.Lock()
	ns.entries = make(map[string]*Entry)
	ns.mu.Unlock()
	return true, nil
}

// Close is a no-op.
func (s *MemoryStorage) Close() error {
	return nil
}

type memoryNamespace struct {
	name    string
	mu      sync.RWMutex
	entries map[string]*Entry
}

func (n *memoryNamespace) Name() string {
	return n.name
}

func (n *memoryNamespace) Match(_ context.Context, key Key) (*Entry, error) {
	n.mu.RLock()
	entry, ok := n.entries[key.String()]
	n.mu.RUnlock()

	if !ok {
		recordMatch(n.name, ErrCacheMiss)
		return nil, ErrCacheMiss
	}
	recordMatch(n.name, nil)

	clone := *entry
	clone.Headers = entry.Headers.Clone()
	return &clone, nil
}

func (n *memoryNamespace) Put(_ context.Context, key Key, entry *Entry) error {
	if err := checkPut(key, entry); err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return err
	}

	stored := *entry
	stored.Headers = entry.Headers.Clone()
	stored.Data = append([]byte(nil), entry.Data...)

	n.mu.Lock()
	n.entries[key.String()] = &stored
	n.mu.Unlock()

	CacheWrittenBytes.WithLabelValues(n.name).Add(float64(stored.Size()))
	return nil
}

func (n *memoryNamespace) Delete(_ context.Context, key Key) error {
	n.mu.Lock()
	delete(n.entries, key.String())
	n.mu.Unlock()
	return nil
}

func (n *memoryNamespace) Keys(_ context.Context) ([]Key, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	keys := make([]Key, 0, len(n.entries))
	for raw := range n.entries {
		key, err := ParseKey(raw)
		if err != nil {
			CacheErrors.WithLabelValues("keys").Inc()
			return nil, err
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

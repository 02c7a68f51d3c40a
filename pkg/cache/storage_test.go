package cache

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"
)

func mustKey(t *testing.T, method, raw string) Key {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url %q: %v", raw, err)
	}
	return NewKey(method, u)
}

func okEntry(body string) *Entry {
	return &Entry{
		Data:       []byte(body),
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": []string{"application/json"}},
		CachedAt:   time.Now(),
	}
}

// runStorageSuite exercises the Storage contract against one backend.
func runStorageSuite(t *testing.T, storage Storage) {
	ctx := context.Background()

	t.Run("put_and_match", func(t *testing.T) {
		ns, err := storage.Open(ctx, "edgeup-dynamic-v1")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		key := mustKey(t, http.MethodGet, "https://app.edgeup.ai/api/courses")

		if err := ns.Put(ctx, key, okEntry(`{"courses":[]}`)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		got, err := ns.Match(ctx, key)
		if err != nil {
			t.Fatalf("Match failed: %v", err)
		}
		if string(got.Data) != `{"courses":[]}` {
			t.Errorf("Data mismatch: got %s", got.Data)
		}
		if got.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d, want 200", got.StatusCode)
		}
		if got.Headers.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", got.Headers.Get("Content-Type"))
		}
	})

	t.Run("put_replaces", func(t *testing.T) {
		ns, _ := storage.Open(ctx, "edgeup-dynamic-v1")
		key := mustKey(t, http.MethodGet, "https://app.edgeup.ai/dashboard")

		_ = ns.Put(ctx, key, okEntry("old"))
		if err := ns.Put(ctx, key, okEntry("new")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := ns.Match(ctx, key)
		if err != nil {
			t.Fatalf("Match failed: %v", err)
		}
		if string(got.Data) != "new" {
			t.Errorf("Data = %s, want new", got.Data)
		}
	})

	t.Run("miss", func(t *testing.T) {
		ns, _ := storage.Open(ctx, "edgeup-static-v1")
		_, err := ns.Match(ctx, mustKey(t, http.MethodGet, "https://app.edgeup.ai/nope"))
		if !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Expected ErrCacheMiss, got %v", err)
		}
	})

	t.Run("rejects_non_get", func(t *testing.T) {
		ns, _ := storage.Open(ctx, "edgeup-dynamic-v1")
		err := ns.Put(ctx, mustKey(t, http.MethodPost, "https://app.edgeup.ai/api/courses"), okEntry("x"))
		if !errors.Is(err, ErrNotCacheable) {
			t.Errorf("Expected ErrNotCacheable, got %v", err)
		}
	})

	t.Run("rejects_error_status", func(t *testing.T) {
		ns, _ := storage.Open(ctx, "edgeup-dynamic-v1")
		entry := okEntry("boom")
		entry.StatusCode = http.StatusInternalServerError
		err := ns.Put(ctx, mustKey(t, http.MethodGet, "https://app.edgeup.ai/api/courses"), entry)
		if !errors.Is(err, ErrNotCacheable) {
			t.Errorf("Expected ErrNotCacheable, got %v", err)
		}
	})

	t.Run("rejects_nil_entry", func(t *testing.T) {
		ns, _ := storage.Open(ctx, "edgeup-dynamic-v1")
		if err := ns.Put(ctx, mustKey(t, http.MethodGet, "https://app.edgeup.ai/x"), nil); err == nil {
			t.Error("Put with nil entry should return error")
		}
	})

	t.Run("delete_and_keys", func(t *testing.T) {
		ns, _ := storage.Open(ctx, "edgeup-keys-v1")
		a := mustKey(t, http.MethodGet, "https://app.edgeup.ai/a")
		b := mustKey(t, http.MethodGet, "https://app.edgeup.ai/b")
		_ = ns.Put(ctx, a, okEntry("a"))
		_ = ns.Put(ctx, b, okEntry("b"))

		if err := ns.Delete(ctx, a); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := ns.Delete(ctx, a); err != nil {
			t.Errorf("Deleting a missing key should not fail: %v", err)
		}

		keys, err := ns.Keys(ctx)
		if err != nil {
			t.Fatalf("Keys failed: %v", err)
		}
		if len(keys) != 1 || keys[0] != b {
			t.Errorf("Keys = %v, want [%v]", keys, b)
		}
	})

	t.Run("names_and_drop", func(t *testing.T) {
		legacy, _ := storage.Open(ctx, "edgeup-ai-v0")
		_ = legacy.Put(ctx, mustKey(t, http.MethodGet, "https://app.edgeup.ai/"), okEntry("home"))

		names, err := storage.Names(ctx)
		if err != nil {
			t.Fatalf("Names failed: %v", err)
		}
		if !contains(names, "edgeup-ai-v0") {
			t.Fatalf("Names = %v, missing edgeup-ai-v0", names)
		}

		existed, err := storage.Drop(ctx, "edgeup-ai-v0")
		if err != nil {
			t.Fatalf("Drop failed: %v", err)
		}
		if !existed {
			t.Error("Drop should report the namespace existed")
		}

		names, _ = storage.Names(ctx)
		if contains(names, "edgeup-ai-v0") {
			t.Errorf("Names = %v, edgeup-ai-v0 should be gone", names)
		}

		existed, err = storage.Drop(ctx, "edgeup-ai-v0")
		if err != nil {
			t.Fatalf("second Drop failed: %v", err)
		}
		if existed {
			t.Error("second Drop should report the namespace was absent")
		}

		reopened, _ := storage.Open(ctx, "edgeup-ai-v0")
		if _, err := reopened.Match(ctx, mustKey(t, http.MethodGet, "https://app.edgeup.ai/")); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Reopened namespace should be empty, got %v", err)
		}
	})
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func TestMemoryStorage(t *testing.T) {
	runStorageSuite(t, NewMemoryStorage())
}

func TestMemoryStorage_MatchReturnsCopy(t *testing.T) {
	ctx := context.Background()
	ns, _ := NewMemoryStorage().Open(ctx, "edgeup-static-v1")
	key := mustKey(t, http.MethodGet, "https://app.edgeup.ai/logo.png")
	_ = ns.Put(ctx, key, okEntry("png"))

	first, _ := ns.Match(ctx, key)
	first.Headers.Set("Content-Type", "mutated")

	second, _ := ns.Match(ctx, key)
	if second.Headers.Get("Content-Type") != "application/json" {
		t.Error("Mutating a matched entry must not change the stored entry")
	}
}

package cache

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func openTestSQLite(t *testing.T, path string) *SQLiteStorage {
	t.Helper()
	storage, err := OpenSQLiteStorage(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenSQLiteStorage failed: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
	return storage
}

func TestSQLiteStorage(t *testing.T) {
	runStorageSuite(t, openTestSQLite(t, filepath.Join(t.TempDir(), "cache.db")))
}

func TestOpenSQLiteStorage_EmptyPath(t *testing.T) {
	if _, err := OpenSQLiteStorage("  ", zerolog.Nop()); err == nil {
		t.Error("OpenSQLiteStorage should reject an empty path")
	}
}

func TestSQLiteStorage_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	key := mustKey(t, http.MethodGet, "https://app.edgeup.ai/login")

	first, err := OpenSQLiteStorage(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("OpenSQLiteStorage failed: %v", err)
	}
	ns, _ := first.Open(ctx, "edgeup-static-v1")
	if err := ns.Put(ctx, key, okEntry("<html>login</html>")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	first.Close()

	second := openTestSQLite(t, path)
	ns, _ = second.Open(ctx, "edgeup-static-v1")
	got, err := ns.Match(ctx, key)
	if err != nil {
		t.Fatalf("Match after reopen failed: %v", err)
	}
	if string(got.Data) != "<html>login</html>" {
		t.Errorf("Data = %s", got.Data)
	}
}

func TestSQLiteStorage_CloseNil(t *testing.T) {
	var storage *SQLiteStorage
	if err := storage.Close(); err != nil {
		t.Errorf("Close on nil storage = %v", err)
	}
}

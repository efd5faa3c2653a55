package strips

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteStoreContract(t *testing.T) {
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "strips.db"))
	if err != nil {
		t.Fatalf("open sqlite store failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	exerciseStore(t, store)
}

func TestSQLiteStoreReopenKeepsOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strips.db")
	store, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("open sqlite store failed: %v", err)
	}
	ctx := context.Background()
	for _, strip := range []Strip{sampleStrip("z", 1), sampleStrip("y", 2)} {
		if err := store.Put(ctx, strip); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reopened, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	listed, err := reopened.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != "z" || listed[1].ID != "y" {
		t.Fatalf("unexpected order after reopen: %+v", listed)
	}
}

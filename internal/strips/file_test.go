package strips

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStoreContract(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "timeline", "strips.json"))
	if err != nil {
		t.Fatalf("new file store failed: %v", err)
	}
	exerciseStore(t, store)
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strips.json")
	first, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("new file store failed: %v", err)
	}
	strip := sampleStrip("s1", 10)
	strip.Binding.RemoteID = "n1"
	strip.Binding.IsSynced = true
	if err := first.Put(context.Background(), strip); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	second, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, err := second.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("get after reopen failed: %v", err)
	}
	if got.Binding.RemoteID != "n1" || !got.Binding.IsSynced {
		t.Fatalf("binding not persisted: %+v", got.Binding)
	}
}

func TestFileStoreWatchReportsExternalWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strips.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("new file store failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := store.Watch(ctx)
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	if err := store.Put(ctx, sampleStrip("own", 0)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	select {
	case <-changes:
		t.Fatalf("own write must not be reported")
	case <-time.After(200 * time.Millisecond):
	}

	external := []byte(`{"strips":[{"id":"host","name":"from host","kind":"movie","position":{"start":1,"offset_start":0,"final_duration":10},"binding":{"is_synced":false,"cut_in":0,"cut_out":0,"order":0}}]}`)
	if err := os.WriteFile(path, external, 0o644); err != nil {
		t.Fatalf("external write failed: %v", err)
	}
	select {
	case _, ok := <-changes:
		if !ok {
			t.Fatalf("watch channel closed unexpectedly")
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("expected change notification for external write")
	}

	cancel()
	select {
	case _, ok := <-changes:
		for ok {
			_, ok = <-changes
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("expected watch channel to close after cancel")
	}
}

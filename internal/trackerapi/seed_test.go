package trackerapi

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	content := `
node_types:
  - id: nt_shot
    name: shot
    description: Editorial shot
  - name: task
tokens:
  - token: tok_editor
    user: user_editor
    expire_time: "Fri, 01 Jan 2100 00:00:00 GMT"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	seed, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	if len(seed.NodeTypes) != 2 || len(seed.Tokens) != 1 {
		t.Fatalf("unexpected seed: %+v", seed)
	}

	tracker := NewTracker()
	tracker.ApplySeed(seed)
	page := tracker.ListNodeTypes(map[string]any{"name": "shot"}, 1, 10)
	if len(page.Items) != 1 || page.Items[0].ID != "nt_shot" {
		t.Fatalf("expected seeded shot type with fixed id, got %+v", page.Items)
	}
	task := tracker.ListNodeTypes(map[string]any{"name": "task"}, 1, 10)
	if len(task.Items) != 1 || task.Items[0].ID == "" {
		t.Fatalf("expected generated id for task, got %+v", task.Items)
	}
	tok, ok := tracker.Authorize("tok_editor")
	if !ok || tok.User != "user_editor" {
		t.Fatalf("expected seeded token to authorize, got %+v ok=%v", tok, ok)
	}
}

func TestParseSeedRejectsIncompleteEntries(t *testing.T) {
	if _, err := ParseSeed([]byte("tokens:\n  - token: abc\n")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for token without user, got %v", err)
	}
	if _, err := ParseSeed([]byte("node_types:\n  - description: nameless\n")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for nameless node type, got %v", err)
	}
	if _, err := ParseSeed([]byte("node_types: [")); err == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestDefaultSeed(t *testing.T) {
	tracker := NewTracker()
	tracker.ApplySeed(DefaultSeed())
	if _, ok := tracker.Authorize("dev-token"); !ok {
		t.Fatalf("default seed must carry a dev token")
	}
	page := tracker.ListNodeTypes(map[string]any{"name": "shot"}, 1, 10)
	if len(page.Items) != 1 {
		t.Fatalf("default seed must carry the shot node type")
	}
	if page.Items[0].ETag == "" {
		t.Fatalf("node types get an etag")
	}
}

package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"specter/internal/tree"
)

func newTree(t *testing.T, goal string) *tree.TaskTree {
	t.Helper()
	ptt := tree.New()
	if _, err := ptt.Initialize(goal, "10.0.0.5", nil); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return ptt
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "reports"))
	ptt := newTree(t, "identify the web server version")

	task := tree.NewTaskNode("grab the http banner", ptt.RootID)
	if err := ptt.AddNode(task); err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}

	path, err := store.SaveSnapshot(ptt)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "ptt_state_") {
		t.Errorf("unexpected snapshot name: %s", path)
	}
	if strings.HasSuffix(path, ".tmp") {
		t.Errorf("snapshot left at temp path: %s", path)
	}

	restored, err := store.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if restored.Goal != "identify the web server version" {
		t.Errorf("goal lost in round trip: %q", restored.Goal)
	}
	if restored.GetNode(task.ID) == nil {
		t.Error("task node lost in round trip")
	}
}

func TestSnapshotNamesDoNotCollide(t *testing.T) {
	store := NewStore(t.TempDir())
	ptt := newTree(t, "goal")

	first, err := store.SaveSnapshot(ptt)
	if err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	second, err := store.SaveSnapshot(ptt)
	if err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	if first == second {
		t.Errorf("snapshots collided on %s", first)
	}

	snapshots, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(snapshots) != 2 {
		t.Errorf("expected 2 snapshots, got %d", len(snapshots))
	}
}

func TestListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	ptt := newTree(t, "goal")

	older, err := store.SaveSnapshot(ptt)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	newer, err := store.SaveSnapshot(ptt)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Make the ordering unambiguous on coarse-grained filesystems.
	oldTime := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, oldTime, oldTime); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	snapshots, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snapshots))
	}
	if snapshots[0].Path != newer {
		t.Errorf("expected newest first, got %s", snapshots[0].Path)
	}

	// Stray files in the directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "assessment_report.md"), []byte("# report"), 0644); err != nil {
		t.Fatalf("failed to write stray file: %v", err)
	}
	snapshots, err = store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(snapshots) != 2 {
		t.Errorf("stray file leaked into listing: %d entries", len(snapshots))
	}
}

func TestLoadLatest(t *testing.T) {
	store := NewStore(t.TempDir())
	ptt := newTree(t, "first goal")
	if _, err := store.SaveSnapshot(ptt); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	ptt2 := newTree(t, "second goal")
	newest, err := store.SaveSnapshot(ptt2)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	restored, path, err := store.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if path != newest {
		t.Errorf("expected latest path %s, got %s", newest, path)
	}
	if restored.Goal != "second goal" {
		t.Errorf("expected the newest tree, got goal %q", restored.Goal)
	}
}

func TestLoadLatestEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "never-created"))
	if _, _, err := store.LoadLatest(); err == nil {
		t.Error("expected error when no snapshots exist")
	}
}

func TestLoadRejectsCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	path := filepath.Join(dir, "ptt_state_20250101_000000.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}
	if _, err := store.Load(path); err == nil {
		t.Error("expected error for corrupt snapshot")
	}
}

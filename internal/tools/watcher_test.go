package tools

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatcherStartStop(t *testing.T) {
	reg := NewRegistry(writeRegistry(t, "tools:\n  - name: manual\n    kind: manual\n"))
	if err := reg.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	w, err := NewWatcher(reg)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !w.IsWatching() {
		t.Error("expected watcher to be running")
	}

	// Second Start is a no-op.
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}

	w.Stop()
	if w.IsWatching() {
		t.Error("expected watcher to be stopped")
	}

	// Second Stop must not panic or block.
	w.Stop()
}

func TestWatcherReloadsOnChange(t *testing.T) {
	reg := NewRegistry(writeRegistry(t, "tools:\n  - name: manual\n    kind: manual\n"))
	if err := reg.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if reg.Count() != 1 {
		t.Fatalf("expected 1 tool before change, got %d", reg.Count())
	}

	w, err := NewWatcher(reg)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	updated := "tools:\n  - name: manual\n    kind: manual\n  - name: probe\n    kind: mcp\n    command: probe-server\n"
	if err := os.WriteFile(reg.Path(), []byte(updated), 0644); err != nil {
		t.Fatalf("failed to update registry file: %v", err)
	}

	// Debounce is 500ms; give slow CI filesystems a generous window.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if reg.Count() == 2 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if reg.Count() != 2 {
		t.Fatalf("watcher did not reload registry, still %d tools", reg.Count())
	}
	if !reg.IsAvailable("probe") {
		t.Error("reloaded tool should have been re-probed")
	}
	if w.GetStats().Reloads == 0 {
		t.Error("expected reload stat to increment")
	}
}

package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// stubEngine maps keywords to fixed unit vectors so ranking is
// deterministic without a live embedding API.
type stubEngine struct {
	embedFn func(ctx context.Context, text string) ([]float32, error)
}

func (e *stubEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.embedFn != nil {
		return e.embedFn(ctx, text)
	}
	return keywordVector(text), nil
}

func (e *stubEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *stubEngine) Dimensions() int { return 4 }
func (e *stubEngine) Name() string    { return "stub" }

func keywordVector(text string) []float32 {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "nmap"):
		return []float32{1, 0, 0, 0}
	case strings.Contains(lower, "hydra"):
		return []float32{0, 1, 0, 0}
	default:
		return []float32{0, 0, 1, 0}
	}
}

func newTestStore(t *testing.T, engine *stubEngine) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "kb", "test.db")
	var store *Store
	var err error
	if engine != nil {
		store, err = NewStore(dbPath, engine, 0)
	} else {
		store, err = NewStore(dbPath, nil, 0)
	}
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func writeKnowledgeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestNewStoreDefaults(t *testing.T) {
	store := newTestStore(t, nil)

	if store.chunkSize != DefaultChunkSize {
		t.Errorf("Expected default chunk size %d, got %d", DefaultChunkSize, store.chunkSize)
	}

	stats, err := store.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.TotalChunks != 0 {
		t.Errorf("Expected empty store, got %d chunks", stats.TotalChunks)
	}
	if stats.Engine != "none (keyword search)" {
		t.Errorf("Unexpected engine label: %s", stats.Engine)
	}
}

func TestSplitContent(t *testing.T) {
	chunks := splitContent(strings.Repeat("a", 12000), 5000)
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 5000 || len(chunks[1]) != 5000 || len(chunks[2]) != 2000 {
		t.Errorf("Unexpected chunk lengths: %d/%d/%d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}

	// Rune boundaries, not byte boundaries.
	chunks = splitContent(strings.Repeat("é", 10), 4)
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 rune chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if !strings.HasPrefix(c, "é") {
			t.Errorf("Chunk split inside a rune: %q", c)
		}
	}

	if got := splitContent("", 100); got != nil {
		t.Errorf("Expected no chunks for empty content, got %v", got)
	}
}

func TestIngestDirectory(t *testing.T) {
	store := newTestStore(t, nil)
	dir := t.TempDir()

	writeKnowledgeFile(t, dir, "nmap-notes.md", "nmap -sV probes service versions on open ports")
	writeKnowledgeFile(t, dir, "blank.txt", "   \n\t")
	writeKnowledgeFile(t, dir, "tool.exe", "binary payload")
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatalf("Failed to create subdirectory: %v", err)
	}
	writeKnowledgeFile(t, filepath.Join(dir, "nested"), "hidden.md", "should not be ingested")

	n, err := store.IngestDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("IngestDirectory failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 chunk ingested, got %d", n)
	}

	stats, err := store.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.TotalChunks != 1 {
		t.Errorf("Expected 1 stored chunk, got %d", stats.TotalChunks)
	}
	if stats.Sources != 1 {
		t.Errorf("Expected 1 source, got %d", stats.Sources)
	}
	if stats.EmbeddedChunks != 0 {
		t.Errorf("Expected no embeddings without an engine, got %d", stats.EmbeddedChunks)
	}
}

func TestIngestDirectoryMissing(t *testing.T) {
	store := newTestStore(t, nil)
	if _, err := store.IngestDirectory(context.Background(), filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func TestIngestFileReplacesPriorChunks(t *testing.T) {
	store := newTestStore(t, nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")

	if err := os.WriteFile(path, []byte(strings.Repeat("x", 12000)), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := store.IngestFile(context.Background(), path); err != nil {
		t.Fatalf("First ingest failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("short replacement"), 0644); err != nil {
		t.Fatalf("Failed to rewrite file: %v", err)
	}
	n, err := store.IngestFile(context.Background(), path)
	if err != nil {
		t.Fatalf("Second ingest failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 chunk after re-ingest, got %d", n)
	}

	stats, err := store.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.TotalChunks != 1 {
		t.Errorf("Re-ingest left stale chunks: %d total", stats.TotalChunks)
	}
}

func TestKeywordSearch(t *testing.T) {
	store := newTestStore(t, nil)
	dir := t.TempDir()
	writeKnowledgeFile(t, dir, "nmap.md", "nmap service detection with -sV and default scripts")
	writeKnowledgeFile(t, dir, "hydra.md", "hydra brute forces ssh logins with wordlists")
	if _, err := store.IngestDirectory(context.Background(), dir); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	chunks, err := store.Search(context.Background(), "nmap version detection", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(chunks))
	}
	if chunks[0].Source != "nmap.md" {
		t.Errorf("Expected nmap.md, got %s", chunks[0].Source)
	}
	if chunks[0].Similarity <= 0 {
		t.Errorf("Expected a positive lexical score, got %f", chunks[0].Similarity)
	}

	// Short filler words produce no keywords and no results.
	chunks, err = store.Search(context.Background(), "a an of to", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("Expected no matches for filler query, got %d", len(chunks))
	}
}

func TestSemanticSearch(t *testing.T) {
	store := newTestStore(t, &stubEngine{})
	dir := t.TempDir()
	writeKnowledgeFile(t, dir, "nmap.md", "nmap service detection basics")
	writeKnowledgeFile(t, dir, "hydra.md", "hydra password spraying basics")
	if _, err := store.IngestDirectory(context.Background(), dir); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	stats, err := store.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.EmbeddedChunks != stats.TotalChunks {
		t.Fatalf("Expected all chunks embedded, got %d of %d", stats.EmbeddedChunks, stats.TotalChunks)
	}

	chunks, err := store.Search(context.Background(), "how do I run an nmap scan", 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(chunks))
	}
	if chunks[0].Source != "nmap.md" {
		t.Errorf("Expected nmap.md as best match, got %s", chunks[0].Source)
	}
	if chunks[0].Similarity < 0.99 {
		t.Errorf("Expected near-identical similarity, got %f", chunks[0].Similarity)
	}
}

func TestSearchFallsBackOnEmbedError(t *testing.T) {
	calls := 0
	engine := &stubEngine{embedFn: func(ctx context.Context, text string) ([]float32, error) {
		calls++
		// Let ingest embed normally, then fail the query embedding.
		if calls > 2 {
			return nil, errors.New("embedding api unavailable")
		}
		return keywordVector(text), nil
	}}
	store := newTestStore(t, engine)
	dir := t.TempDir()
	writeKnowledgeFile(t, dir, "nmap.md", "nmap timing templates explained")
	writeKnowledgeFile(t, dir, "hydra.md", "hydra usage for http forms")
	if _, err := store.IngestDirectory(context.Background(), dir); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	chunks, err := store.Search(context.Background(), "nmap timing", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Source != "nmap.md" {
		t.Errorf("Keyword fallback did not find nmap.md: %+v", chunks)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	store := newTestStore(t, nil)
	chunks, err := store.Search(context.Background(), "   ", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if chunks != nil {
		t.Errorf("Expected nil for blank query, got %v", chunks)
	}
}

func TestExtractKeywords(t *testing.T) {
	got := extractKeywords("Check the NMAP scan, then (pivot) to ssh!", 4)
	want := []string{"check", "nmap", "scan", "then"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keyword %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestLexicalScore(t *testing.T) {
	score := lexicalScore("nmap scan output", []string{"nmap", "banner"})
	if score != 0.5 {
		t.Errorf("Expected 0.5, got %f", score)
	}
	if lexicalScore("anything", nil) != 0 {
		t.Errorf("Expected 0 for no keywords")
	}
}

// Package embedding generates vector embeddings for knowledge base
// search. Two backends: an OpenAI-compatible endpoint and Google
// GenAI.
package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"

	"specter/internal/logging"
)

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings.
	Dimensions() int

	// Name returns the engine name.
	Name() string
}

// Config selects and parameterizes a backend.
type Config struct {
	// Provider: "openai" or "genai".
	Provider string `json:"provider"`

	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url"`

	// TaskType for GenAI, e.g. "RETRIEVAL_DOCUMENT" or
	// "RETRIEVAL_QUERY". The knowledge base stores documents.
	TaskType string `json:"task_type"`
}

// DefaultConfig returns the OpenAI-compatible defaults.
func DefaultConfig() Config {
	return Config{
		Provider: "openai",
		Model:    "text-embedding-ada-002",
		BaseURL:  "https://api.openai.com/v1",
		TaskType: "RETRIEVAL_DOCUMENT",
	}
}

// NewEngine creates an embedding engine from config.
func NewEngine(cfg Config) (Engine, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "NewEngine")
	defer timer.Stop()

	var engine Engine
	var err error

	switch cfg.Provider {
	case "openai":
		engine, err = NewOpenAIEngine(cfg.APIKey, cfg.BaseURL, cfg.Model)
	case "genai":
		engine, err = NewGenAIEngine(cfg.APIKey, cfg.Model, cfg.TaskType)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'openai' or 'genai')", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logging.EmbeddingDebug("created embedding engine %s (%d dims)", engine.Name(), engine.Dimensions())
	return engine, nil
}

// CosineSimilarity calculates the cosine similarity between two
// vectors: 1 identical, 0 orthogonal. Zero-magnitude vectors read as
// similarity 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dot, aMag, bMag float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i]) * float64(b[i])
		aMag += float64(a[i]) * float64(a[i])
		bMag += float64(b[i]) * float64(b[i])
	}
	if aMag == 0 || bMag == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(aMag) * math.Sqrt(bMag)), nil
}

// SimilarityResult is one corpus hit from FindTopK.
type SimilarityResult struct {
	Index      int
	Similarity float64
}

// FindTopK returns the k most similar corpus vectors to the query,
// best first. Dimension-mismatched corpus entries are skipped.
func FindTopK(query []float32, corpus [][]float32, k int) []SimilarityResult {
	if k <= 0 {
		k = 10
	}

	results := make([]SimilarityResult, 0, len(corpus))
	skipped := 0
	for i, vec := range corpus {
		similarity, err := CosineSimilarity(query, vec)
		if err != nil {
			skipped++
			continue
		}
		results = append(results, SimilarityResult{Index: i, Similarity: similarity})
	}
	if skipped > 0 {
		logging.EmbeddingDebug("FindTopK: skipped %d vectors with mismatched dimensions", skipped)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	identical, err := CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, identical, 1e-9)

	orthogonal, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, orthogonal, 1e-9)

	opposite, err := CosineSimilarity([]float32{1, 0}, []float32{-1, 0})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, opposite, 1e-9)

	_, err = CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	assert.Error(t, err)

	zero, err := CosineSimilarity([]float32{0, 0}, []float32{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 0.0, zero)
}

func TestFindTopK(t *testing.T) {
	query := []float32{1, 0}
	corpus := [][]float32{
		{0, 1},        // orthogonal
		{1, 0},        // identical
		{0.9, 0.1},    // close
		{1, 0, 0},     // wrong dimensions, skipped
		{-1, 0},       // opposite
	}

	results := FindTopK(query, corpus, 2)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Index)
	assert.Equal(t, 2, results[1].Index)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestFindTopK_DefaultK(t *testing.T) {
	corpus := make([][]float32, 3)
	for i := range corpus {
		corpus[i] = []float32{1, float32(i)}
	}
	results := FindTopK([]float32{1, 1}, corpus, 0)
	assert.Len(t, results, 3)
}

func TestNewEngine_UnknownProvider(t *testing.T) {
	_, err := NewEngine(Config{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestOpenAIEngine_EmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openaiEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-ada-002", req.Model)
		require.Len(t, req.Input, 2)

		// Reply out of order; the client must restore by index.
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"index": 1, "embedding": [0.4, 0.5, 0.6]},
			{"index": 0, "embedding": [0.1, 0.2, 0.3]}
		]}`))
	}))
	defer server.Close()

	engine, err := NewOpenAIEngine("test-key", server.URL, "")
	require.NoError(t, err)

	embeddings, err := engine.EmbedBatch(context.Background(), []string{"first chunk", "second chunk"})
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, embeddings[0])
	assert.Equal(t, []float32{0.4, 0.5, 0.6}, embeddings[1])
}

func TestOpenAIEngine_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"index": 0, "embedding": [1, 2, 3]}]}`))
	}))
	defer server.Close()

	engine, err := NewOpenAIEngine("test-key", server.URL, "text-embedding-3-small")
	require.NoError(t, err)

	vec, err := engine.Embed(context.Background(), "nmap scan results")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
	assert.Equal(t, "openai:text-embedding-3-small", engine.Name())
}

func TestOpenAIEngine_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid key"}}`))
	}))
	defer server.Close()

	engine, err := NewOpenAIEngine("bad-key", server.URL, "")
	require.NoError(t, err)

	_, err = engine.Embed(context.Background(), "text")
	assert.Error(t, err)
}

func TestOpenAIEngine_RequiresKey(t *testing.T) {
	_, err := NewOpenAIEngine("", "", "")
	assert.Error(t, err)
}

func TestOpenAIEngine_EmptyBatch(t *testing.T) {
	engine, err := NewOpenAIEngine("k", "", "")
	require.NoError(t, err)
	embeddings, err := engine.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, embeddings)
}

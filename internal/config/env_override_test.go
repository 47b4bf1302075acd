package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_LLM(t *testing.T) {
	t.Run("OPENAI_API_KEY sets key and default provider", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("GEMINI_API_KEY", "")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "oa-key", cfg.LLM.APIKey)
		assert.Equal(t, "openai", cfg.LLM.Provider)
	})

	t.Run("OPENAI_API_KEY does not override existing provider", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "oa-key")

		cfg := &Config{
			LLM: LLMConfig{Provider: "deepseek"},
		}
		cfg.applyEnvOverrides()

		assert.Equal(t, "oa-key", cfg.LLM.APIKey)
		assert.Equal(t, "deepseek", cfg.LLM.Provider)
	})

	t.Run("OPENAI_BASE_URL overrides endpoint", func(t *testing.T) {
		t.Setenv("OPENAI_BASE_URL", "http://localhost:8000/v1")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "http://localhost:8000/v1", cfg.LLM.BaseURL)
	})

	t.Run("MODEL_NAME overrides model", func(t *testing.T) {
		t.Setenv("MODEL_NAME", "qwen2.5-72b")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "qwen2.5-72b", cfg.LLM.Model)
	})
}

func TestEnvOverrides_Embedding(t *testing.T) {
	t.Run("GEMINI_API_KEY enables genai embeddings", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gm-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "gm-key", cfg.Embedding.APIKey)
		assert.Equal(t, "genai", cfg.Embedding.Provider)
	})

	t.Run("GEMINI_API_KEY keeps explicit provider", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gm-key")

		cfg := &Config{
			Embedding: EmbeddingConfig{Provider: "openai"},
		}
		cfg.applyEnvOverrides()

		assert.Equal(t, "openai", cfg.Embedding.Provider)
	})
}

func TestEnvOverrides_Misc(t *testing.T) {
	t.Run("SPECTER_DB overrides database path", func(t *testing.T) {
		t.Setenv("SPECTER_DB", "/tmp/alt.db")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/tmp/alt.db", cfg.Knowledge.DatabasePath)
	})

	t.Run("SPECTER_DEBUG enables debug logging", func(t *testing.T) {
		t.Setenv("SPECTER_DEBUG", "1")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.True(t, cfg.Logging.Debug)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})
}

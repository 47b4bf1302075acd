package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"specter/internal/logging"
)

// OpenAIClient implements Client against any OpenAI-compatible
// chat/completions endpoint.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client

	// Token budget for one exchange: prompt estimate + reply cap must
	// fit maxTotalTokens, replies never exceed responseBuffer.
	maxTotalTokens int
	responseBuffer int

	retryBackoffBase time.Duration

	mu          sync.Mutex
	lastRequest time.Time
}

// OpenAIConfig holds configuration for the client.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Timeout        time.Duration
	MaxTotalTokens int
	ResponseBuffer int
}

// DefaultOpenAIConfig returns sensible defaults for an API key.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:         apiKey,
		BaseURL:        "https://api.openai.com/v1",
		Model:          "gpt-4o",
		Timeout:        120 * time.Second,
		MaxTotalTokens: 8192,
		ResponseBuffer: 4096,
	}
}

// NewOpenAIClient creates a client from config.
func NewOpenAIClient(config OpenAIConfig) *OpenAIClient {
	if config.MaxTotalTokens <= 0 {
		config.MaxTotalTokens = 8192
	}
	if config.ResponseBuffer <= 0 {
		config.ResponseBuffer = 4096
	}
	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}
	return &OpenAIClient{
		apiKey:           config.APIKey,
		baseURL:          strings.TrimRight(config.BaseURL, "/"),
		model:            config.Model,
		maxTotalTokens:   config.MaxTotalTokens,
		responseBuffer:   config.ResponseBuffer,
		retryBackoffBase: time.Second,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// maxOutputTokens sizes the reply budget from the estimated prompt
// size: at least 512, at most the response buffer.
func (c *OpenAIClient) maxOutputTokens(promptTokens int) int {
	budget := c.maxTotalTokens - promptTokens
	if budget < 512 {
		budget = 512
	}
	if budget > c.responseBuffer {
		budget = c.responseBuffer
	}
	return budget
}

// Invoke sends the prompt with tool context and history. Rate limited
// to one request per 600ms; 429 responses retry with exponential
// backoff (1s, 2s, 4s).
func (c *OpenAIClient) Invoke(ctx context.Context, prompt string, tools []string, history []Dialogue) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("API key not configured")
	}

	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 600*time.Millisecond {
		time.Sleep(600*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	system := baseSystemPrompt
	if len(tools) > 0 {
		system += "\nTools available on this engagement: " + strings.Join(tools, ", ") + "."
	}

	messages := make([]chatMessage, 0, 2*len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: system})
	promptTokens := EstimateTokens(system)
	for _, d := range history {
		if d.UserQuery != "" {
			messages = append(messages, chatMessage{Role: "user", Content: d.UserQuery})
			promptTokens += EstimateTokens(d.UserQuery)
		}
		if d.Response != "" {
			messages = append(messages, chatMessage{Role: "assistant", Content: d.Response})
			promptTokens += EstimateTokens(d.Response)
		}
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})
	promptTokens += EstimateTokens(prompt)

	reqBody := chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxOutputTokens(promptTokens),
		Temperature: 0.1, // structured output, keep it deterministic
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	timer := logging.StartTimer(logging.CategoryOracle, "Invoke")
	defer timer.Stop()
	logging.OracleDebug("Invoke: model=%s prompt_tokens~%d tools=%d history=%d",
		c.model, promptTokens, len(tools), len(history))

	maxRetries := 3
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			// Exponential backoff: 1s, 2s, 4s
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.retryBackoffBase << uint(i-1)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			logging.OracleDebug("429 received, retry %d/%d", i+1, maxRetries)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var parsed chatResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
		if parsed.Error != nil {
			return "", fmt.Errorf("API error: %s", parsed.Error.Message)
		}
		if len(parsed.Choices) == 0 {
			return "", fmt.Errorf("no completion returned")
		}

		return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
	}

	logging.OracleError("Invoke failed after retries: %v", lastErr)
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

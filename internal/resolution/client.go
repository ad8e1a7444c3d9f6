package resolution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Default configuration values.
const (
	defaultBaseURL     = "https://openrouter.ai/api/v1"
	defaultModel       = "openai/gpt-4o-mini"
	defaultMaxTokens   = 1000
	defaultTemperature = 0.3
	defaultTimeout     = 30 * time.Second
)

// CompletionClient is the completion capability consumed by the Engine.
type CompletionClient interface {
	// Complete sends a system and user message and returns the
	// generated text.
	Complete(ctx context.Context, system, user string) (string, error)
}

// OpenAIClientConfig holds configuration for the OpenAI-compatible
// completion client.
type OpenAIClientConfig struct {
	// BaseURL includes the version prefix, e.g.
	// https://openrouter.ai/api/v1 or https://api.openai.com/v1.
	BaseURL string

	// Model is the completion model, e.g. openai/gpt-4o-mini.
	Model string

	// APIKey authenticates the endpoint.
	APIKey string

	// Temperature for completions. Default: 0.3
	Temperature float64

	// MaxTokens bounds the completion length. Default: 1000
	MaxTokens int

	// Timeout bounds each request. On expiry the resolution attempt
	// fails; there is no retry.
	// Default: 30 seconds
	Timeout time.Duration
}

// ApplyDefaults fills in default values for unset fields.
func (c *OpenAIClientConfig) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Temperature == 0 {
		c.Temperature = defaultTemperature
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

// Validate validates the configuration.
func (c OpenAIClientConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("completion API key required")
	}
	return nil
}

// OpenAIClient is an OpenAI-compatible chat-completions client.
type OpenAIClient struct {
	config     OpenAIClientConfig
	apiKey     string `json:"-"` // Never serialize API keys
	httpClient *http.Client
}

// NewOpenAIClient creates a completion client for an OpenAI-compatible
// chat-completions endpoint.
func NewOpenAIClient(config OpenAIClientConfig) (*OpenAIClient, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	apiKey := config.APIKey
	config.APIKey = "" // keep the key out of the config struct

	return &OpenAIClient{
		config: config,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// chatRequest represents the request format for the chat completions API.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

// chatMessage represents a message in the conversation.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse represents the response from the chat completions API.
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
}

// chatError represents an error response from the API.
type chatError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Complete sends the system and user messages and returns the generated
// text. Error messages never include the API key.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	req := chatRequest{
		Model:       c.config.Model,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: marshaling request: %v", ErrGeneration, err)
	}

	url := strings.TrimSuffix(c.config.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %v", ErrGeneration, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: request failed: %v", ErrGeneration, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrGeneration, err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp chatError
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return "", fmt.Errorf("%w: API error (%d): %s", ErrGeneration, resp.StatusCode, errResp.Error.Message)
		}
		return "", fmt.Errorf("%w: API error (%d): %s", ErrGeneration, resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("%w: parsing response: %v", ErrGeneration, err)
	}

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}

	return chatResp.Choices[0].Message.Content, nil
}

// Ensure OpenAIClient implements CompletionClient.
var _ CompletionClient = (*OpenAIClient)(nil)

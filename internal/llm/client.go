// Package llm implements a client for an OpenAI-compatible chat-completions
// service. Both completion calls of the chat pipeline (plan generation and
// result summarization) go through it.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"joblog-insights/internal/common/config"
	"joblog-insights/internal/common/logger"
)

var (
	ErrNotConfigured = errors.New("LLM_NOT_CONFIGURED")
	ErrCallFailed    = errors.New("LLM_CALL_FAILED")
	ErrEmptyResponse = errors.New("LLM_EMPTY_RESPONSE")
)

// Message is one entry in the ordered message sequence of a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer is the capability the chat pipeline needs from a completion
// service. Tests substitute a fake; production uses *Client.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Configured() bool
}

// Client calls a chat-completions endpoint with bearer authentication.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  logger.Logger
}

func NewClient(cfg config.LLMConfig, log logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Millisecond,
		},
		logger: log.WithFields(map[string]interface{}{
			"component": "llm",
			"model":     cfg.Model,
		}),
	}
}

// Configured reports whether a credential is present. Callers must check it
// before Complete; an unconfigured client never issues a request.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Complete issues a single completion request and returns the generated text
// unchanged. There is no retry: a failure is surfaced immediately.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	requestBody := map[string]interface{}{
		"model":    c.model,
		"messages": messages,
	}

	body, _ := json.Marshal(requestBody)
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCallFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCallFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s", ErrCallFailed, upstreamDetail(resp))
	}

	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return "", fmt.Errorf("%w: decode error: %v", ErrCallFailed, err)
	}

	if len(apiResponse.Choices) == 0 {
		return "", fmt.Errorf("%w: response carries no choices", ErrEmptyResponse)
	}

	content := apiResponse.Choices[0].Message.Content
	c.logger.Debug("completion finished", map[string]interface{}{
		"durationMs":    time.Since(start).Milliseconds(),
		"messageCount":  len(messages),
		"contentLength": len(content),
	})

	return content, nil
}

// upstreamDetail extracts the error message the service returned, falling
// back to the HTTP status line.
func upstreamDetail(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(body) > 0 {
		var apiError struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if jsonErr := json.Unmarshal(body, &apiError); jsonErr == nil && apiError.Error.Message != "" {
			return apiError.Error.Message
		}
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}

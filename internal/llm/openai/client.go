package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"debate-backend/internal/llm"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client implements llm.Client against an OpenAI-compatible Chat Completions
// endpoint. Ark/Doubao deployments are supported by pointing baseURL at the
// vendor's compatible API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient constructs a chat-completions client.
func NewClient(apiKey, baseURL, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("LLM_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	timeout := 300 * time.Second
	if raw := strings.TrimSpace(os.Getenv("LLM_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Tools    []llm.Tool    `json:"tools,omitempty"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message llm.Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Call dispatches a chat completion. Streaming is enabled when onChunk is non-nil.
func (c *Client) Call(ctx context.Context, messages []llm.Message, tools []llm.Tool, onChunk llm.ChunkHandler) (string, error) {
	reqBody := chatRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    filterTools(tools),
		Stream:   onChunk != nil,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return "", fmt.Errorf("llm request timeout: %w", err)
		}
		return "", err
	}
	defer resp.Body.Close()

	if reqBody.Stream {
		return c.consumeStream(resp, onChunk)
	}
	return c.parseComplete(resp)
}

func (c *Client) parseComplete(resp *http.Response) (string, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("llm response parse: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("llm error: %s (%s)", parsed.Error.Message, parsed.Error.Type)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: missing choices", llm.ErrInvalidResponse)
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: empty content", llm.ErrInvalidResponse)
	}
	return content, nil
}

// consumeStream folds SSE fragments into the full text. Each fragment is
// handed to onChunk before the next line is read, so the consumer paces the
// stream.
func (c *Client) consumeStream(resp *http.Response, onChunk llm.ChunkHandler) (string, error) {
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("llm stream http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Skip malformed keep-alive frames; providers interleave them.
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		if content == "" {
			continue
		}
		full.WriteString(content)
		onChunk(content)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("llm stream read: %w", err)
	}
	if full.Len() == 0 {
		return "", fmt.Errorf("%w: empty stream", llm.ErrInvalidResponse)
	}
	return full.String(), nil
}

// filterTools drops tool kinds the chat-completions API does not accept.
// Web search is provided by endpoint plugin configuration, not the tools list.
func filterTools(tools []llm.Tool) []llm.Tool {
	if len(tools) == 0 {
		return nil
	}
	valid := make([]llm.Tool, 0, len(tools))
	for _, t := range tools {
		if t.Type == "web_search" {
			continue
		}
		valid = append(valid, t)
	}
	if len(valid) == 0 {
		return nil
	}
	return valid
}

var _ llm.Client = (*Client)(nil)

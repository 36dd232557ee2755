package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/AutumnsGrove/FableParser/internal/audit"
	"github.com/AutumnsGrove/FableParser/internal/config"
	"github.com/AutumnsGrove/FableParser/internal/entities"
)

const (
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion     = "2023-06-01"

	defaultVisionTimeout = 60 * time.Second
)

// ErrInvalidAPIKey indicates the Anthropic API rejected the key
var ErrInvalidAPIKey = errors.New("invalid or missing Anthropic API key")

// ErrRateLimited indicates the vision API rate limit was exceeded
var ErrRateLimited = errors.New("Anthropic API rate limit exceeded")

// ServerError represents a 5xx error from the Anthropic API
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("Anthropic server error: HTTP %d", e.StatusCode)
}

// AnthropicClient reads book lists out of screenshots via the messages API.
type AnthropicClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	auditor    *audit.Auditor // optional; saves raw replies when set
}

// NewAnthropicClient creates a vision client from config. A nil auditor
// disables reply auditing.
func NewAnthropicClient(cfg config.Vision, auditor *audit.Auditor) *AnthropicClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultVisionTimeout
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	return &AnthropicClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:   anthropicMessagesURL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: maxTokens,
		auditor:   auditor,
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Extract sends the screenshot with the extraction prompt and parses the
// returned mention list.
func (c *AnthropicClient) Extract(ctx context.Context, image Image) ([]entities.RawMention, error) {
	if len(image.Data) == 0 {
		return nil, fmt.Errorf("%w: empty image payload", ErrInvalidImage)
	}
	mediaType := image.MediaType
	if mediaType == "" {
		mediaType = "image/png"
	}

	payload := anthropicRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropicMessage{
			{
				Role: "user",
				Content: []anthropicContent{
					{
						Type: "image",
						Source: &anthropicSource{
							Type:      "base64",
							MediaType: mediaType,
							Data:      base64.StdEncoding.EncodeToString(image.Data),
						},
					},
					{Type: "text", Text: extractionPrompt},
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode vision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create vision request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidAPIKey
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode >= 500:
		return nil, &ServerError{StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected vision status %d: %s", resp.StatusCode, string(respBody))
	}

	var result anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode vision response: %w", err)
	}

	var text string
	for _, block := range result.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	mentions, parseErr := parseMentions(text)
	if c.auditor != nil {
		event := audit.VisionEvent{
			Image:     image.Name,
			Model:     c.model,
			RawReply:  text,
			Mentions:  len(mentions),
			CreatedAt: time.Now(),
		}
		if _, err := c.auditor.SaveEvent(event); err != nil {
			log.Printf("vision: audit save failed: %v", err)
		}
	}
	return mentions, parseErr
}

package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"companion-chat/internal/models"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 30 * time.Second
)

// Client calls a remote chat-completions API to generate persona replies
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	model      string
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets a custom model
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL sets a custom API base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new text-generation API client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		model: defaultModel,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate produces a reply in the persona's voice. The persona's voice
// attributes and the recent transcript are folded into the system prompt;
// the user's message is the sole user turn. The caller's ctx bounds the
// whole call.
func (c *Client) Generate(ctx context.Context, prompt string, persona models.Persona, history string) (string, error) {
	log.Printf("[Responder] Generate started persona_id=%d persona_name=%s model=%s", persona.ID, persona.Name, c.model)

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: buildSystemPrompt(persona, history)},
			{Role: "user", Content: prompt},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Responder] Generate failed: send request persona_name=%s err=%v", persona.Name, err)
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		log.Printf("[Responder] Generate failed: status=%d persona_name=%s body=%s", resp.StatusCode, persona.Name, string(respBody))
		return "", fmt.Errorf("generation request failed with status %d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("generation error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("generation returned no choices")
	}

	content := chatResp.Choices[0].Message.Content
	log.Printf("[Responder] Generate completed persona_name=%s content_length=%d", persona.Name, len(content))
	return content, nil
}

// buildSystemPrompt folds the persona's voice attributes and the recent
// transcript into one system message
func buildSystemPrompt(persona models.Persona, history string) string {
	prompt := "You are \"" + persona.Name + "\", a character in a group chat with one human user and other characters.\n\n" +
		"【Your Settings】\n" + persona.Voice + "\n\n" +
		"Reply in character, in one short chat message. Do not prefix your reply with your name."

	if history != "" {
		prompt += "\n\n【Conversation History】\n" + history
	}

	return prompt
}

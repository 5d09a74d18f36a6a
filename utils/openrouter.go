package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"dealdialer/config"
)

// OpenRouterClient calls an OpenAI-compatible /chat/completions endpoint.
// OpenRouter fronts many models behind the same wire shape, so BaseURL
// can also point at OpenAI or any compatible server.
type OpenRouterClient struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

func NewOpenRouterClient() *OpenRouterClient {
	return &OpenRouterClient{
		BaseURL: strings.TrimRight(config.AppConfig.OpenRouter.BaseURL, "/"),
		APIKey:  config.AppConfig.OpenRouter.APIKey,
		Model:   config.AppConfig.OpenRouter.Model,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type orMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type orResponseFormat struct {
	Type string `json:"type"`
}

type orChatRequest struct {
	Model          string            `json:"model"`
	Messages       []orMessage       `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat *orResponseFormat `json:"response_format,omitempty"`
}

type orChatResponse struct {
	Choices []struct {
		Message orMessage `json:"message"`
	} `json:"choices"`
}

type orErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// CreateCompletion sends a system+user prompt pair and returns the raw
// model output.
func (oc *OpenRouterClient) CreateCompletion(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return oc.complete(ctx, systemPrompt, userPrompt, nil)
}

// CreateJSONCompletion forces json_object output, for structured
// classification calls.
func (oc *OpenRouterClient) CreateJSONCompletion(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return oc.complete(ctx, systemPrompt, userPrompt, &orResponseFormat{Type: "json_object"})
}

func (oc *OpenRouterClient) complete(ctx context.Context, systemPrompt, userPrompt string, format *orResponseFormat) (string, error) {
	if oc.Model == "" {
		return "", &ExternalApiError{Service: "openrouter", Msg: "model not configured"}
	}

	messages := make([]orMessage, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, orMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, orMessage{Role: "user", Content: userPrompt})

	body, err := json.Marshal(orChatRequest{
		Model:          oc.Model,
		Messages:       messages,
		Temperature:    0.2,
		ResponseFormat: format,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, oc.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if oc.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+oc.APIKey)
	}

	resp, err := oc.HTTPClient.Do(req)
	if err != nil {
		return "", &ExternalApiError{Service: "openrouter", Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp orErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error.Message
		if msg == "" {
			msg = resp.Status
		}
		return "", &ExternalApiError{Service: "openrouter", Status: resp.StatusCode, Msg: msg}
	}

	var chatResp orChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", &ExternalApiError{Service: "openrouter", Msg: "decode: " + err.Error()}
	}
	if len(chatResp.Choices) == 0 {
		return "", &ExternalApiError{Service: "openrouter", Msg: "empty choices"}
	}

	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return "", &ExternalApiError{Service: "openrouter", Msg: "empty completion"}
	}
	return text, nil
}

// StripCodeFence removes a markdown code fence around a JSON payload.
// Some models wrap json_object output in ```json blocks anyway.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

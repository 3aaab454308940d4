// Package openrouter implements the chat and structured-extraction
// capabilities against the OpenRouter chat completions API.
package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/yond5413/agent-workflow-builder/capability"
	"github.com/yond5413/agent-workflow-builder/internal/utils"
)

const (
	defaultBaseURL          = "https://openrouter.ai/api/v1"
	chatCompletionsEndpoint = "/chat/completions"

	// extractionTemperature keeps schema extraction deterministic.
	extractionTemperature = 0.3
)

// Provider calls the OpenRouter API. It implements [capability.Chat] and
// [capability.Extractor].
type Provider struct {
	apiKey  string
	baseURL string
	referer string
	client  *http.Client
}

// New creates a Provider configured from the OPENROUTER_API_KEY environment
// variable.
func New() *Provider {
	baseURL := os.Getenv("OPENROUTER_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		apiKey:  os.Getenv("OPENROUTER_API_KEY"),
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// WithAPIKey sets the API key.
func (p *Provider) WithAPIKey(apiKey string) *Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL sets the API base URL.
func (p *Provider) WithBaseURL(baseURL string) *Provider {
	p.baseURL = baseURL
	return p
}

// WithReferer sets the HTTP-Referer header OpenRouter uses for app
// attribution.
func (p *Provider) WithReferer(referer string) *Provider {
	p.referer = referer
	return p
}

// WithHTTPClient sets a custom HTTP client.
func (p *Provider) WithHTTPClient(client *http.Client) *Provider {
	p.client = client
	return p
}

func (p *Provider) headers() map[string]string {
	headers := utils.BearerHeader(p.apiKey)
	if p.referer != "" {
		headers["HTTP-Referer"] = p.referer
	}
	return headers
}

// Complete implements [capability.Chat].
func (p *Provider) Complete(ctx context.Context, req capability.ChatRequest) (*capability.ChatResult, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openrouter: %w", capability.ErrNotConfigured)
	}

	body := chatRequest{
		Model:       req.Model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	resp, err := utils.PostJSON[chatResponse](ctx, p.client, p.baseURL+chatCompletionsEndpoint, p.headers(), body)
	if err != nil {
		return nil, fmt.Errorf("openrouter chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openrouter returned no choices")
	}

	result := &capability.ChatResult{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
	}
	if result.Model == "" {
		result.Model = req.Model
	}
	if resp.Usage != nil {
		result.Usage = &capability.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return result, nil
}

// Extract implements [capability.Extractor]. The model is instructed to
// answer with JSON only; responses that are near-JSON are repaired before
// being rejected.
func (p *Provider) Extract(ctx context.Context, req capability.ExtractRequest) (*capability.ExtractResult, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openrouter: %w", capability.ErrNotConfigured)
	}

	var schema any
	if err := json.Unmarshal(req.Schema, &schema); err != nil {
		return nil, fmt.Errorf("invalid JSON schema: %w", err)
	}
	schemaText, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render schema: %w", err)
	}

	prompt := fmt.Sprintf(`Extract information from the following text according to this JSON schema:

Schema:
%s

Text:
%s

Return ONLY valid JSON matching the schema above, with no additional text or explanation.`, schemaText, req.Text)

	body := chatRequest{
		Model:          req.Model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		Temperature:    extractionTemperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	resp, err := utils.PostJSON[chatResponse](ctx, p.client, p.baseURL+chatCompletionsEndpoint, p.headers(), body)
	if err != nil {
		return nil, fmt.Errorf("openrouter extraction: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openrouter returned no choices")
	}

	value, err := utils.ParseJSONValue(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("parse extraction response: %w", err)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode extraction result: %w", err)
	}

	return &capability.ExtractResult{
		Data:   data,
		Schema: req.Schema,
	}, nil
}

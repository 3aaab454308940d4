// Package cohere implements the embedding capability against the Cohere
// embed API.
package cohere

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/yond5413/agent-workflow-builder/capability"
	"github.com/yond5413/agent-workflow-builder/internal/utils"
)

const (
	defaultBaseURL = "https://api.cohere.com/v1"
	embedEndpoint  = "/embed"

	// DefaultModel is used when the request leaves the model unset.
	DefaultModel = "embed-english-v3.0"
	// DefaultInputType is used when the request leaves the input type unset.
	DefaultInputType = "search_document"
)

// InputTypes lists the input types the embed API accepts.
var InputTypes = []string{"search_document", "search_query", "classification", "clustering"}

// Embedder calls the Cohere API. It implements [capability.Embedder].
type Embedder struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New creates an Embedder configured from the COHERE_API_KEY environment
// variable.
func New() *Embedder {
	baseURL := os.Getenv("COHERE_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Embedder{
		apiKey:  os.Getenv("COHERE_API_KEY"),
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// WithAPIKey sets the API key.
func (e *Embedder) WithAPIKey(apiKey string) *Embedder {
	e.apiKey = apiKey
	return e
}

// WithBaseURL sets the API base URL.
func (e *Embedder) WithBaseURL(baseURL string) *Embedder {
	e.baseURL = baseURL
	return e
}

// WithHTTPClient sets a custom HTTP client.
func (e *Embedder) WithHTTPClient(client *http.Client) *Embedder {
	e.client = client
	return e
}

type embedRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

type embedResponse struct {
	ID         string      `json:"id"`
	Embeddings [][]float64 `json:"embeddings"`
}

// Embed implements [capability.Embedder]. One vector is returned per input
// text, in input order.
func (e *Embedder) Embed(ctx context.Context, req capability.EmbedRequest) (*capability.EmbedResult, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("cohere: %w", capability.ErrNotConfigured)
	}
	if len(req.Texts) == 0 {
		return nil, fmt.Errorf("at least one text is required")
	}

	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	inputType := req.InputType
	if inputType == "" {
		inputType = DefaultInputType
	}
	if !validInputType(inputType) {
		return nil, fmt.Errorf("invalid inputType %q, must be one of: %s", inputType, strings.Join(InputTypes, ", "))
	}

	resp, err := utils.PostJSON[embedResponse](ctx, e.client, e.baseURL+embedEndpoint, utils.BearerHeader(e.apiKey), embedRequest{
		Texts:     req.Texts,
		Model:     model,
		InputType: inputType,
	})
	if err != nil {
		return nil, fmt.Errorf("cohere embed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("cohere embed returned no embeddings")
	}

	return &capability.EmbedResult{
		Embeddings: resp.Embeddings,
		Model:      model,
		InputType:  inputType,
	}, nil
}

func validInputType(inputType string) bool {
	for _, valid := range InputTypes {
		if inputType == valid {
			return true
		}
	}
	return false
}

// Package cloudflare implements the image-synthesis capability against the
// Cloudflare Workers AI inference API.
package cloudflare

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/yond5413/agent-workflow-builder/capability"
	"github.com/yond5413/agent-workflow-builder/internal/utils"
)

const (
	defaultBaseURL = "https://api.cloudflare.com/client/v4"

	// DefaultModel is the text-to-image model invoked by default.
	DefaultModel = "@cf/lykon/dreamshaper-8-lcm"
)

// Generator calls Workers AI. It implements [capability.ImageGen].
type Generator struct {
	accountID string
	apiToken  string
	baseURL   string
	model     string
	client    *http.Client
}

// New creates a Generator configured from the CLOUDFLARE_ACCOUNT_ID and
// CLOUDFLARE_API_TOKEN environment variables.
func New() *Generator {
	baseURL := os.Getenv("CLOUDFLARE_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Generator{
		accountID: os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
		apiToken:  os.Getenv("CLOUDFLARE_API_TOKEN"),
		baseURL:   baseURL,
		model:     DefaultModel,
		client:    &http.Client{},
	}
}

// WithAccountID sets the Cloudflare account.
func (g *Generator) WithAccountID(accountID string) *Generator {
	g.accountID = accountID
	return g
}

// WithAPIToken sets the API token.
func (g *Generator) WithAPIToken(apiToken string) *Generator {
	g.apiToken = apiToken
	return g
}

// WithModel sets the Workers AI model identifier.
func (g *Generator) WithModel(model string) *Generator {
	g.model = model
	return g
}

// WithHTTPClient sets a custom HTTP client.
func (g *Generator) WithHTTPClient(client *http.Client) *Generator {
	g.client = client
	return g
}

type imageRequest struct {
	Prompt string `json:"prompt"`
}

// Generate implements [capability.ImageGen]. The model answers with binary
// image data directly.
func (g *Generator) Generate(ctx context.Context, req capability.ImageRequest) (*capability.ImageResult, error) {
	if g.accountID == "" || g.apiToken == "" {
		return nil, fmt.Errorf("cloudflare: %w", capability.ErrNotConfigured)
	}
	if req.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	endpoint := fmt.Sprintf("%s/accounts/%s/ai/run/%s", g.baseURL, g.accountID, g.model)

	image, contentType, err := utils.PostBinary(ctx, g.client, endpoint, utils.BearerHeader(g.apiToken), imageRequest{Prompt: req.Prompt})
	if err != nil {
		return nil, fmt.Errorf("cloudflare image generation: %w", err)
	}

	if contentType == "" {
		contentType = "image/jpeg"
	}
	return &capability.ImageResult{
		Image:    image,
		MIMEType: contentType,
	}, nil
}

// Package firecrawl implements the scraper capability against the Firecrawl
// hosted scraping API, which handles JavaScript rendering and main-content
// extraction.
package firecrawl

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/yond5413/agent-workflow-builder/capability"
	"github.com/yond5413/agent-workflow-builder/internal/utils"
)

const (
	defaultBaseURL = "https://api.firecrawl.dev/v1"
	scrapeEndpoint = "/scrape"
)

var privateClassB = regexp.MustCompile(`^172\.(1[6-9]|2[0-9]|3[0-1])\.`)

// Scraper calls the Firecrawl API. It implements [capability.Scraper].
type Scraper struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New creates a Scraper configured from the FIRECRAWL_API_KEY environment
// variable.
func New() *Scraper {
	baseURL := os.Getenv("FIRECRAWL_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Scraper{
		apiKey:  os.Getenv("FIRECRAWL_API_KEY"),
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// WithAPIKey sets the API key.
func (s *Scraper) WithAPIKey(apiKey string) *Scraper {
	s.apiKey = apiKey
	return s
}

// WithBaseURL sets the API base URL.
func (s *Scraper) WithBaseURL(baseURL string) *Scraper {
	s.baseURL = baseURL
	return s
}

// WithHTTPClient sets a custom HTTP client.
func (s *Scraper) WithHTTPClient(client *http.Client) *Scraper {
	s.client = client
	return s
}

// scrapeRequest is the wire format of the scrape endpoint.
type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Markdown string         `json:"markdown"`
		HTML     string         `json:"html"`
		Metadata map[string]any `json:"metadata"`
	} `json:"data"`
}

// Scrape implements [capability.Scraper]. URLs pointing at local or private
// addresses are rejected before any request is made.
func (s *Scraper) Scrape(ctx context.Context, req capability.ScrapeRequest) (*capability.ScrapeResult, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("firecrawl: %w", capability.ErrNotConfigured)
	}
	if req.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	if !isURLSafe(req.URL) {
		return nil, fmt.Errorf("invalid or unsafe URL: local and internal addresses are not allowed")
	}

	resp, err := utils.PostJSON[scrapeResponse](ctx, s.client, s.baseURL+scrapeEndpoint, utils.BearerHeader(s.apiKey), scrapeRequest{
		URL:             req.URL,
		Formats:         []string{"markdown", "html"},
		OnlyMainContent: true,
	})
	if err != nil {
		return nil, fmt.Errorf("firecrawl scrape: %w", err)
	}
	if !resp.Success {
		message := resp.Error
		if message == "" {
			message = "failed to scrape URL"
		}
		return nil, fmt.Errorf("firecrawl scrape: %s", message)
	}

	text := resp.Data.Markdown
	if req.MaxLength > 0 && len(text) > req.MaxLength {
		text = text[:req.MaxLength] + "..."
	}

	return &capability.ScrapeResult{
		Text:     text,
		Markdown: resp.Data.Markdown,
		HTML:     resp.Data.HTML,
		Metadata: resp.Data.Metadata,
		URL:      req.URL,
		Length:   len(text),
	}, nil
}

// isURLSafe rejects URLs that could reach local or private network
// addresses, and any scheme other than http or https.
func isURLSafe(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	host := strings.ToLower(parsed.Hostname())
	switch host {
	case "localhost", "127.0.0.1", "0.0.0.0":
		return false
	}
	if strings.HasPrefix(host, "10.") ||
		strings.HasPrefix(host, "192.168.") ||
		strings.HasPrefix(host, "169.254.") ||
		privateClassB.MatchString(host) {
		return false
	}
	return true
}

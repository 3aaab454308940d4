// Package webfetch implements the scraper capability with a local HTTP
// client: it fetches the page itself and converts the HTML to Markdown.
// No API key is needed, which makes it the default scraper.
package webfetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/yond5413/agent-workflow-builder/capability"
)

const (
	// DefaultTimeout is the overall request timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent identifies the scraper to origin servers.
	DefaultUserAgent = "agent-workflow-builder/1.0"
	// MaxBodySize caps the response body at 10MB.
	MaxBodySize = 10 * 1024 * 1024

	dialTimeout           = 10 * time.Second
	tlsHandshakeTimeout   = 10 * time.Second
	responseHeaderTimeout = 10 * time.Second
	idleConnTimeout       = 90 * time.Second
)

// Scraper fetches pages with the standard library HTTP client. It implements
// [capability.Scraper].
type Scraper struct {
	userAgent string
	client    *http.Client
}

// New creates a Scraper with conservative connection timeouts and a redirect
// cap of ten hops.
func New() *Scraper {
	return &Scraper{
		userAgent: DefaultUserAgent,
		client: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   dialTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   tlsHandshakeTimeout,
				ResponseHeaderTimeout: responseHeaderTimeout,
				IdleConnTimeout:       idleConnTimeout,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				ForceAttemptHTTP2:     true,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects (>10)")
				}
				return nil
			},
		},
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func (s *Scraper) WithUserAgent(userAgent string) *Scraper {
	s.userAgent = userAgent
	return s
}

// WithHTTPClient sets a custom HTTP client.
func (s *Scraper) WithHTTPClient(client *http.Client) *Scraper {
	s.client = client
	return s
}

// Scrape implements [capability.Scraper]. Partial URLs are normalised by
// prepending "https://". The extracted text is the Markdown rendering of the
// page; when the limit is positive it is cut at req.MaxLength with a "..."
// marker appended.
func (s *Scraper) Scrape(ctx context.Context, req capability.ScrapeRequest) (*capability.ScrapeResult, error) {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return nil, fmt.Errorf("url cannot be empty")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d %s", resp.StatusCode, resp.Status)
	}

	htmlBytes, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if len(htmlBytes) == MaxBodySize {
		return nil, fmt.Errorf("response body exceeds maximum size of %d bytes", MaxBodySize)
	}

	markdown, err := htmltomarkdown.ConvertString(string(htmlBytes))
	if err != nil {
		return nil, fmt.Errorf("convert HTML to Markdown: %w", err)
	}

	text := markdown
	if req.MaxLength > 0 && len(text) > req.MaxLength {
		text = text[:req.MaxLength] + "..."
	}

	finalURL := resp.Request.URL.String()
	return &capability.ScrapeResult{
		Text:     text,
		Markdown: markdown,
		HTML:     string(htmlBytes),
		Metadata: map[string]any{
			"statusCode":  resp.StatusCode,
			"contentType": resp.Header.Get("Content-Type"),
		},
		URL:    finalURL,
		Length: len(text),
	}, nil
}

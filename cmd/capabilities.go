package cmd

import (
	"os"

	"github.com/yond5413/agent-workflow-builder/capability"
	"github.com/yond5413/agent-workflow-builder/providers/embed/cohere"
	"github.com/yond5413/agent-workflow-builder/providers/image/cloudflare"
	"github.com/yond5413/agent-workflow-builder/providers/llm/openrouter"
	"github.com/yond5413/agent-workflow-builder/providers/media/ffmpeg"
	"github.com/yond5413/agent-workflow-builder/providers/scrape/firecrawl"
	"github.com/yond5413/agent-workflow-builder/providers/scrape/webfetch"
	"github.com/yond5413/agent-workflow-builder/providers/speech/elevenlabs"
	"github.com/yond5413/agent-workflow-builder/providers/vector/qdrant"
)

// defaultCapabilities wires every provider from environment variables.
// Providers missing their credentials stay wired but fail with
// capability.ErrNotConfigured only when a node actually invokes them.
//
// Scraping uses the hosted Firecrawl API when FIRECRAWL_API_KEY is set and
// falls back to the local HTTP fetcher otherwise.
func defaultCapabilities() capability.Set {
	llm := openrouter.New()
	embedder := cohere.New()

	var scraper capability.Scraper = webfetch.New()
	if os.Getenv("FIRECRAWL_API_KEY") != "" {
		scraper = firecrawl.New()
	}

	return capability.Set{
		Chat:        llm,
		Extractor:   llm,
		Scraper:     scraper,
		Embedder:    embedder,
		VectorIndex: qdrant.New().WithEmbedder(embedder),
		Speech:      elevenlabs.New(),
		ImageGen:    cloudflare.New(),
		Media:       ffmpeg.New(),
	}
}

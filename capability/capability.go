// Package capability defines the abstract boundary between the workflow
// engine and the external services its node executors invoke: chat
// completion, web content extraction, text embedding, vector index queries,
// schema-guided extraction, speech synthesis, image synthesis, and media
// encoding.
//
// Each call is one structured request producing either a structured success
// payload or an error carrying a human-readable message. Implementations are
// expected to enforce their own authentication, retry policy, and timeouts;
// the engine only observes success versus failure and respects the context
// for cancellation. Providers under providers/ implement these interfaces
// against concrete services; tests substitute in-memory fakes.
package capability

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotConfigured is returned when a workflow references a capability that
// the caller did not supply in the [Set].
var ErrNotConfigured = errors.New("capability not configured")

// ChatRequest asks for a single chat completion.
type ChatRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Usage reports token accounting for a chat completion, when the service
// provides it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ChatResult is the completed response from the chat capability.
type ChatResult struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   *Usage `json:"usage,omitempty"`
}

// Chat is a text/chat completion capability.
type Chat interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResult, error)
}

// ScrapeRequest asks for the extracted content of a web page.
type ScrapeRequest struct {
	URL       string `json:"url"`
	MaxLength int    `json:"max_length,omitempty"`
}

// ScrapeResult carries the extracted page content in several renderings.
type ScrapeResult struct {
	Text     string         `json:"text"`
	Markdown string         `json:"markdown"`
	HTML     string         `json:"html"`
	Metadata map[string]any `json:"metadata,omitempty"`
	URL      string         `json:"url"`
	Length   int            `json:"length"`
}

// Scraper is a web-content-extraction capability.
type Scraper interface {
	Scrape(ctx context.Context, req ScrapeRequest) (*ScrapeResult, error)
}

// ExtractRequest asks for structured data pulled from free text according to
// a JSON schema.
type ExtractRequest struct {
	Text   string          `json:"text"`
	Schema json.RawMessage `json:"schema"`
	Model  string          `json:"model,omitempty"`
}

// ExtractResult carries the extracted structure. Data is guaranteed to be
// valid JSON; implementations must fail rather than return unparseable
// content.
type ExtractResult struct {
	Data   json.RawMessage `json:"structured_data"`
	Schema json.RawMessage `json:"schema"`
}

// Extractor is a schema-guided structured-JSON-extraction capability.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (*ExtractResult, error)
}

// EmbedRequest asks for vector embeddings of one or more texts.
type EmbedRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model,omitempty"`
	InputType string   `json:"inputType,omitempty"`
}

// EmbedResult carries one embedding vector per input text, in input order.
type EmbedResult struct {
	Embeddings [][]float64 `json:"embeddings"`
	Model      string      `json:"model"`
	InputType  string      `json:"inputType"`
}

// Embedder is a text-embedding capability.
type Embedder interface {
	Embed(ctx context.Context, req EmbedRequest) (*EmbedResult, error)
}

// SearchRequest queries a vector collection. Exactly one of Vector or
// QueryText should be set; when only QueryText is present the capability
// embeds it server-side before searching.
type SearchRequest struct {
	CollectionName string    `json:"collectionName"`
	Vector         []float64 `json:"vector,omitempty"`
	QueryText      string    `json:"queryText,omitempty"`
	TopK           int       `json:"topK,omitempty"`
	ScoreThreshold float64   `json:"scoreThreshold,omitempty"`
}

// SearchHit is one scored match from a vector search.
type SearchHit struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
}

// UpsertRequest inserts or replaces points in a vector collection, creating
// the collection when it does not exist.
type UpsertRequest struct {
	CollectionName string  `json:"collectionName"`
	Points         []Point `json:"points"`
}

// Point is one vector with its identifier and payload.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float64      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// VectorIndex is a vector database capability: similarity query, point
// upsert, and collection listing.
type VectorIndex interface {
	Search(ctx context.Context, req SearchRequest) ([]SearchHit, error)
	Upsert(ctx context.Context, req UpsertRequest) error
	Collections(ctx context.Context) ([]string, error)
}

// SpeechRequest asks for synthesized speech audio for a text.
type SpeechRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId,omitempty"`
}

// SpeechResult carries the synthesized audio bytes and their MIME type.
type SpeechResult struct {
	Audio    []byte `json:"-"`
	MIMEType string `json:"mimeType"`
}

// Speech is a speech-synthesis capability.
type Speech interface {
	Synthesize(ctx context.Context, req SpeechRequest) (*SpeechResult, error)
}

// ImageRequest asks for a generated image from a text prompt.
type ImageRequest struct {
	Prompt string `json:"prompt"`
}

// ImageResult carries the generated image bytes and their MIME type.
type ImageResult struct {
	Image    []byte `json:"-"`
	MIMEType string `json:"mimeType"`
}

// ImageGen is an image-synthesis capability.
type ImageGen interface {
	Generate(ctx context.Context, req ImageRequest) (*ImageResult, error)
}

// EncodeRequest asks for a video assembled from an image sequence, looped or
// concatenated at a fixed duration per image, optionally muxed with an audio
// track. Images and Audio are data URIs or raw base64 payloads.
type EncodeRequest struct {
	Images          []string `json:"images"`
	Audio           string   `json:"audio,omitempty"`
	SecondsPerImage int      `json:"secondsPerImage,omitempty"`
}

// EncodeResult carries the encoded video container bytes and their MIME type.
type EncodeResult struct {
	Video    []byte `json:"-"`
	MIMEType string `json:"mimeType"`
}

// MediaEncoder turns an image sequence plus optional audio into a video
// container. The substrate is deliberately unspecified: an in-process
// encoder, a subprocess, or a remote service all satisfy the contract.
type MediaEncoder interface {
	Encode(ctx context.Context, req EncodeRequest) (*EncodeResult, error)
}

// Set bundles every capability the engine's node executors may invoke. A nil
// member causes nodes of the corresponding type to fail with
// [ErrNotConfigured]; a workflow that never reaches such a node runs
// unaffected.
type Set struct {
	Chat        Chat
	Scraper     Scraper
	Extractor   Extractor
	Embedder    Embedder
	VectorIndex VectorIndex
	Speech      Speech
	ImageGen    ImageGen
	Media       MediaEncoder
}

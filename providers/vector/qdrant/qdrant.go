// Package qdrant implements the vector index capability against the Qdrant
// REST API.
package qdrant

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/yond5413/agent-workflow-builder/capability"
	"github.com/yond5413/agent-workflow-builder/internal/utils"
)

// DefaultVectorSize is the dimensionality used when creating collections on
// first upsert. It matches the Cohere v3 embedding models.
const DefaultVectorSize = 1024

// Index calls a Qdrant instance. It implements [capability.VectorIndex].
//
// Text queries need an embedding first; when an [capability.Embedder] is
// attached via WithEmbedder, Search transparently embeds QueryText as a
// search query before hitting Qdrant.
type Index struct {
	baseURL    string
	apiKey     string
	vectorSize int
	embedder   capability.Embedder
	client     *http.Client
}

// New creates an Index configured from the QDRANT_URL and QDRANT_API_KEY
// environment variables.
func New() *Index {
	return &Index{
		baseURL:    os.Getenv("QDRANT_URL"),
		apiKey:     os.Getenv("QDRANT_API_KEY"),
		vectorSize: DefaultVectorSize,
		client:     &http.Client{},
	}
}

// WithURL sets the Qdrant base URL.
func (i *Index) WithURL(baseURL string) *Index {
	i.baseURL = baseURL
	return i
}

// WithAPIKey sets the API key.
func (i *Index) WithAPIKey(apiKey string) *Index {
	i.apiKey = apiKey
	return i
}

// WithEmbedder attaches an embedder used to turn text queries into vectors.
func (i *Index) WithEmbedder(embedder capability.Embedder) *Index {
	i.embedder = embedder
	return i
}

// WithVectorSize sets the dimensionality of collections created on upsert.
func (i *Index) WithVectorSize(size int) *Index {
	i.vectorSize = size
	return i
}

// WithHTTPClient sets a custom HTTP client.
func (i *Index) WithHTTPClient(client *http.Client) *Index {
	i.client = client
	return i
}

func (i *Index) headers() map[string]string {
	if i.apiKey == "" {
		return map[string]string{}
	}
	return map[string]string{"api-key": i.apiKey}
}

// Search implements [capability.VectorIndex]. The target collection must
// already exist. When the request carries only QueryText, the attached
// embedder converts it to a vector first.
func (i *Index) Search(ctx context.Context, req capability.SearchRequest) ([]capability.SearchHit, error) {
	if i.baseURL == "" {
		return nil, fmt.Errorf("qdrant: %w", capability.ErrNotConfigured)
	}
	if req.CollectionName == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if req.TopK < 1 || req.TopK > 100 {
		return nil, fmt.Errorf("topK must be between 1 and 100, got %d", req.TopK)
	}

	vector := req.Vector
	if vector == nil {
		if req.QueryText == "" {
			return nil, fmt.Errorf("either vector or queryText is required")
		}
		if i.embedder == nil {
			return nil, fmt.Errorf("text queries need an embedder: %w", capability.ErrNotConfigured)
		}
		embedded, err := i.embedder.Embed(ctx, capability.EmbedRequest{
			Texts:     []string{req.QueryText},
			InputType: "search_query",
		})
		if err != nil {
			return nil, fmt.Errorf("embed query text: %w", err)
		}
		vector = embedded.Embeddings[0]
	}

	exists, err := i.collectionExists(ctx, req.CollectionName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("collection %q does not exist", req.CollectionName)
	}

	resp, err := utils.PostJSON[searchResponse](ctx, i.client, i.endpoint("/collections/%s/points/search", req.CollectionName), i.headers(), searchRequest{
		Vector:         vector,
		Limit:          req.TopK,
		ScoreThreshold: req.ScoreThreshold,
		WithPayload:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	hits := make([]capability.SearchHit, len(resp.Result))
	for idx, point := range resp.Result {
		hits[idx] = capability.SearchHit{
			ID:      fmt.Sprintf("%v", point.ID),
			Score:   point.Score,
			Payload: point.Payload,
		}
	}
	return hits, nil
}

// Upsert implements [capability.VectorIndex], creating the collection with
// cosine distance when it does not exist yet.
func (i *Index) Upsert(ctx context.Context, req capability.UpsertRequest) error {
	if i.baseURL == "" {
		return fmt.Errorf("qdrant: %w", capability.ErrNotConfigured)
	}
	if req.CollectionName == "" {
		return fmt.Errorf("collection name is required")
	}
	if len(req.Points) == 0 {
		return fmt.Errorf("points array is required and must not be empty")
	}

	exists, err := i.collectionExists(ctx, req.CollectionName)
	if err != nil {
		return err
	}
	if !exists {
		size := i.vectorSize
		if len(req.Points[0].Vector) > 0 {
			size = len(req.Points[0].Vector)
		}
		_, err := utils.DoJSON[statusResponse](ctx, i.client, http.MethodPut, i.endpoint("/collections/%s", req.CollectionName), i.headers(), createCollectionRequest{
			Vectors: vectorParams{Size: size, Distance: "Cosine"},
		})
		if err != nil {
			return fmt.Errorf("qdrant create collection: %w", err)
		}
	}

	points := make([]pointStruct, len(req.Points))
	for idx, point := range req.Points {
		points[idx] = pointStruct{
			ID:      point.ID,
			Vector:  point.Vector,
			Payload: point.Payload,
		}
	}
	_, err = utils.DoJSON[statusResponse](ctx, i.client, http.MethodPut, i.endpoint("/collections/%s/points?wait=true", req.CollectionName), i.headers(), upsertRequest{Points: points})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

// Collections implements [capability.VectorIndex].
func (i *Index) Collections(ctx context.Context) ([]string, error) {
	if i.baseURL == "" {
		return nil, fmt.Errorf("qdrant: %w", capability.ErrNotConfigured)
	}

	resp, err := utils.DoJSON[collectionsResponse](ctx, i.client, http.MethodGet, i.baseURL+"/collections", i.headers(), nil)
	if err != nil {
		return nil, fmt.Errorf("qdrant list collections: %w", err)
	}

	names := make([]string, len(resp.Result.Collections))
	for idx, collection := range resp.Result.Collections {
		names[idx] = collection.Name
	}
	return names, nil
}

func (i *Index) collectionExists(ctx context.Context, name string) (bool, error) {
	names, err := i.Collections(ctx)
	if err != nil {
		return false, err
	}
	for _, existing := range names {
		if existing == name {
			return true, nil
		}
	}
	return false, nil
}

func (i *Index) endpoint(format string, collection string) string {
	return i.baseURL + fmt.Sprintf(format, url.PathEscape(collection))
}

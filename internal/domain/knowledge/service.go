package knowledge

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"agora/pkg/errors"
	"agora/pkg/logger"
)

const (
	DefaultSearchLimit = 5
	MaxSearchLimit     = 50
)

// Embedder turns text into vectors. Implemented by the embeddings adapter.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}

// Service manages knowledge collections and semantic search over them.
type Service struct {
	repo     Repository
	embedder Embedder
	log      *logger.Logger
}

// NewService constructs a knowledge service.
func NewService(repo Repository, embedder Embedder) *Service {
	return &Service{
		repo:     repo,
		embedder: embedder,
		log:      logger.Get().With("component", "knowledge"),
	}
}

// ListCollections returns every collection.
func (s *Service) ListCollections(ctx context.Context) ([]*Collection, error) {
	res, err := s.repo.ListCollections(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list collections")
	}
	return res, nil
}

// CreateCollection registers a new collection bound to the current embedding model.
func (s *Service) CreateCollection(ctx context.Context, name, description string) (*Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.NewValidationError("name", "collection name is required", name)
	}

	c := &Collection{
		Name:           name,
		Description:    description,
		EmbeddingModel: s.embedder.Name(),
		Dimensions:     s.embedder.Dimensions(),
	}
	if err := s.repo.CreateCollection(ctx, c); err != nil {
		return nil, errors.Wrapf(err, "create collection %s", name)
	}

	s.log.Infow("Collection created", "collection", name, "model", c.EmbeddingModel, "dimensions", c.Dimensions)
	return c, nil
}

// GetCollection returns one collection with its document count.
func (s *Service) GetCollection(ctx context.Context, name string) (*Collection, error) {
	if name == "" {
		return nil, errors.NewValidationError("name", "collection name is required", name)
	}
	c, err := s.repo.GetCollection(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(err, "get collection %s", name)
	}
	return c, nil
}

// AddDocuments embeds docs in one batch and stores them in collection.
func (s *Service) AddDocuments(ctx context.Context, collection string, docs []NewDocument) ([]*Document, error) {
	if len(docs) == 0 {
		return nil, errors.NewValidationError("documents", "at least one document is required", 0)
	}
	if _, err := s.GetCollection(ctx, collection); err != nil {
		return nil, err
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		if strings.TrimSpace(d.Content) == "" {
			return nil, errors.NewValidationError("content", "document content is required", i)
		}
		texts[i] = d.Content
	}

	vectors, err := s.embedder.GenerateBatchEmbeddings(ctx, texts)
	if err != nil {
		return nil, errors.Wrap(err, "embed documents")
	}
	if len(vectors) != len(docs) {
		return nil, errors.Wrapf(errors.ErrExternal, "got %d embeddings for %d documents", len(vectors), len(docs))
	}

	out := make([]*Document, len(docs))
	for i, d := range docs {
		meta := d.Metadata
		if len(meta) == 0 {
			meta = json.RawMessage(`{}`)
		}
		out[i] = &Document{
			ID:         uuid.New(),
			Collection: collection,
			Content:    d.Content,
			Metadata:   meta,
			Embedding:  pgvector.NewVector(vectors[i]),
		}
	}

	if err := s.repo.InsertDocuments(ctx, out); err != nil {
		return nil, errors.Wrap(err, "insert documents")
	}

	s.log.Infow("Documents added", "collection", collection, "count", len(out))
	return out, nil
}

// Search embeds query and returns the closest documents in collection.
// limit <= 0 means DefaultSearchLimit; larger than MaxSearchLimit is capped.
func (s *Service) Search(ctx context.Context, collection, query string, limit int) ([]*SearchResult, error) {
	if collection == "" {
		return nil, errors.NewValidationError("collection", "collection is required", collection)
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.NewValidationError("query", "query is required", query)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	vec, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "embed query")
	}

	results, err := s.repo.Search(ctx, collection, pgvector.NewVector(vec), limit)
	if err != nil {
		return nil, errors.Wrapf(err, "search collection %s", collection)
	}

	s.log.Debugw("Knowledge search", "collection", collection, "limit", limit, "hits", len(results))
	return results, nil
}

package knowledge

import (
	"context"

	"github.com/pgvector/pgvector-go"
)

// Repository persists collections and documents.
type Repository interface {
	// CreateCollection returns ErrAlreadyExists when the name is taken.
	CreateCollection(ctx context.Context, c *Collection) error
	// GetCollection returns ErrNotFound for unknown names. DocumentCount is filled in.
	GetCollection(ctx context.Context, name string) (*Collection, error)
	ListCollections(ctx context.Context) ([]*Collection, error)

	InsertDocuments(ctx context.Context, docs []*Document) error
	Search(ctx context.Context, collection string, embedding pgvector.Vector, limit int) ([]*SearchResult, error)
}

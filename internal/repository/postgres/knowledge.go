package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"agora/internal/domain/knowledge"
	"agora/pkg/errors"
)

// Compile-time check
var _ knowledge.Repository = (*KnowledgeRepository)(nil)

const uniqueViolation = "23505"

// KnowledgeRepository implements knowledge.Repository using sqlx and pgvector
type KnowledgeRepository struct {
	db DBTX
}

// NewKnowledgeRepository creates a new knowledge repository
func NewKnowledgeRepository(db DBTX) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

// CreateCollection inserts a collection row
func (r *KnowledgeRepository) CreateCollection(ctx context.Context, c *knowledge.Collection) error {
	query := `
		INSERT INTO knowledge_collections (name, description, embedding_model, dimensions)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &c.CreatedAt, query, c.Name, c.Description, c.EmbeddingModel, c.Dimensions)
	if isUniqueViolation(err) {
		return errors.Wrapf(errors.ErrAlreadyExists, "collection %s", c.Name)
	}
	if err != nil {
		return errors.Wrap(err, "insert collection")
	}
	return nil
}

const collectionColumns = `
	c.name, c.description, c.embedding_model, c.dimensions, c.created_at,
	(SELECT COUNT(*) FROM knowledge_documents d WHERE d.collection = c.name) AS document_count`

// GetCollection retrieves a collection with its document count
func (r *KnowledgeRepository) GetCollection(ctx context.Context, name string) (*knowledge.Collection, error) {
	var c knowledge.Collection
	query := `SELECT` + collectionColumns + ` FROM knowledge_collections c WHERE c.name = $1`

	err := r.db.GetContext(ctx, &c, query, name)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "collection %s", name)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get collection")
	}
	return &c, nil
}

// ListCollections returns every collection ordered by name
func (r *KnowledgeRepository) ListCollections(ctx context.Context) ([]*knowledge.Collection, error) {
	var res []*knowledge.Collection
	query := `SELECT` + collectionColumns + ` FROM knowledge_collections c ORDER BY c.name`

	if err := r.db.SelectContext(ctx, &res, query); err != nil {
		return nil, errors.Wrap(err, "list collections")
	}
	return res, nil
}

// InsertDocuments stores docs with one multi-row insert
func (r *KnowledgeRepository) InsertDocuments(ctx context.Context, docs []*knowledge.Document) error {
	if len(docs) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(`INSERT INTO knowledge_documents (id, collection, content, metadata, embedding) VALUES `)
	args := make([]interface{}, 0, len(docs)*5)
	for i, d := range docs {
		if i > 0 {
			b.WriteString(", ")
		}
		n := i * 5
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5)
		args = append(args, d.ID, d.Collection, d.Content, string(d.Metadata), d.Embedding)
	}
	b.WriteString(` RETURNING created_at`)

	var created []sql.NullTime
	if err := r.db.SelectContext(ctx, &created, b.String(), args...); err != nil {
		return errors.Wrap(err, "insert documents")
	}
	for i := range docs {
		if i < len(created) && created[i].Valid {
			docs[i].CreatedAt = created[i].Time
		}
	}
	return nil
}

// Search performs semantic search using pgvector cosine distance
func (r *KnowledgeRepository) Search(ctx context.Context, collection string, embedding pgvector.Vector, limit int) ([]*knowledge.SearchResult, error) {
	var res []*knowledge.SearchResult

	query := `
		SELECT id, collection, content, metadata, embedding, created_at,
		       1 - (embedding <=> $2) AS similarity
		FROM knowledge_documents
		WHERE collection = $1
		ORDER BY embedding <=> $2
		LIMIT $3`

	if err := r.db.SelectContext(ctx, &res, query, collection, embedding, limit); err != nil {
		return nil, errors.Wrap(err, "search documents")
	}
	return res, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

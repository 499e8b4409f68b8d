package knowledge

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Collection groups documents embedded with one model.
type Collection struct {
	Name           string    `db:"name" json:"name"`
	Description    string    `db:"description" json:"description"`
	EmbeddingModel string    `db:"embedding_model" json:"embedding_model"`
	Dimensions     int       `db:"dimensions" json:"dimensions"`
	DocumentCount  int64     `db:"document_count" json:"document_count"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Document is a chunk of knowledge with its embedding.
type Document struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	Collection string          `db:"collection" json:"collection"`
	Content    string          `db:"content" json:"content"`
	Metadata   json.RawMessage `db:"metadata" json:"metadata,omitempty"` // JSONB
	Embedding  pgvector.Vector `db:"embedding" json:"-"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// SearchResult is a document ranked by cosine similarity to the query.
type SearchResult struct {
	Document
	Similarity float64 `db:"similarity" json:"similarity"`
}

// NewDocument is the input for AddDocuments.
type NewDocument struct {
	Content  string          `json:"content"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

package tools

import (
	"context"
	"time"

	"agora/internal/adapters/postgres"
	"agora/internal/domain/knowledge"
)

// BusinessCatalog is the read-only view of the business databases the tools need.
type BusinessCatalog interface {
	Databases() []string
	ListTables(ctx context.Context, database string) ([]string, error)
	TableInfo(ctx context.Context, database, table string) (*postgres.TableInfo, error)
	CountRows(ctx context.Context, database, table string) (int64, error)
}

// KnowledgeBase is the vector store surface the tools need.
type KnowledgeBase interface {
	ListCollections(ctx context.Context) ([]*knowledge.Collection, error)
	Search(ctx context.Context, collection, query string, limit int) ([]*knowledge.SearchResult, error)
}

// Deps contains everything the DB-agent tools call into.
// Nil sources disable their tools.
type Deps struct {
	Business  BusinessCatalog
	Knowledge KnowledgeBase

	// Timeout bounds one tool execution; zero means DefaultTimeout.
	Timeout time.Duration
}

const DefaultTimeout = 30 * time.Second

package tools

import (
	"time"

	"google.golang.org/adk/tool"

	"agora/pkg/logger"
)

const (
	ToolListDatabases   = "list_databases_and_tables"
	ToolDescribeTable   = "describe_table"
	ToolCountRows       = "count_table_rows"
	ToolListCollections = "list_collections"
	ToolSearchKnowledge = "search_knowledge"
)

// NewCatalog builds every tool whose data source is present in deps.
func NewCatalog(deps Deps) (*Registry, error) {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	reg := NewRegistry()
	add := func(t tool.Tool, err error) error {
		if err != nil {
			return err
		}
		reg.Register(t)
		return nil
	}

	if deps.Business != nil {
		b := &businessTools{catalog: deps.Business}
		if err := add(NewBuilder(ToolListDatabases,
			"List every configured business database with its tables.",
			b.listDatabasesAndTables).WithTimeout(timeout).WithMetrics().Build()); err != nil {
			return nil, err
		}
		if err := add(NewBuilder(ToolDescribeTable,
			"Describe one table: columns, types, nullability and primary keys. database is optional and defaults to the first configured database.",
			b.describeTable).WithTimeout(timeout).WithMetrics().Build()); err != nil {
			return nil, err
		}
		if err := add(NewBuilder(ToolCountRows,
			"Count the rows of one table. database is optional and defaults to the first configured database.",
			b.countTableRows).WithTimeout(timeout).WithMetrics().Build()); err != nil {
			return nil, err
		}
	}

	if deps.Knowledge != nil {
		k := &knowledgeTools{kb: deps.Knowledge}
		if err := add(NewBuilder(ToolListCollections,
			"List the knowledge base collections with their document counts.",
			k.listCollections).WithTimeout(timeout).WithMetrics().Build()); err != nil {
			return nil, err
		}
		if err := add(NewBuilder(ToolSearchKnowledge,
			"Semantic search inside one knowledge collection. limit defaults to 5.",
			k.searchKnowledge).WithRetry(2, 500*time.Millisecond).WithTimeout(timeout).WithMetrics().Build()); err != nil {
			return nil, err
		}
	}

	logger.Get().With("component", "tools").Infow("Tools registered", "tools", reg.List())
	return reg, nil
}

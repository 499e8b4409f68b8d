package tools

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"agora/internal/adapters/postgres"
	"agora/pkg/errors"
)

// DatabaseTables lists the tables of one business database.
// Error is set instead of Tables when the database could not be read.
type DatabaseTables struct {
	Database   string   `json:"database"`
	Tables     []string `json:"tables"`
	TableCount int      `json:"table_count"`
	Error      string   `json:"error,omitempty"`
}

type ListDatabasesArgs struct{}

type ListDatabasesResult struct {
	Databases []DatabaseTables `json:"databases"`
	Summary   string           `json:"summary"`
}

type TableArgs struct {
	Database string `json:"database,omitempty"`
	Table    string `json:"table"`
}

type DescribeTableResult struct {
	Table *postgres.TableInfo `json:"table"`
}

type CountRowsResult struct {
	Database string `json:"database"`
	Table    string `json:"table"`
	Count    int64  `json:"count"`
	Summary  string `json:"summary"`
}

type businessTools struct {
	catalog BusinessCatalog
}

// listDatabasesAndTables reports every configured database. A failing database
// is reported inline so the others still reach the model.
func (b *businessTools) listDatabasesAndTables(ctx context.Context, _ ListDatabasesArgs) (ListDatabasesResult, error) {
	dbs := b.catalog.Databases()
	if len(dbs) == 0 {
		return ListDatabasesResult{Summary: "no business databases are configured"}, nil
	}

	res := ListDatabasesResult{Databases: make([]DatabaseTables, 0, len(dbs))}
	total, failed := 0, 0
	for _, db := range dbs {
		entry := DatabaseTables{Database: db}
		tables, err := b.catalog.ListTables(ctx, db)
		if err != nil {
			entry.Error = err.Error()
			failed++
		} else {
			entry.Tables = tables
			entry.TableCount = len(tables)
			total += len(tables)
		}
		res.Databases = append(res.Databases, entry)
	}

	res.Summary = fmt.Sprintf("%d databases, %d tables", len(dbs), total)
	if failed > 0 {
		res.Summary += fmt.Sprintf(", %d databases could not be read", failed)
	}
	return res, nil
}

func (b *businessTools) describeTable(ctx context.Context, args TableArgs) (DescribeTableResult, error) {
	if args.Table == "" {
		return DescribeTableResult{}, errors.NewValidationError("table", "table is required", args.Table)
	}
	info, err := b.catalog.TableInfo(ctx, args.Database, args.Table)
	if err != nil {
		return DescribeTableResult{}, err
	}
	return DescribeTableResult{Table: info}, nil
}

func (b *businessTools) countTableRows(ctx context.Context, args TableArgs) (CountRowsResult, error) {
	if args.Table == "" {
		return CountRowsResult{}, errors.NewValidationError("table", "table is required", args.Table)
	}
	n, err := b.catalog.CountRows(ctx, args.Database, args.Table)
	if err != nil {
		return CountRowsResult{}, err
	}

	db := args.Database
	if db == "" && len(b.catalog.Databases()) > 0 {
		db = b.catalog.Databases()[0]
	}
	return CountRowsResult{
		Database: db,
		Table:    args.Table,
		Count:    n,
		Summary:  fmt.Sprintf("table %s has %s rows", args.Table, humanize.Comma(n)),
	}, nil
}

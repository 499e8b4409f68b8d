package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agora/internal/adapters/postgres"
	"agora/internal/domain/knowledge"
	"agora/pkg/errors"
)

type fakeCatalog struct {
	dbs    []string
	tables map[string][]string
	counts map[string]int64
}

func (f *fakeCatalog) Databases() []string { return f.dbs }

func (f *fakeCatalog) ListTables(_ context.Context, db string) ([]string, error) {
	tables, ok := f.tables[db]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnavailable, "database %s", db)
	}
	return tables, nil
}

func (f *fakeCatalog) TableInfo(_ context.Context, db, table string) (*postgres.TableInfo, error) {
	if table != "users" {
		return nil, errors.Wrapf(errors.ErrNotFound, "table %s", table)
	}
	return &postgres.TableInfo{
		Name:        table,
		Database:    db,
		Columns:     []postgres.ColumnInfo{{Name: "id", Type: "integer", PrimaryKey: true}},
		PrimaryKeys: []string{"id"},
	}, nil
}

func (f *fakeCatalog) CountRows(_ context.Context, _, table string) (int64, error) {
	n, ok := f.counts[table]
	if !ok {
		return 0, errors.ErrNotFound
	}
	return n, nil
}

type fakeKB struct {
	cols  []*knowledge.Collection
	hits  []*knowledge.SearchResult
	limit int
}

func (f *fakeKB) ListCollections(context.Context) ([]*knowledge.Collection, error) {
	return f.cols, nil
}

func (f *fakeKB) Search(_ context.Context, _, _ string, limit int) ([]*knowledge.SearchResult, error) {
	f.limit = limit
	return f.hits, nil
}

func TestListDatabasesReportsFailuresInline(t *testing.T) {
	b := &businessTools{catalog: &fakeCatalog{
		dbs:    []string{"sales", "broken"},
		tables: map[string][]string{"sales": {"orders", "users"}},
	}}

	res, err := b.listDatabasesAndTables(context.Background(), ListDatabasesArgs{})
	require.NoError(t, err)
	require.Len(t, res.Databases, 2)

	assert.Equal(t, []string{"orders", "users"}, res.Databases[0].Tables)
	assert.Equal(t, 2, res.Databases[0].TableCount)
	assert.Empty(t, res.Databases[0].Error)
	assert.Contains(t, res.Databases[1].Error, "service unavailable")
	assert.Equal(t, "2 databases, 2 tables, 1 databases could not be read", res.Summary)
}

func TestListDatabasesWithoutConfiguration(t *testing.T) {
	b := &businessTools{catalog: &fakeCatalog{}}
	res, err := b.listDatabasesAndTables(context.Background(), ListDatabasesArgs{})
	require.NoError(t, err)
	assert.Empty(t, res.Databases)
	assert.Contains(t, res.Summary, "no business databases")
}

func TestDescribeAndCount(t *testing.T) {
	b := &businessTools{catalog: &fakeCatalog{
		dbs:    []string{"sales"},
		counts: map[string]int64{"users": 1234567},
	}}
	ctx := context.Background()

	desc, err := b.describeTable(ctx, TableArgs{Database: "sales", Table: "users"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, desc.Table.PrimaryKeys)

	_, err = b.describeTable(ctx, TableArgs{})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	cnt, err := b.countTableRows(ctx, TableArgs{Table: "users"})
	require.NoError(t, err)
	assert.Equal(t, int64(1234567), cnt.Count)
	assert.Equal(t, "sales", cnt.Database)
	assert.Equal(t, "table users has 1,234,567 rows", cnt.Summary)

	_, err = b.countTableRows(ctx, TableArgs{Table: "ghosts"})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestListCollectionsEmpty(t *testing.T) {
	k := &knowledgeTools{kb: &fakeKB{}}
	res, err := k.listCollections(context.Background(), ListCollectionsArgs{})
	require.NoError(t, err)
	assert.Empty(t, res.Collections)
	assert.Contains(t, res.Message, "no collections")
}

func TestSearchKnowledge(t *testing.T) {
	kb := &fakeKB{hits: []*knowledge.SearchResult{{
		Document:   knowledge.Document{Content: "remote teams ship faster", Metadata: json.RawMessage(`{"src":"survey"}`), CreatedAt: time.Now().Add(-2 * time.Hour)},
		Similarity: 0.87,
	}}}
	k := &knowledgeTools{kb: kb}

	res, err := k.searchKnowledge(context.Background(), SearchKnowledgeArgs{Collection: "docs", Query: "remote work", Limit: 3})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, 3, kb.limit)
	assert.InDelta(t, 0.87, res.Results[0].Similarity, 1e-9)
	assert.Equal(t, "2 hours ago", res.Results[0].Added)
	assert.Contains(t, res.Message, "1 matching")

	_, err = k.searchKnowledge(context.Background(), SearchKnowledgeArgs{Query: "x"})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestRetrySkipsInvalidInput(t *testing.T) {
	calls := 0
	h := NewBuilder("t", "", func(context.Context, struct{}) (int, error) {
		calls++
		return 0, errors.ErrInvalidInput
	}).WithRetry(3, 0).Handler()

	_, err := h(context.Background(), struct{}{})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	assert.Equal(t, 1, calls)
}

func TestRetryRecovers(t *testing.T) {
	calls := 0
	h := NewBuilder("t", "", func(context.Context, struct{}) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.ErrUnavailable
		}
		return 42, nil
	}).WithRetry(3, time.Millisecond).WithMetrics().Handler()

	v, err := h(context.Background(), struct{}{})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestTimeoutReportsErrTimeout(t *testing.T) {
	h := NewBuilder("slow", "", func(ctx context.Context, _ struct{}) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}).WithTimeout(10 * time.Millisecond).Handler()

	_, err := h(context.Background(), struct{}{})
	assert.True(t, errors.Is(err, errors.ErrTimeout))
}

func TestNewCatalog(t *testing.T) {
	reg, err := NewCatalog(Deps{Business: &fakeCatalog{}, Knowledge: &fakeKB{}})
	require.NoError(t, err)
	assert.Equal(t, []string{
		ToolCountRows, ToolDescribeTable, ToolListCollections, ToolListDatabases, ToolSearchKnowledge,
	}, reg.List())
	assert.Len(t, reg.Tools(), 5)

	tl, ok := reg.Get(ToolSearchKnowledge)
	require.True(t, ok)
	assert.Equal(t, ToolSearchKnowledge, tl.Name())

	reg, err = NewCatalog(Deps{Knowledge: &fakeKB{}})
	require.NoError(t, err)
	assert.Equal(t, []string{ToolListCollections, ToolSearchKnowledge}, reg.List())
}

package knowledge

import (
	"context"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agora/pkg/errors"
)

type memRepo struct {
	collections map[string]*Collection
	docs        []*Document
	searchLimit int
	searchVec   pgvector.Vector
}

func newMemRepo() *memRepo {
	return &memRepo{collections: make(map[string]*Collection)}
}

func (r *memRepo) CreateCollection(_ context.Context, c *Collection) error {
	if _, ok := r.collections[c.Name]; ok {
		return errors.ErrAlreadyExists
	}
	r.collections[c.Name] = c
	return nil
}

func (r *memRepo) GetCollection(_ context.Context, name string) (*Collection, error) {
	c, ok := r.collections[name]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return c, nil
}

func (r *memRepo) ListCollections(context.Context) ([]*Collection, error) {
	var res []*Collection
	for _, c := range r.collections {
		res = append(res, c)
	}
	return res, nil
}

func (r *memRepo) InsertDocuments(_ context.Context, docs []*Document) error {
	r.docs = append(r.docs, docs...)
	return nil
}

func (r *memRepo) Search(_ context.Context, collection string, embedding pgvector.Vector, limit int) ([]*SearchResult, error) {
	r.searchLimit = limit
	r.searchVec = embedding
	var res []*SearchResult
	for _, d := range r.docs {
		if d.Collection == collection {
			res = append(res, &SearchResult{Document: *d, Similarity: 0.9})
		}
	}
	return res, nil
}

type fakeEmbedder struct {
	err   error
	short bool
}

func (e *fakeEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (e *fakeEmbedder) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, _ := e.GenerateEmbedding(ctx, t)
		out = append(out, v)
	}
	if e.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (e *fakeEmbedder) Dimensions() int { return 2 }
func (e *fakeEmbedder) Name() string    { return "fake-embed" }

func TestCreateCollection(t *testing.T) {
	svc := NewService(newMemRepo(), &fakeEmbedder{})
	ctx := context.Background()

	c, err := svc.CreateCollection(ctx, "  docs ", "product docs")
	require.NoError(t, err)
	assert.Equal(t, "docs", c.Name)
	assert.Equal(t, "fake-embed", c.EmbeddingModel)
	assert.Equal(t, 2, c.Dimensions)

	_, err = svc.CreateCollection(ctx, "docs", "")
	assert.True(t, errors.Is(err, errors.ErrAlreadyExists))

	_, err = svc.CreateCollection(ctx, " ", "")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestAddDocuments(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, &fakeEmbedder{})
	ctx := context.Background()
	_, err := svc.CreateCollection(ctx, "docs", "")
	require.NoError(t, err)

	docs, err := svc.AddDocuments(ctx, "docs", []NewDocument{
		{Content: "alpha"},
		{Content: "beta gamma", Metadata: []byte(`{"source":"wiki"}`)},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.JSONEq(t, `{}`, string(docs[0].Metadata))
	assert.JSONEq(t, `{"source":"wiki"}`, string(docs[1].Metadata))
	assert.Equal(t, []float32{10, 1}, docs[1].Embedding.Slice())
	assert.NotEqual(t, docs[0].ID, docs[1].ID)
	assert.Len(t, repo.docs, 2)
}

func TestAddDocumentsErrors(t *testing.T) {
	ctx := context.Background()

	svc := NewService(newMemRepo(), &fakeEmbedder{})
	_, err := svc.AddDocuments(ctx, "missing", []NewDocument{{Content: "x"}})
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = svc.AddDocuments(ctx, "missing", nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	repo := newMemRepo()
	svc = NewService(repo, &fakeEmbedder{short: true})
	_, err = svc.CreateCollection(ctx, "docs", "")
	require.NoError(t, err)

	_, err = svc.AddDocuments(ctx, "docs", []NewDocument{{Content: "a"}, {Content: "b"}})
	assert.True(t, errors.Is(err, errors.ErrExternal))

	_, err = svc.AddDocuments(ctx, "docs", []NewDocument{{Content: "a"}, {Content: "  "}})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	assert.Empty(t, repo.docs)
}

func TestSearchLimits(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, &fakeEmbedder{})
	ctx := context.Background()
	_, err := svc.CreateCollection(ctx, "docs", "")
	require.NoError(t, err)
	_, err = svc.AddDocuments(ctx, "docs", []NewDocument{{Content: "alpha"}})
	require.NoError(t, err)

	res, err := svc.Search(ctx, "docs", "alp", 0)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "alpha", res[0].Content)
	assert.Equal(t, DefaultSearchLimit, repo.searchLimit)
	assert.Equal(t, []float32{3, 1}, repo.searchVec.Slice())

	_, err = svc.Search(ctx, "docs", "alp", 500)
	require.NoError(t, err)
	assert.Equal(t, MaxSearchLimit, repo.searchLimit)

	_, err = svc.Search(ctx, "docs", " ", 1)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestSearchEmbeddingFailure(t *testing.T) {
	svc := NewService(newMemRepo(), &fakeEmbedder{err: errors.ErrUnavailable})
	_, err := svc.Search(context.Background(), "docs", "q", 3)
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}

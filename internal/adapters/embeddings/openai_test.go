package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agora/internal/adapters/config"
	"agora/pkg/errors"
)

func TestDimensions(t *testing.T) {
	assert.Equal(t, 1536, Dimensions("text-embedding-v2"))
	assert.Equal(t, 1536, Dimensions("text-embedding-3-small"))
	assert.Equal(t, 3072, Dimensions("text-embedding-3-large"))
	assert.Equal(t, 1536, Dimensions("something-else"))
}

func TestNewProviderRequiresKey(t *testing.T) {
	_, err := NewProvider(config.EmbeddingConfig{Model: "text-embedding-v2"}, 0)
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}

// fakeEmbeddings answers with one vector per input, value = input index, returned in reverse order.
func fakeEmbeddings(t *testing.T, calls *int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		assert.Equal(t, "/embeddings", r.URL.Path)

		var body struct {
			Input json.RawMessage `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		var inputs []string
		if err := json.Unmarshal(body.Input, &inputs); err != nil {
			var single string
			require.NoError(t, json.Unmarshal(body.Input, &single))
			inputs = []string{single}
		}

		data := make([]map[string]any, 0, len(inputs))
		for i := len(inputs) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float64{float64(i), 0.5},
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-v2",
			"data":   data,
			"usage":  map[string]any{"prompt_tokens": 3, "total_tokens": 3},
		})
	}))
}

func TestGenerateBatchEmbeddingsKeepsOrder(t *testing.T) {
	calls := 0
	srv := fakeEmbeddings(t, &calls)
	defer srv.Close()

	p, err := NewOpenAIProvider("key", srv.URL, "text-embedding-v2", 0, 0)
	require.NoError(t, err)

	texts := make([]string, maxBatch+2)
	for i := range texts {
		texts[i] = "doc"
	}

	vecs, err := p.GenerateBatchEmbeddings(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	assert.Equal(t, 2, calls, "split into two requests")

	assert.Equal(t, float32(0), vecs[0][0])
	assert.Equal(t, float32(maxBatch-1), vecs[maxBatch-1][0])
	assert.Equal(t, float32(1), vecs[maxBatch+1][0], "second chunk restarts indices")
}

func TestGenerateEmbeddingSingle(t *testing.T) {
	calls := 0
	srv := fakeEmbeddings(t, &calls)
	defer srv.Close()

	p, err := NewOpenAIProvider("key", srv.URL, "text-embedding-v2", 0, 0)
	require.NoError(t, err)

	vec, err := p.GenerateEmbedding(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.5}, vec)
	assert.Equal(t, 1536, p.Dimensions())
	assert.Equal(t, "text-embedding-v2", p.Name())

	_, err = p.GenerateEmbedding(context.Background(), "")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

package embeddings

import (
	"context"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"agora/pkg/errors"
	"agora/pkg/logger"
)

// maxBatch keeps requests within the smallest batch limit of compatible endpoints
const maxBatch = 16

// OpenAIProvider calls any OpenAI-compatible /embeddings endpoint
type OpenAIProvider struct {
	client     openai.Client
	model      openai.EmbeddingModel
	dimensions int
	timeout    time.Duration
	log        *logger.Logger
}

// NewOpenAIProvider creates a provider. dimensions <= 0 falls back to the model's known size.
func NewOpenAIProvider(apiKey, baseURL, model string, dimensions int, timeout time.Duration) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "embedding API key is required")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if dimensions <= 0 {
		dimensions = Dimensions(model)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIProvider{
		client:     openai.NewClient(opts...),
		model:      openai.EmbeddingModel(model),
		dimensions: dimensions,
		timeout:    timeout,
		log:        logger.Get().With("component", "embeddings", "model", model),
	}, nil
}

// GenerateEmbedding creates a vector embedding for the given text
func (p *OpenAIProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "text cannot be empty")
	}

	out, err := p.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// GenerateBatchEmbeddings embeds texts in chunks of maxBatch
func (p *OpenAIProvider) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "texts cannot be empty")
	}

	result := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))
		chunk, err := p.embed(ctx, texts[start:end])
		if err != nil {
			return nil, errors.Wrapf(err, "batch %d-%d", start, end)
		}
		result = append(result, chunk...)
	}
	return result, nil
}

func (p *OpenAIProvider) embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	input := openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts}
	if len(texts) == 1 {
		input = openai.EmbeddingNewParamsInputUnion{OfString: openai.String(texts[0])}
	}

	response, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: input,
		Model: p.model,
	})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrExternal, "embeddings API: %v", err)
	}
	if len(response.Data) != len(texts) {
		return nil, errors.Wrapf(errors.ErrExternal, "expected %d embeddings, got %d", len(texts), len(response.Data))
	}

	out := make([][]float32, len(texts))
	for _, data := range response.Data {
		idx := int(data.Index)
		if idx < 0 || idx >= len(out) {
			return nil, errors.Wrapf(errors.ErrExternal, "embedding index %d out of range", idx)
		}
		out[idx] = toFloat32(data.Embedding)
	}

	p.log.Debugw("Generated embeddings",
		"count", len(texts),
		"tokens_used", response.Usage.TotalTokens,
	)
	return out, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

func (p *OpenAIProvider) Name() string {
	return string(p.model)
}

// Dimensions returns the embedding size of known models, 1536 otherwise.
func Dimensions(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-3-small", "text-embedding-ada-002", "text-embedding-v1", "text-embedding-v2":
		return 1536
	case "text-embedding-v3", "text-embedding-v4":
		return 1024
	default:
		return 1536
	}
}

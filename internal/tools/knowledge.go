package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"

	"agora/pkg/errors"
)

type ListCollectionsArgs struct{}

type CollectionSummary struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	DocumentCount int64  `json:"document_count"`
}

type ListCollectionsResult struct {
	Collections []CollectionSummary `json:"collections"`
	Message     string              `json:"message"`
}

type SearchKnowledgeArgs struct {
	Collection string `json:"collection"`
	Query      string `json:"query"`
	Limit      int    `json:"limit,omitempty"`
}

type KnowledgeHit struct {
	Content    string          `json:"content"`
	Similarity float64         `json:"similarity"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	Added      string          `json:"added"`
}

type SearchKnowledgeResult struct {
	Collection string         `json:"collection"`
	Results    []KnowledgeHit `json:"results"`
	Message    string         `json:"message"`
}

type knowledgeTools struct {
	kb KnowledgeBase
}

func (k *knowledgeTools) listCollections(ctx context.Context, _ ListCollectionsArgs) (ListCollectionsResult, error) {
	cols, err := k.kb.ListCollections(ctx)
	if err != nil {
		return ListCollectionsResult{}, err
	}
	if len(cols) == 0 {
		return ListCollectionsResult{
			Collections: []CollectionSummary{},
			Message:     "the knowledge base has no collections yet",
		}, nil
	}

	res := ListCollectionsResult{Collections: make([]CollectionSummary, 0, len(cols))}
	for _, c := range cols {
		res.Collections = append(res.Collections, CollectionSummary{
			Name:          c.Name,
			Description:   c.Description,
			DocumentCount: c.DocumentCount,
		})
	}
	res.Message = fmt.Sprintf("%d collections", len(cols))
	return res, nil
}

func (k *knowledgeTools) searchKnowledge(ctx context.Context, args SearchKnowledgeArgs) (SearchKnowledgeResult, error) {
	if args.Collection == "" {
		return SearchKnowledgeResult{}, errors.NewValidationError("collection", "collection is required", args.Collection)
	}
	if args.Query == "" {
		return SearchKnowledgeResult{}, errors.NewValidationError("query", "query is required", args.Query)
	}

	hits, err := k.kb.Search(ctx, args.Collection, args.Query, args.Limit)
	if err != nil {
		return SearchKnowledgeResult{}, err
	}

	res := SearchKnowledgeResult{Collection: args.Collection, Results: make([]KnowledgeHit, 0, len(hits))}
	for _, h := range hits {
		res.Results = append(res.Results, KnowledgeHit{
			Content:    h.Content,
			Similarity: h.Similarity,
			Metadata:   h.Metadata,
			Added:      humanize.Time(h.CreatedAt),
		})
	}
	if len(hits) == 0 {
		res.Message = fmt.Sprintf("nothing in %s matches the query", args.Collection)
	} else {
		res.Message = fmt.Sprintf("%d matching documents in %s", len(hits), args.Collection)
	}
	return res, nil
}

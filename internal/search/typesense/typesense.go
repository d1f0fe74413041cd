// Package typesense implements the knowledge retriever on a Typesense
// collection of department-scoped documents.
package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/typesense/typesense-go/v4/typesense"
	"github.com/typesense/typesense-go/v4/typesense/api"
	"github.com/typesense/typesense-go/v4/typesense/api/pointer"

	"github.com/linnemanlabs/go-core/log"

	"github.com/tekisho/mailtriage/internal/triage"
)

// topK bounds the snippets fed into reply generation.
const topK = 3

// Config holds the Typesense connection and collection settings.
type Config struct {
	URL        string
	APIKey     string
	Collection string // defaults to "knowledge"
}

// Retriever implements triage.Retriever.
type Retriever struct {
	client     *typesense.Client
	collection string
	logger     log.Logger
	metrics    *triage.Metrics
}

// New creates a retriever. metrics may be nil.
func New(cfg Config, logger log.Logger, metrics *triage.Metrics) *Retriever {
	if cfg.Collection == "" {
		cfg.Collection = "knowledge"
	}
	if logger == nil {
		logger = log.Nop()
	}
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(10*time.Second),
	)
	return &Retriever{
		client:     client,
		collection: cfg.Collection,
		logger:     logger,
		metrics:    metrics,
	}
}

// Search returns up to topK snippet contents for the query, restricted to
// documents tagged with the given department. An empty result is normal and
// not an error.
func (r *Retriever) Search(ctx context.Context, query, department string) ([]string, error) {
	params := &api.SearchCollectionParams{
		Q:        pointer.String(query),
		QueryBy:  pointer.String("content"),
		FilterBy: pointer.String(fmt.Sprintf("department:=%s", department)),
		PerPage:  pointer.Int(topK),
	}

	res, err := r.client.Collection(r.collection).Documents().Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("typesense search: %w", err)
	}

	var snippets []string
	if res.Hits != nil {
		for _, hit := range *res.Hits {
			if hit.Document == nil {
				continue
			}
			if content, ok := (*hit.Document)["content"].(string); ok && content != "" {
				snippets = append(snippets, content)
			}
		}
	}

	r.metrics.ObserveRetrieval(len(snippets))
	r.logger.Info(ctx, "knowledge search", "department", department, "snippets", len(snippets))
	return snippets, nil
}

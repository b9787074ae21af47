package pipeline

import (
	"context"

	"github.com/hyperjump/ragkit/internal/models"
	"github.com/hyperjump/ragkit/internal/retriever"
)

// Retrieve returns up to k passages most similar to query. k == 0 uses the configured top_k.
func (p *Pipeline) Retrieve(ctx context.Context, query string, k int) ([]models.RetrievedDocument, error) {
	return p.retriever.Retrieve(ctx, query, k)
}

// RetrieveAsMaps is Retrieve projected to plain maps with content, metadata and relevance_score keys.
func (p *Pipeline) RetrieveAsMaps(ctx context.Context, query string, k int) ([]map[string]any, error) {
	docs, err := p.retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	return retriever.AsMaps(docs), nil
}

// GetContext joins the contents of the top-k passages with separator for prompt assembly.
// An empty separator uses a blank line.
func (p *Pipeline) GetContext(ctx context.Context, query string, k int, separator string) (string, error) {
	return p.retriever.RetrieveContext(ctx, query, k, separator)
}

// SetTopK changes the default number of results for later queries.
func (p *Pipeline) SetTopK(k int) error {
	return p.retriever.SetTopK(k)
}

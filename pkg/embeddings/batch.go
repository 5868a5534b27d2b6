package embeddings

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ParallelGenerateBatchEmbeddings calls GenerateEmbedding for each text with
// at most maxConcurrency requests in flight. The first error cancels the batch.
func ParallelGenerateBatchEmbeddings(ctx context.Context, p Provider, texts []string, maxConcurrency int) ([][]float32, error) {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}

	results := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			embedding, err := p.GenerateEmbedding(gctx, text)
			if err != nil {
				return err
			}
			results[i] = embedding
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

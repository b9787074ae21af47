package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/ragkit/internal/models"
	"golang.org/x/sync/errgroup"
)

// runParallel calls fn for 0..n-1 with at most workers in flight. The first error cancels the rest.
func runParallel(ctx context.Context, n, workers int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

// classifyError maps a failed model call onto the embedding error taxonomy.
func classifyError(err error) error {
	switch {
	case errors.Is(err, models.ErrEmbeddingTimeout), errors.Is(err, models.ErrEmbeddingBackend):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", models.ErrEmbeddingTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %w", models.ErrEmbeddingBackend, err)
	}
}

// acquire takes the slot in sem or fails once ctx is done.
func acquire(ctx context.Context, sem chan struct{}) error {
	select {
	case sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return classifyError(ctx.Err())
	}
}

func release(sem chan struct{}) {
	<-sem
}

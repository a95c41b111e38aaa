// Package workerpool provides simple concurrent processing utilities.
package workerpool

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Process runs process for every item on at most workerCount goroutines.
// The first error cancels the context handed to the remaining calls and is
// returned; onCancel, when set, runs once at that moment. A workerCount of zero
// or less processes the items inline on the calling goroutine.
func Process[T any](
	ctx context.Context,
	workerCount int,
	items []T,
	process func(context.Context, T) error,
	onCancel func(),
) error {
	if workerCount <= 0 {
		return processInline(ctx, items, process, onCancel)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount)

	var once sync.Once
	for _, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := process(gctx, item); err != nil {
				if onCancel != nil {
					once.Do(onCancel)
				}
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	return ctx.Err()
}

func processInline[T any](
	ctx context.Context,
	items []T,
	process func(context.Context, T) error,
	onCancel func(),
) error {
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := process(ctx, item); err != nil {
			if onCancel != nil {
				onCancel()
			}
			return err
		}
	}
	return nil
}

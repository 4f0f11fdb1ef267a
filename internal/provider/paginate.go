package provider

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PageFunc fetches one page of items. page is the index to request, zero
// meaning the API's first page. It returns the page's items and the index
// of the next page; a next value of zero means the sequence is exhausted.
// The GitHub and GitLab clients both surface their pagination cursors
// (Link header, X-Next-Page header) in exactly this form.
type PageFunc[T any] func(ctx context.Context, page int) (items []T, next int, err error)

// walkPages drives fetch until the API reports no further page, passing
// every item to visit in API order. A fetch or visit error ends the walk
// and is returned; items already visited are not retracted.
func walkPages[T any](ctx context.Context, logger *zap.Logger, fetch PageFunc[T], visit func(T) error) error {
	page := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		items, next, err := fetch(ctx, page)
		if err != nil {
			return err
		}
		logger.Debug("fetched page",
			zap.Int("page", page),
			zap.Int("items", len(items)),
			zap.Int("next", next),
			zap.Duration("took", time.Since(start).Truncate(time.Millisecond)))

		for _, item := range items {
			if err := visit(item); err != nil {
				return err
			}
		}

		if next == 0 {
			return nil
		}
		page = next
	}
}

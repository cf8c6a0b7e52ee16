package adapter

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ppiankov/savedsync/internal/post"
)

// Page is one listing page in platform-native order.
type Page[T any] struct {
	Items      []T
	NextCursor string // empty when there is no further page
	// More marks a page that ends with no cursor although the platform holds
	// further items, e.g. a feed capped at a fixed count.
	More bool
}

// PageSource plugs one platform's listing into FetchPages.
type PageSource[T any] interface {
	// ListPage fetches one page. It runs under RetryWithBackoff with a
	// per-call deadline, so it must honour ctx.
	ListPage(ctx context.Context, pageSize int, cursor string) (Page[T], error)

	// Timestamp returns the save instant of an item, or its creation
	// instant for a CreationStamped source.
	Timestamp(item T) (time.Time, error)

	// MapToPost normalizes an item. It must be pure.
	MapToPost(item T) (post.Post, error)
}

// CreationStamped marks a source whose listing runs in save order while its
// items only carry a creation time. An old item saved yesterday sorts first
// but stamps earlier than any watermark, so since cannot bound the walk.
type CreationStamped interface {
	CreationStamped()
}

// FetchPages walks a newest-first listing until the cursor runs out, an item
// at or before since is reached, or MaxPages pages have been fetched.
//
// Malformed items are logged and skipped. A page that fails after retries
// aborts the whole call and discards everything accumulated so far.
//
// Early exit relies on newest-first save order. A CreationStamped source is
// always walked to the end, and so is the rest of a listing once a page is
// found out of order (including against the previous page's last item).
// Re-fetched items are absorbed by the idempotent upsert downstream.
//
// Stopping at MaxPages with the cursor still open, or on a page marked More,
// sets b.Truncated.
func FetchPages[T any](ctx context.Context, b *Base, src PageSource[T], since time.Time) ([]post.Post, error) {
	log := b.log.WithField("op", "fetch_saved")
	b.truncated = false
	incremental := !since.IsZero()
	if _, ok := any(src).(CreationStamped); ok && incremental {
		log.Debug("listing carries no save time, walking all of it")
		incremental = false
	}
	var last time.Time

	results := []post.Post{}
	cursor := ""

	for pages := 1; pages <= b.cfg.MaxPages; pages++ {
		if err := ctx.Err(); err != nil {
			return nil, b.HandleError(err, "fetch saved posts")
		}

		page, err := RetryWithBackoff(ctx, b, "list saved", func(ctx context.Context) (Page[T], error) {
			return src.ListPage(ctx, b.cfg.PageSize, cursor)
		})
		if err != nil {
			return nil, err
		}
		if len(page.Items) == 0 {
			break
		}

		stamps := make([]time.Time, len(page.Items))
		valid := make([]bool, len(page.Items))
		for i, item := range page.Items {
			ts, err := src.Timestamp(item)
			if err != nil {
				log.WithFields(logrus.Fields{"page": pages, "index": i}).WithError(err).Warn("skipping item without timestamp")
				continue
			}
			stamps[i], valid[i] = ts, true
		}

		if incremental && !newestFirst(last, stamps, valid) {
			log.WithField("page", pages).Warn("listing is not newest-first, fetching the rest without the watermark")
			incremental = false
		}

		for i, item := range page.Items {
			if !valid[i] {
				continue
			}
			if incremental && !stamps[i].After(since) {
				log.WithFields(logrus.Fields{"page": pages, "posts": len(results)}).Debug("reached watermark")
				return results, nil
			}

			p, err := src.MapToPost(item)
			if err != nil {
				log.WithFields(logrus.Fields{"page": pages, "index": i}).WithError(err).Warn("skipping malformed item")
				continue
			}
			results = append(results, p)
		}

		for i := len(stamps) - 1; i >= 0; i-- {
			if valid[i] {
				last = stamps[i]
				break
			}
		}

		cursor = page.NextCursor
		if cursor == "" {
			if page.More {
				log.WithField("posts", len(results)).Warn("listing holds more items than one fetch returns")
				b.truncated = true
			}
			break
		}
		if pages == b.cfg.MaxPages {
			log.WithField("max_pages", b.cfg.MaxPages).Warn("page bound reached")
			b.truncated = true
			break
		}
		if err := b.RateLimit(ctx, b.cfg.RateLimit); err != nil {
			return nil, b.HandleError(err, "fetch saved posts")
		}
	}

	return results, nil
}

// newestFirst reports whether stamps never increase, starting from prev.
func newestFirst(prev time.Time, stamps []time.Time, valid []bool) bool {
	for i, ts := range stamps {
		if !valid[i] {
			continue
		}
		if !prev.IsZero() && ts.After(prev) {
			return false
		}
		prev = ts
	}
	return true
}

package downloader

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"webtoondl/packager"
	"webtoondl/parser"
)

// ImageSource retrieves one image. *HTTPClient is the production implementation.
type ImageSource interface {
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// ProgressFunc receives the number of completed items out of total.
// Calls are serialized and completed never decreases.
type ProgressFunc func(completed, total int)

// Fetcher downloads image lists. With one worker it is strictly sequential
// and honours the politeness interval between requests.
type Fetcher struct {
	source   ImageSource
	workers  int
	interval time.Duration
}

// NewFetcher creates a fetcher. workers < 1 is treated as 1.
func NewFetcher(source ImageSource, workers int, interval time.Duration) *Fetcher {
	if workers < 1 {
		workers = 1
	}
	return &Fetcher{source: source, workers: workers, interval: interval}
}

// FetchAll returns the raw bytes of every url, in input order. The first
// failure aborts the whole batch with a FetchFailure error.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string, report ProgressFunc) ([][]byte, error) {
	return fetchEach(ctx, f, urls, report, func(data []byte) ([]byte, error) {
		return data, nil
	})
}

// FetchEncoded returns every url as a base64 data URI, in input order.
// Encoding happens as each image arrives so raw buffers are not kept.
func (f *Fetcher) FetchEncoded(ctx context.Context, urls []string, report ProgressFunc) ([]string, error) {
	return fetchEach(ctx, f, urls, report, func(data []byte) (string, error) {
		return packager.EncodeDataURL(data), nil
	})
}

func fetchEach[T any](ctx context.Context, f *Fetcher, urls []string, report ProgressFunc, transform func([]byte) (T, error)) ([]T, error) {
	results := make([]T, len(urls))
	total := len(urls)
	if total == 0 {
		return results, nil
	}

	fetchOne := func(ctx context.Context, i int) error {
		data, err := f.source.FetchImage(ctx, urls[i])
		if err != nil {
			log.Printf("[Fetcher] ✗ Image %d/%d failed: %v", i+1, total, err)
			return newError(KindFetchFailure, "fetch", fmt.Sprintf("Failed to download image %d of %d", i+1, total), err)
		}
		out, err := transform(data)
		if err != nil {
			return newError(KindInternal, "fetch", "Failed to encode image", err)
		}
		results[i] = out
		return nil
	}

	if f.workers == 1 {
		limiter := parser.NewRateLimiter(f.interval)
		defer limiter.Stop()
		log.Printf("[Fetcher] Fetching %d images sequentially (interval %v)", total, limiter.GetInterval())

		for i := range urls {
			if err := limiter.Wait(ctx); err != nil {
				return nil, newError(KindInternal, "fetch", "Download interrupted", err)
			}
			if err := fetchOne(ctx, i); err != nil {
				return nil, err
			}
			log.Printf("[Fetcher] Downloaded image %d/%d", i+1, total)
			if report != nil {
				report(i+1, total)
			}
		}
		return results, nil
	}

	var (
		mu        sync.Mutex
		completed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)

	for i := range urls {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := fetchOne(gctx, i); err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			completed++
			log.Printf("[Fetcher] Downloaded image %d/%d (%d done)", i+1, total, completed)
			if report != nil {
				report(completed, total)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if _, ok := AsPipelineError(err); ok {
			return nil, err
		}
		return nil, newError(KindInternal, "fetch", "Download interrupted", err)
	}
	return results, nil
}

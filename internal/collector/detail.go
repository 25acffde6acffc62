package collector

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DetailFetcher downloads one article page and runs the source's extractor on it.
type DetailFetcher struct {
	transport Transport
	registry  *Registry
	sites     map[SourceID]Site
}

func NewDetailFetcher(t Transport, r *Registry, sites []Site) *DetailFetcher {
	m := make(map[SourceID]Site, len(sites))
	for _, s := range sites {
		m[s.ID] = s
	}
	return &DetailFetcher{transport: t, registry: r, sites: m}
}

func (f *DetailFetcher) FetchDetail(ctx context.Context, source SourceID, pageURL string) (Article, error) {
	ext, err := f.registry.Resolve(source)
	if err != nil {
		return Article{}, err
	}
	markup, err := f.transport.Get(ctx, pageURL, browserHeaders(f.sites[source]))
	if err != nil {
		return Article{}, err
	}
	article, err := ext.ParseDetail(markup, pageURL)
	if err != nil {
		return Article{}, err
	}
	if !article.HasContent() {
		return Article{}, &ExtractionError{URL: pageURL, Source: source, Err: ErrNoContent}
	}
	article.URL = pageURL
	article.Source = source
	return article, nil
}

// Detailer is the per-URL unit of work run by DetailCollector.
type Detailer interface {
	FetchDetail(ctx context.Context, source SourceID, pageURL string) (Article, error)
}

// DetailCollector fans detail fetches out with a bounded number of workers.
// A failing URL is reported and never affects the others.
type DetailCollector struct {
	fetcher Detailer
	log     *zap.Logger
}

func NewDetailCollector(f Detailer, log *zap.Logger) *DetailCollector {
	if log == nil {
		log = zap.NewNop()
	}
	return &DetailCollector{fetcher: f, log: log.Named("detail")}
}

// Collect returns the articles that were extracted and one Failure for every
// other URL. Output order is unspecified.
func (c *DetailCollector) Collect(ctx context.Context, site Site, urls []string) ([]Article, []Failure) {
	var (
		mu       sync.Mutex
		articles = make([]Article, 0, len(urls))
		failures []Failure
		g        errgroup.Group
	)
	g.SetLimit(site.WorkerLimit())

	for _, u := range urls {
		u := u
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					c.log.Error("detail worker panic", zap.String("url", u), zap.Any("panic", r))
					mu.Lock()
					failures = append(failures, NewFailure(u, fmt.Errorf("panic: %v", r)))
					mu.Unlock()
				}
			}()

			article, ferr := c.fetcher.FetchDetail(ctx, site.ID, u)
			mu.Lock()
			defer mu.Unlock()
			if ferr != nil {
				c.log.Warn("detail failed", zap.String("source", string(site.ID)), zap.String("url", u), zap.Error(ferr))
				failures = append(failures, NewFailure(u, ferr))
				return nil
			}
			articles = append(articles, article)
			return nil
		})
	}
	_ = g.Wait()
	return articles, failures
}

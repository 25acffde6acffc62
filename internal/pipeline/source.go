package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/LJTian/NewsLens/internal/collector"
	"github.com/LJTian/NewsLens/internal/processor"
)

// State is a stage of a source run.
type State string

const (
	StateFetching         State = "fetching"
	StateParsed           State = "parsed"
	StateDeduplicated     State = "deduplicated"
	StateDetailCollecting State = "detail_collecting"
	StateEnriching        State = "enriching"
	StatePersisting       State = "persisting"
	StateDone             State = "done"
	StatePartialFailure   State = "partial_failure"
)

type Lister interface {
	FetchListing(ctx context.Context, source collector.SourceID, page int) ([]byte, error)
}

type Collector interface {
	Collect(ctx context.Context, site collector.Site, urls []string) ([]collector.Article, []collector.Failure)
}

type Enricher interface {
	EnrichAll(ctx context.Context, articles []collector.Article) ([]collector.Article, []collector.Failure)
}

// Persister stores articles idempotently by URL.
type Persister interface {
	Upsert(ctx context.Context, articles []collector.Article) error
}

// Result is the outcome of one source run.
type Result struct {
	Source   collector.SourceID
	Articles []collector.Article
	Failures []collector.Failure
	// State is StateDone, or StatePartialFailure when any item or stage failed.
	State State
	Trace []State
	// PersistErr is set when the final upsert failed; Articles are still valid.
	PersistErr error
}

// SourcePipeline runs listing, dedup, detail, enrichment and persistence for one source.
type SourcePipeline struct {
	lister    Lister
	registry  *collector.Registry
	collector Collector
	enricher  Enricher
	persister Persister
	log       *zap.Logger
}

// NewSourcePipeline wires the stages. enricher and persister may be nil,
// in which case those stages are skipped.
func NewSourcePipeline(l Lister, r *collector.Registry, c Collector, e Enricher, p Persister, log *zap.Logger) *SourcePipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &SourcePipeline{
		lister:    l,
		registry:  r,
		collector: c,
		enricher:  e,
		persister: p,
		log:       log.Named("pipeline"),
	}
}

type run struct {
	res Result
	log *zap.Logger
}

func (r *run) advance(s State) {
	r.res.Trace = append(r.res.Trace, s)
	r.log.Debug("state", zap.String("state", string(s)))
}

func (r *run) fail(f collector.Failure) {
	r.res.Failures = append(r.res.Failures, f)
}

// abort ends a run that produced nothing usable.
func (r *run) abort(err error) (Result, error) {
	r.res.State = StatePartialFailure
	r.advance(r.res.State)
	return r.res, &SourceError{Source: r.res.Source, Err: err}
}

func (r *run) finish() Result {
	if len(r.res.Failures) > 0 || r.res.PersistErr != nil {
		r.res.State = StatePartialFailure
	} else {
		r.res.State = StateDone
	}
	r.advance(r.res.State)
	if r.res.Articles == nil {
		r.res.Articles = []collector.Article{}
	}
	return r.res
}

// Run executes one pass over site. A non-nil error means the source produced
// nothing usable; per-item problems are reported in Result.Failures instead.
func (p *SourcePipeline) Run(ctx context.Context, site collector.Site) (Result, error) {
	r := &run{
		res: Result{Source: site.ID},
		log: p.log.With(zap.String("source", string(site.ID))),
	}
	r.advance(StateFetching)

	ext, err := p.registry.Resolve(site.ID)
	if err != nil {
		return r.abort(err)
	}

	var (
		stubs   []collector.ArticleStub
		fetched int
		lastErr error
	)
	for page := 0; page < site.PageCount(); page++ {
		if err := ctx.Err(); err != nil {
			return r.abort(err)
		}
		markup, err := p.lister.FetchListing(ctx, site.ID, page)
		if err != nil {
			lastErr = err
			r.log.Warn("listing page failed", zap.Int("page", page), zap.Error(err))
			r.fail(collector.NewFailure(fmt.Sprintf("%s#page=%d", site.ListingURL, page), err))
			continue
		}
		fetched++
		found, err := ext.ParseListing(markup)
		if err != nil {
			r.log.Warn("listing page unparseable", zap.Int("page", page), zap.Error(err))
			r.fail(collector.NewFailure(fmt.Sprintf("%s#page=%d", site.ListingURL, page), err))
			continue
		}
		stubs = append(stubs, found...)
	}
	if fetched == 0 {
		return r.abort(fmt.Errorf("%w: %v", ErrListingUnavailable, lastErr))
	}
	r.advance(StateParsed)
	if len(stubs) == 0 {
		r.log.Info("listing empty")
		return r.finish(), nil
	}

	stubs = processor.Dedupe(stubs)
	r.advance(StateDeduplicated)

	urls := make([]string, 0, len(stubs))
	for _, s := range stubs {
		urls = append(urls, s.URL)
	}

	r.advance(StateDetailCollecting)
	collected, failures := p.collector.Collect(ctx, site, urls)
	for _, f := range failures {
		r.fail(f)
	}
	articles := make([]collector.Article, 0, len(collected))
	for _, a := range collected {
		if !a.HasContent() {
			r.fail(collector.NewFailure(a.URL, &collector.ExtractionError{URL: a.URL, Source: site.ID, Err: collector.ErrNoContent}))
			continue
		}
		articles = append(articles, a)
	}
	if len(articles) == 0 {
		r.log.Info("no article survived detail collection", zap.Int("failures", len(failures)))
		return r.finish(), nil
	}

	if p.enricher != nil {
		r.advance(StateEnriching)
		var enrichFailures []collector.Failure
		articles, enrichFailures = p.enricher.EnrichAll(ctx, articles)
		for _, f := range enrichFailures {
			r.fail(f)
		}
	}

	articles = processor.Dedupe(articles)
	r.res.Articles = articles

	if p.persister != nil {
		r.advance(StatePersisting)
		if err := p.persister.Upsert(ctx, articles); err != nil {
			r.res.PersistErr = &PersistenceError{Source: site.ID, Err: err}
			r.log.Error("persist failed", zap.Int("articles", len(articles)), zap.Error(err))
		}
	}

	res := r.finish()
	r.log.Info("source run finished",
		zap.String("state", string(res.State)),
		zap.Int("articles", len(res.Articles)),
		zap.Int("failures", len(res.Failures)))
	return res, nil
}

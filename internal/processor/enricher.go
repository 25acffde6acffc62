package processor

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LJTian/NewsLens/internal/collector"
)

const (
	minScore        = 1
	maxScore        = 100
	minDigestLength = 10
	maxDigestLength = 150
)

// Analysis is the raw result returned by the text-analysis service.
type Analysis struct {
	Sentiment string `json:"sentiment"`
	Topic     string `json:"topic"`
	Score     int    `json:"score"`
	Digest    string `json:"digest"`
}

// Analyzer classifies an article body.
type Analyzer interface {
	Analyze(ctx context.Context, content string) (Analysis, error)
}

// Validate checks an analysis against the accepted ranges. Values are never clamped.
func Validate(a Analysis) error {
	if !collector.Sentiment(a.Sentiment).Valid() {
		return fmt.Errorf("%w: sentiment %q", ErrInvalidAnalysis, a.Sentiment)
	}
	if !collector.Topic(a.Topic).Valid() {
		return fmt.Errorf("%w: topic %q", ErrInvalidAnalysis, a.Topic)
	}
	if a.Score < minScore || a.Score > maxScore {
		return fmt.Errorf("%w: score %d outside [%d,%d]", ErrInvalidAnalysis, a.Score, minScore, maxScore)
	}
	if n := utf8.RuneCountInString(a.Digest); n < minDigestLength || n > maxDigestLength {
		return fmt.Errorf("%w: digest length %d outside [%d,%d]", ErrInvalidAnalysis, n, minDigestLength, maxDigestLength)
	}
	return nil
}

// Enricher attaches analysis results to articles.
type Enricher struct {
	analyzer Analyzer
	workers  int
	log      *zap.Logger
}

func NewEnricher(a Analyzer, workers int, log *zap.Logger) *Enricher {
	if workers <= 0 {
		workers = collector.DefaultWorkers
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Enricher{analyzer: a, workers: workers, log: log.Named("enricher")}
}

// Enrich makes a single analyzer call. On any failure the article is returned
// unchanged together with an *EnrichmentError.
func (e *Enricher) Enrich(ctx context.Context, article collector.Article) (collector.Article, error) {
	if !article.HasContent() {
		return article, &EnrichmentError{URL: article.URL, Err: ErrEmptyContent}
	}
	if e.analyzer == nil {
		return article, &EnrichmentError{URL: article.URL, Err: ErrNoAnalyzer}
	}

	res, err := e.analyzer.Analyze(ctx, article.Content)
	if err != nil {
		return article, &EnrichmentError{URL: article.URL, Err: err}
	}
	if err := Validate(res); err != nil {
		return article, &EnrichmentError{URL: article.URL, Err: err}
	}

	sentiment := collector.Sentiment(res.Sentiment)
	topic := collector.Topic(res.Topic)
	score := res.Score
	digest := res.Digest
	article.Sentiment = &sentiment
	article.Topic = &topic
	article.Score = &score
	article.Digest = &digest
	return article, nil
}

// EnrichAll enriches articles concurrently. Every input article is returned,
// in input order, enriched or not; failed ones are also listed as failures.
func (e *Enricher) EnrichAll(ctx context.Context, articles []collector.Article) ([]collector.Article, []collector.Failure) {
	out := make([]collector.Article, len(articles))
	var (
		mu       sync.Mutex
		failures []collector.Failure
		g        errgroup.Group
	)
	g.SetLimit(e.workers)

	for i := range articles {
		i := i
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					out[i] = articles[i]
					e.log.Error("enrich worker panic", zap.String("url", articles[i].URL), zap.Any("panic", r))
					mu.Lock()
					failures = append(failures, collector.NewFailure(articles[i].URL, &EnrichmentError{URL: articles[i].URL, Err: fmt.Errorf("panic: %v", r)}))
					mu.Unlock()
				}
			}()

			enriched, err := e.Enrich(ctx, articles[i])
			out[i] = enriched
			if err != nil {
				e.log.Warn("enrich failed", zap.String("url", articles[i].URL), zap.Error(err))
				mu.Lock()
				failures = append(failures, collector.NewFailure(articles[i].URL, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return out, failures
}

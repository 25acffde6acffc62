package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/LJTian/NewsLens/internal/collector"
)

type scriptedRunner struct {
	results map[collector.SourceID]Result
	errs    map[collector.SourceID]error
	panics  map[collector.SourceID]bool
	block   chan struct{}
	started chan struct{}
}

func (r *scriptedRunner) Run(_ context.Context, site collector.Site) (Result, error) {
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.block != nil {
		<-r.block
	}
	if r.panics[site.ID] {
		panic("extractor exploded")
	}
	if err := r.errs[site.ID]; err != nil {
		return Result{Source: site.ID}, err
	}
	return r.results[site.ID], nil
}

func sites(ids ...collector.SourceID) []collector.Site {
	out := make([]collector.Site, len(ids))
	for i, id := range ids {
		out[i] = collector.Site{ID: id}
	}
	return out
}

func TestRunAllIsolatesFailingSource(t *testing.T) {
	for _, mode := range []string{"error", "panic"} {
		r := &scriptedRunner{
			results: map[collector.SourceID]Result{
				"s1": {Articles: []collector.Article{{URL: "1a", Content: "x"}, {URL: "1b", Content: "x"}}},
				"s3": {Articles: []collector.Article{{URL: "3a", Content: "x"}}},
			},
			errs:   map[collector.SourceID]error{},
			panics: map[collector.SourceID]bool{},
		}
		if mode == "error" {
			r.errs["s2"] = errors.New("listing fetch failed")
		} else {
			r.panics["s2"] = true
		}

		agg := NewOrchestrator(r, NewLocalRunGuard(), nil).RunAll(context.Background(), sites("s1", "s2", "s3"))

		if len(agg.Articles) != 3 {
			t.Fatalf("%s: expected 3 articles from s1 and s3, got %d", mode, len(agg.Articles))
		}
		if agg.Articles[0].URL != "1a" || agg.Articles[2].URL != "3a" {
			t.Fatalf("%s: merge order not by source: %+v", mode, agg.Articles)
		}
		if len(agg.Errors) != 1 || agg.Errors[0].Source != "s2" {
			t.Fatalf("%s: expected one error naming s2, got %+v", mode, agg.Errors)
		}
	}
}

func TestRunAllKeepsArticlesOnPersistFailure(t *testing.T) {
	r := &scriptedRunner{results: map[collector.SourceID]Result{
		"s1": {
			Articles:   []collector.Article{{URL: "1a", Content: "x"}},
			PersistErr: &PersistenceError{Source: "s1", Err: errors.New("db down")},
		},
	}}
	agg := NewOrchestrator(r, nil, nil).RunAll(context.Background(), sites("s1"))
	if len(agg.Articles) != 1 {
		t.Fatalf("articles must survive persist failure, got %+v", agg.Articles)
	}
	if len(agg.Errors) != 1 || !strings.Contains(agg.Errors[0].Message, "db down") {
		t.Fatalf("expected persistence error entry, got %+v", agg.Errors)
	}
}

func TestRunAllEmpty(t *testing.T) {
	agg := NewOrchestrator(&scriptedRunner{}, nil, nil).RunAll(context.Background(), nil)
	if agg.Articles == nil || agg.Errors == nil || len(agg.Articles) != 0 || len(agg.Errors) != 0 {
		t.Fatalf("expected empty aggregate, got %+v", agg)
	}
}

func TestRunOneRejectsConcurrentRunOfSameSource(t *testing.T) {
	r := &scriptedRunner{
		results: map[collector.SourceID]Result{"s1": {}},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	o := NewOrchestrator(r, NewLocalRunGuard(), nil)

	done := make(chan error, 1)
	go func() {
		_, err := o.RunOne(context.Background(), collector.Site{ID: "s1"})
		done <- err
	}()
	<-r.started

	if _, err := o.RunOne(context.Background(), collector.Site{ID: "s1"}); !errors.Is(err, ErrSourceBusy) {
		t.Fatalf("expected ErrSourceBusy, got %v", err)
	}

	close(r.block)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("first run error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("first run did not finish")
	}

	r.started = nil
	if _, err := o.RunOne(context.Background(), collector.Site{ID: "s1"}); err != nil {
		t.Fatalf("token should be released after the run: %v", err)
	}
}

func TestLocalRunGuardTokens(t *testing.T) {
	g := NewLocalRunGuard()
	ctx := context.Background()

	tok, err := g.Acquire(ctx, "s1")
	if err != nil || tok == "" {
		t.Fatalf("Acquire = %q, %v", tok, err)
	}
	if _, err := g.Acquire(ctx, "s2"); err != nil {
		t.Fatalf("other sources must not be blocked: %v", err)
	}
	_ = g.Release(ctx, "s1", "not-the-token")
	if _, err := g.Acquire(ctx, "s1"); !errors.Is(err, ErrSourceBusy) {
		t.Fatalf("release with a foreign token must not free the source, got %v", err)
	}
	_ = g.Release(ctx, "s1", tok)
	if _, err := g.Acquire(ctx, "s1"); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
}

type memRecorder struct {
	reports []RunReport
}

func (m *memRecorder) RecordRun(_ context.Context, r RunReport) error {
	m.reports = append(m.reports, r)
	return nil
}

func TestServiceScrapeAllRecordsRun(t *testing.T) {
	r := &scriptedRunner{
		results: map[collector.SourceID]Result{"bbc": {Articles: []collector.Article{{URL: "a", Content: "x"}}}},
		errs:    map[collector.SourceID]error{"npr": errors.New("down")},
	}
	rec := &memRecorder{}
	svc := NewService(sites("bbc", "npr"), NewOrchestrator(r, NewLocalRunGuard(), nil), rec, nil)

	agg := svc.ScrapeAll(WithTrigger(context.Background(), "cron"))
	if len(agg.Articles) != 1 || len(agg.Errors) != 1 {
		t.Fatalf("unexpected aggregate %+v", agg)
	}
	if len(rec.reports) != 1 {
		t.Fatalf("expected one run report, got %d", len(rec.reports))
	}
	rep := rec.reports[0]
	if rep.Trigger != "cron" || rep.Articles != 1 || len(rep.Errors) != 1 || rep.ID == "" {
		t.Fatalf("unexpected report %+v", rep)
	}
}

func TestServiceScrapeSource(t *testing.T) {
	perr := &PersistenceError{Source: "bbc", Err: errors.New("db down")}
	r := &scriptedRunner{results: map[collector.SourceID]Result{
		"bbc": {Articles: []collector.Article{{URL: "a", Content: "x"}}, PersistErr: perr},
	}}
	svc := NewService(sites("bbc"), NewOrchestrator(r, nil, nil), nil, nil)

	articles, err := svc.ScrapeSource(context.Background(), "bbc")
	if !errors.Is(err, perr) || len(articles) != 1 {
		t.Fatalf("expected articles with persistence error, got %v, %v", articles, err)
	}
	if _, err := svc.ScrapeSource(context.Background(), "guardian"); !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("expected ErrUnknownSource, got %v", err)
	}
	if _, err := svc.ScrapeSources(context.Background(), []collector.SourceID{"bbc", "nope"}); !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("expected ErrUnknownSource, got %v", err)
	}
}

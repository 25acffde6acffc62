package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/LJTian/NewsLens/internal/collector"
)

// Runner executes one source run.
type Runner interface {
	Run(ctx context.Context, site collector.Site) (Result, error)
}

// ErrorEntry names a source whose run failed or could not persist.
type ErrorEntry struct {
	Source  collector.SourceID `json:"source"`
	Message string             `json:"message"`
}

// Aggregate merges the outcome of several source runs.
type Aggregate struct {
	Articles []collector.Article `json:"articles"`
	Errors   []ErrorEntry        `json:"errors"`
}

// Orchestrator runs sources concurrently and merges their results.
type Orchestrator struct {
	runner Runner
	guard  RunGuard
	log    *zap.Logger
}

// NewOrchestrator builds an orchestrator. guard may be nil to run unguarded.
func NewOrchestrator(r Runner, guard RunGuard, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{runner: r, guard: guard, log: log.Named("orchestrator")}
}

// RunOne runs a single source under its run token, converting panics to errors.
func (o *Orchestrator) RunOne(ctx context.Context, site collector.Site) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("source run panic", zap.String("source", string(site.ID)), zap.Any("panic", r))
			res = Result{Source: site.ID}
			err = &SourceError{Source: site.ID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if o.guard != nil {
		token, gerr := o.guard.Acquire(ctx, site.ID)
		if gerr != nil {
			return Result{Source: site.ID}, &SourceError{Source: site.ID, Err: gerr}
		}
		defer func() {
			// release even when ctx is already done
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if rerr := o.guard.Release(rctx, site.ID, token); rerr != nil {
				o.log.Warn("release run token failed", zap.String("source", string(site.ID)), zap.Error(rerr))
			}
		}()
	}

	return o.runner.Run(ctx, site)
}

// RunAll runs every site concurrently. A failing source contributes one
// ErrorEntry and no articles; a source whose upsert failed contributes an
// ErrorEntry and keeps its articles. Results are merged in sites order.
func (o *Orchestrator) RunAll(ctx context.Context, sites []collector.Site) Aggregate {
	type outcome struct {
		res Result
		err error
	}
	outcomes := make([]outcome, len(sites))

	var wg sync.WaitGroup
	for i, site := range sites {
		i, site := i, site
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.RunOne(ctx, site)
			outcomes[i] = outcome{res: res, err: err}
		}()
	}
	wg.Wait()

	agg := Aggregate{Articles: []collector.Article{}, Errors: []ErrorEntry{}}
	for i, oc := range outcomes {
		id := sites[i].ID
		if oc.err != nil {
			o.log.Warn("source failed", zap.String("source", string(id)), zap.Error(oc.err))
			agg.Errors = append(agg.Errors, ErrorEntry{Source: id, Message: oc.err.Error()})
			continue
		}
		if oc.res.PersistErr != nil {
			agg.Errors = append(agg.Errors, ErrorEntry{Source: id, Message: oc.res.PersistErr.Error()})
		}
		agg.Articles = append(agg.Articles, oc.res.Articles...)
	}

	o.log.Info("aggregate run finished",
		zap.Int("sources", len(sites)),
		zap.Int("articles", len(agg.Articles)),
		zap.Int("errors", len(agg.Errors)))
	return agg
}

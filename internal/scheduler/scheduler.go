package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/LJTian/NewsLens/internal/pipeline"
)

// Scraper is the part of pipeline.Service the scheduler drives.
type Scraper interface {
	ScrapeAll(ctx context.Context) pipeline.Aggregate
}

type Scheduler struct {
	cron    *cron.Cron
	scraper Scraper
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func New(spec string, scraper Scraper, log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(),
		scraper: scraper,
		log:     log.Named("scheduler"),
		ctx:     ctx,
		cancel:  cancel,
	}

	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// Start begins the cron loop. The first scrape runs after startupDelay
// so it does not compete with the first API requests; zero skips it.
func (s *Scheduler) Start(startupDelay time.Duration) {
	s.cron.Start()
	if startupDelay > 0 {
		time.AfterFunc(startupDelay, s.runOnce)
	}
}

// Stop halts the cron loop, cancels a scrape in progress and waits for running jobs.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// RunOnce triggers one scrape synchronously.
func (s *Scheduler) RunOnce() pipeline.Aggregate {
	return s.run()
}

func (s *Scheduler) runOnce() {
	_ = s.run()
}

func (s *Scheduler) run() pipeline.Aggregate {
	if s.ctx.Err() != nil {
		return pipeline.Aggregate{}
	}
	start := time.Now()
	s.log.Info("scrape job started")
	agg := s.scraper.ScrapeAll(pipeline.WithTrigger(s.ctx, "cron"))
	for _, e := range agg.Errors {
		s.log.Warn("source error", zap.String("source", string(e.Source)), zap.String("message", e.Message))
	}
	s.log.Info("scrape job done",
		zap.Int("articles", len(agg.Articles)),
		zap.Int("errors", len(agg.Errors)),
		zap.Duration("took", time.Since(start)))
	return agg
}

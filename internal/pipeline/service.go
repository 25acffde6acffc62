package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LJTian/NewsLens/internal/collector"
)

// RunReport summarizes one aggregated scrape for auditing.
type RunReport struct {
	ID         string
	Trigger    string
	StartedAt  time.Time
	FinishedAt time.Time
	Articles   int
	Errors     []ErrorEntry
}

type RunRecorder interface {
	RecordRun(ctx context.Context, report RunReport) error
}

type triggerKey struct{}

// WithTrigger tags ctx with what started the run ("cron", "api", "cli").
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, triggerKey{}, trigger)
}

func triggerFrom(ctx context.Context) string {
	if t, ok := ctx.Value(triggerKey{}).(string); ok && t != "" {
		return t
	}
	return "manual"
}

// Service is the entry point used by the API, the scheduler and the CLI.
type Service struct {
	sites        []collector.Site
	orchestrator *Orchestrator
	recorder     RunRecorder
	log          *zap.Logger
}

// NewService builds a service over the enabled sites. recorder may be nil.
func NewService(sites []collector.Site, o *Orchestrator, recorder RunRecorder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{sites: sites, orchestrator: o, recorder: recorder, log: log.Named("service")}
}

func (s *Service) Sites() []collector.Site {
	out := make([]collector.Site, len(s.sites))
	copy(out, s.sites)
	return out
}

func (s *Service) site(id collector.SourceID) (collector.Site, bool) {
	for _, site := range s.sites {
		if site.ID == id {
			return site, true
		}
	}
	return collector.Site{}, false
}

// ScrapeSource runs one source. When only persistence failed, the articles
// are returned together with the *PersistenceError.
func (s *Service) ScrapeSource(ctx context.Context, id collector.SourceID) ([]collector.Article, error) {
	site, ok := s.site(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	res, err := s.orchestrator.RunOne(ctx, site)
	if err != nil {
		return nil, err
	}
	return res.Articles, res.PersistErr
}

// ScrapeAll runs every configured source and records the run.
func (s *Service) ScrapeAll(ctx context.Context) Aggregate {
	return s.scrape(ctx, s.sites)
}

// ScrapeSources runs the named sources as one aggregated run.
func (s *Service) ScrapeSources(ctx context.Context, ids []collector.SourceID) (Aggregate, error) {
	sites := make([]collector.Site, 0, len(ids))
	for _, id := range ids {
		site, ok := s.site(id)
		if !ok {
			return Aggregate{}, fmt.Errorf("%w: %s", ErrUnknownSource, id)
		}
		sites = append(sites, site)
	}
	return s.scrape(ctx, sites), nil
}

func (s *Service) scrape(ctx context.Context, sites []collector.Site) Aggregate {
	started := time.Now().UTC()
	agg := s.orchestrator.RunAll(ctx, sites)

	if s.recorder != nil {
		report := RunReport{
			ID:         uuid.NewString(),
			Trigger:    triggerFrom(ctx),
			StartedAt:  started,
			FinishedAt: time.Now().UTC(),
			Articles:   len(agg.Articles),
			Errors:     agg.Errors,
		}
		if err := s.recorder.RecordRun(context.WithoutCancel(ctx), report); err != nil {
			s.log.Warn("record run failed", zap.String("run", report.ID), zap.Error(err))
		}
	}
	return agg
}

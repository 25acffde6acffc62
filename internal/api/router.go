package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/LJTian/NewsLens/internal/collector"
	"github.com/LJTian/NewsLens/internal/pipeline"
	"github.com/LJTian/NewsLens/internal/storage"
)

type Scraper interface {
	Sites() []collector.Site
	ScrapeSource(ctx context.Context, id collector.SourceID) ([]collector.Article, error)
	ScrapeAll(ctx context.Context) pipeline.Aggregate
	ScrapeSources(ctx context.Context, ids []collector.SourceID) (pipeline.Aggregate, error)
}

type ArticleReader interface {
	ListArticles(ctx context.Context, q storage.ArticleQuery) ([]collector.Article, error)
	ListRuns(ctx context.Context, limit int) ([]storage.RunRecord, error)
}

type Server struct {
	scraper Scraper
	store   ArticleReader
	log     *zap.Logger
}

func NewServer(scraper Scraper, store ArticleReader, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{scraper: scraper, store: store, log: log.Named("api")}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/sources", s.listSources)
		v1.GET("/articles", s.listArticles)
		v1.GET("/runs", s.listRuns)
		v1.POST("/scrape", s.scrapeAll)
		v1.POST("/scrape/:source", s.scrapeSource)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		return 20
	}
	return limit
}

type sourceView struct {
	ID         collector.SourceID `json:"id"`
	ListingURL string             `json:"listingUrl"`
	Pages      int                `json:"pages"`
	Workers    int                `json:"workers"`
}

func (s *Server) listSources(c *gin.Context) {
	sites := s.scraper.Sites()
	out := make([]sourceView, 0, len(sites))
	for _, site := range sites {
		out = append(out, sourceView{
			ID:         site.ID,
			ListingURL: site.ListingURL,
			Pages:      site.PageCount(),
			Workers:    site.WorkerLimit(),
		})
	}
	ok(c, out)
}

func (s *Server) listArticles(c *gin.Context) {
	q := storage.ArticleQuery{
		Source: c.Query("source"),
		Topic:  c.Query("topic"),
		Limit:  queryLimit(c),
	}
	if q.Source != "" {
		if _, err := collector.ParseSourceID(q.Source); err != nil {
			fail(c, http.StatusBadRequest, "invalid_source", err.Error())
			return
		}
	}
	if q.Topic != "" && !collector.Topic(q.Topic).Valid() {
		fail(c, http.StatusBadRequest, "invalid_topic", "unknown topic")
		return
	}

	items, err := s.store.ListArticles(c.Request.Context(), q)
	if err != nil {
		s.log.Error("list articles failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	ok(c, items)
}

func (s *Server) listRuns(c *gin.Context) {
	runs, err := s.store.ListRuns(c.Request.Context(), queryLimit(c))
	if err != nil {
		s.log.Error("list runs failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	ok(c, runs)
}

// scrapeAll runs every source, or only those listed in ?source=bbc,npr.
func (s *Server) scrapeAll(c *gin.Context) {
	ctx := pipeline.WithTrigger(c.Request.Context(), "api")
	raw := strings.TrimSpace(c.Query("source"))
	if raw == "" {
		ok(c, s.scraper.ScrapeAll(ctx))
		return
	}

	var ids []collector.SourceID
	for _, part := range strings.Split(raw, ",") {
		id, err := collector.ParseSourceID(strings.TrimSpace(part))
		if err != nil {
			fail(c, http.StatusBadRequest, "invalid_source", err.Error())
			return
		}
		ids = append(ids, id)
	}
	agg, err := s.scraper.ScrapeSources(ctx, ids)
	if err != nil {
		fail(c, http.StatusNotFound, "source_not_configured", err.Error())
		return
	}
	ok(c, agg)
}

func (s *Server) scrapeSource(c *gin.Context) {
	id, err := collector.ParseSourceID(c.Param("source"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid_source", err.Error())
		return
	}

	articles, err := s.scraper.ScrapeSource(c.Request.Context(), id)
	var perr *pipeline.PersistenceError
	switch {
	case err == nil:
		ok(c, articles)
	case errors.As(err, &perr):
		c.JSON(http.StatusOK, gin.H{
			"code":    "partial",
			"message": perr.Error(),
			"data":    articles,
		})
	case errors.Is(err, pipeline.ErrUnknownSource):
		fail(c, http.StatusNotFound, "source_not_configured", err.Error())
	case errors.Is(err, pipeline.ErrSourceBusy):
		fail(c, http.StatusConflict, "source_busy", err.Error())
	default:
		s.log.Warn("scrape source failed", zap.String("source", string(id)), zap.Error(err))
		fail(c, http.StatusBadGateway, "source_failed", err.Error())
	}
}

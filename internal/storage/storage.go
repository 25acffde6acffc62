package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/LJTian/NewsLens/internal/cache"
	"github.com/LJTian/NewsLens/internal/collector"
	"github.com/LJTian/NewsLens/internal/pipeline"
	"github.com/LJTian/NewsLens/internal/processor"
)

const (
	listCacheTTL   = 5 * time.Minute
	upsertBatch    = 100
	maxTitleRunes  = 512
	maxDigestRunes = 600
)

// Article is the persisted form of collector.Article, keyed by URL.
type Article struct {
	URL           string  `gorm:"primaryKey;size:1024" json:"url"`
	Title         string  `gorm:"size:512" json:"title"`
	Source        string  `gorm:"size:32;index" json:"source"`
	PublishedDate string  `gorm:"size:32;index" json:"publishedDate"`
	Content       string  `gorm:"type:text" json:"content"`
	Sentiment     *string `gorm:"size:16" json:"sentiment"`
	Topic         *string `gorm:"size:32;index" json:"topic"`
	Score         *int    `gorm:"index" json:"score"`
	Digest        *string `gorm:"size:600" json:"digest"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RunRecord audits one aggregated scrape.
type RunRecord struct {
	ID         string         `gorm:"primaryKey;size:36" json:"id"`
	Trigger    string         `gorm:"size:32" json:"trigger"`
	StartedAt  time.Time      `gorm:"index" json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Articles   int            `json:"articles"`
	Errors     datatypes.JSON `gorm:"type:jsonb" json:"errors"`
}

// updated on conflict; created_at is left as first written
var upsertColumns = []string{
	"title", "source", "published_date", "content",
	"sentiment", "topic", "score", "digest", "updated_at",
}

type Store struct {
	DB    *gorm.DB
	cache cache.Cache
	log   *zap.Logger
}

// Open connects to Postgres and migrates the tables.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Article{}, &RunRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// NewStore wraps db. c may be nil, in which case list reads are not cached.
func NewStore(db *gorm.DB, c cache.Cache, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{DB: db, cache: c, log: log.Named("storage")}
}

// toValidUTF8 keeps Postgres from rejecting mis-encoded scraped text.
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncateRunesDB cuts s to the column width in runes.
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

func toRecord(a collector.Article) Article {
	rec := Article{
		URL:           a.URL,
		Title:         truncateRunesDB(toValidUTF8(a.Title), maxTitleRunes),
		Source:        string(a.Source),
		PublishedDate: a.PublishedDate,
		Content:       toValidUTF8(a.Content),
		Score:         a.Score,
	}
	if a.Sentiment != nil {
		v := string(*a.Sentiment)
		rec.Sentiment = &v
	}
	if a.Topic != nil {
		v := string(*a.Topic)
		rec.Topic = &v
	}
	if a.Digest != nil {
		v := truncateRunesDB(toValidUTF8(*a.Digest), maxDigestRunes)
		rec.Digest = &v
	}
	return rec
}

func (r Article) toArticle() collector.Article {
	a := collector.Article{
		URL:           r.URL,
		Title:         r.Title,
		Source:        collector.SourceID(r.Source),
		PublishedDate: r.PublishedDate,
		Content:       r.Content,
		Score:         r.Score,
		Digest:        r.Digest,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.Sentiment != nil {
		v := collector.Sentiment(*r.Sentiment)
		a.Sentiment = &v
	}
	if r.Topic != nil {
		v := collector.Topic(*r.Topic)
		a.Topic = &v
	}
	return a
}

func upsertClause(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	})
}

// Upsert writes articles keyed by URL. Repeating the call with the same
// input leaves the table unchanged apart from updated_at.
func (s *Store) Upsert(ctx context.Context, articles []collector.Article) error {
	articles = processor.Dedupe(articles)
	if len(articles) == 0 {
		return nil
	}
	rows := make([]Article, 0, len(articles))
	for _, a := range articles {
		rows = append(rows, toRecord(a))
	}
	if err := upsertClause(s.DB.WithContext(ctx)).CreateInBatches(&rows, upsertBatch).Error; err != nil {
		return fmt.Errorf("upsert %d articles: %w", len(rows), err)
	}
	s.log.Debug("articles upserted", zap.Int("count", len(rows)))
	return nil
}

// ArticleQuery filters ListArticles. Zero values mean no filter.
type ArticleQuery struct {
	Source string
	Topic  string
	Limit  int
}

func (q ArticleQuery) normalized() ArticleQuery {
	if q.Limit <= 0 || q.Limit > 1000 {
		q.Limit = 20
	}
	return q
}

func (q ArticleQuery) cacheKey() string {
	return fmt.Sprintf("articles:list:%s:%s:%d", q.Source, q.Topic, q.Limit)
}

// ListArticles returns the newest articles, read through the list cache.
// Cached lists expire on their TTL rather than being invalidated on write.
func (s *Store) ListArticles(ctx context.Context, q ArticleQuery) ([]collector.Article, error) {
	q = q.normalized()
	key := q.cacheKey()

	if s.cache != nil {
		if bs, ok := s.cache.Get(ctx, key); ok {
			var cached []collector.Article
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	db := s.DB.WithContext(ctx).Model(&Article{})
	if q.Source != "" {
		db = db.Where("source = ?", q.Source)
	}
	if q.Topic != "" {
		db = db.Where("topic = ?", q.Topic)
	}
	var rows []Article
	if err := db.Order("published_date DESC").Order("created_at DESC").Limit(q.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	list := make([]collector.Article, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.toArticle())
	}

	if s.cache != nil && len(list) > 0 {
		if bs, err := json.Marshal(list); err == nil {
			if err := s.cache.Set(ctx, key, bs, listCacheTTL); err != nil {
				s.log.Warn("cache list failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return list, nil
}

// RecordRun stores the audit row of one aggregated scrape.
func (s *Store) RecordRun(ctx context.Context, report pipeline.RunReport) error {
	errs, err := json.Marshal(report.Errors)
	if err != nil {
		return fmt.Errorf("encode run errors: %w", err)
	}
	rec := RunRecord{
		ID:         report.ID,
		Trigger:    report.Trigger,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Articles:   report.Articles,
		Errors:     datatypes.JSON(errs),
	}
	return s.DB.WithContext(ctx).Create(&rec).Error
}

// ListRuns returns the most recent run records.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	var runs []RunRecord
	err := s.DB.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

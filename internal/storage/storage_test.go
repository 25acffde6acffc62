package storage

import (
	"strings"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/LJTian/NewsLens/internal/collector"
)

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=newslens dbname=newslens sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	return db
}

func TestUpsertStatementPreservesCreatedAt(t *testing.T) {
	db := dryRunDB(t)
	rows := []Article{toRecord(collector.Article{URL: "https://example.com/a", Source: collector.SourceBBC, Content: "x"})}

	stmt := upsertClause(db.Session(&gorm.Session{DryRun: true})).Create(&rows).Statement
	sql := stmt.SQL.String()

	if !strings.Contains(sql, `INSERT INTO "articles"`) {
		t.Fatalf("unexpected sql: %s", sql)
	}
	if !strings.Contains(sql, `ON CONFLICT ("url") DO UPDATE SET`) {
		t.Fatalf("missing upsert clause: %s", sql)
	}
	for _, col := range []string{"title", "content", "sentiment", "topic", "score", "digest", "updated_at"} {
		if !strings.Contains(sql, `"`+col+`"="excluded"."`+col+`"`) {
			t.Fatalf("column %s not updated on conflict: %s", col, sql)
		}
	}
	if strings.Contains(sql, `"created_at"="excluded"."created_at"`) {
		t.Fatalf("created_at must not be overwritten: %s", sql)
	}
}

func TestRecordConversionRoundTrip(t *testing.T) {
	sentiment := collector.SentimentPositive
	topic := collector.TopicScience
	score := 80
	digest := "Scientists confirm a new particle."
	in := collector.Article{
		URL:           "https://example.com/p",
		Title:         "Particle",
		Source:        collector.SourceGuardian,
		PublishedDate: "2024-01-01T00:00:00Z",
		Content:       "body",
		Sentiment:     &sentiment,
		Topic:         &topic,
		Score:         &score,
		Digest:        &digest,
	}
	out := toRecord(in).toArticle()
	if out.URL != in.URL || out.Source != in.Source || *out.Sentiment != sentiment || *out.Topic != topic || *out.Score != 80 || *out.Digest != digest {
		t.Fatalf("conversion lost data: %+v", out)
	}

	bare := toRecord(collector.Article{URL: "u", Source: collector.SourceNPR, Content: "c"})
	if bare.Sentiment != nil || bare.Topic != nil || bare.Score != nil || bare.Digest != nil {
		t.Fatalf("unenriched article must map to NULL columns: %+v", bare)
	}
}

func TestToRecordSanitizesText(t *testing.T) {
	rec := toRecord(collector.Article{URL: "u", Title: strings.Repeat("t", 600) + "\xff", Content: "ok\xffok"})
	if n := len([]rune(rec.Title)); n != maxTitleRunes {
		t.Fatalf("title runes = %d, want %d", n, maxTitleRunes)
	}
	if rec.Content != "ok�ok" {
		t.Fatalf("content = %q", rec.Content)
	}
}

func TestArticleQueryDefaults(t *testing.T) {
	q := ArticleQuery{Source: "bbc", Limit: 5000}.normalized()
	if q.Limit != 20 {
		t.Fatalf("limit = %d", q.Limit)
	}
	if got := q.cacheKey(); got != "articles:list:bbc::20" {
		t.Fatalf("cache key = %q", got)
	}
}

package collector

import (
	"fmt"
	"strings"
	"time"
)

// SourceID identifies one scraped website.
type SourceID string

const (
	SourceBBC      SourceID = "bbc"
	SourceGuardian SourceID = "guardian"
	SourceNPR      SourceID = "npr"
	SourceUNNews   SourceID = "unnews"
)

var knownSources = []SourceID{SourceBBC, SourceGuardian, SourceNPR, SourceUNNews}

// AllSources returns every source the collector knows how to extract.
func AllSources() []SourceID {
	out := make([]SourceID, len(knownSources))
	copy(out, knownSources)
	return out
}

// ParseSourceID accepts the lowercase source name.
func ParseSourceID(s string) (SourceID, error) {
	id := SourceID(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range knownSources {
		if id == known {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// Paginated reports whether the source's listing takes a page number.
// bbc and npr publish a single listing document.
func (id SourceID) Paginated() bool {
	return id != SourceBBC && id != SourceNPR
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// Topic is the closed set of categories the analysis service may assign.
type Topic string

const (
	TopicPolitics      Topic = "politics"
	TopicBusiness      Topic = "business"
	TopicTechnology    Topic = "technology"
	TopicScience       Topic = "science"
	TopicHealth        Topic = "health"
	TopicSports        Topic = "sports"
	TopicEntertainment Topic = "entertainment"
	TopicWorld         Topic = "world"
	TopicEnvironment   Topic = "environment"
	TopicOther         Topic = "other"
)

// Topics lists the accepted topics in a stable order.
var Topics = []Topic{
	TopicPolitics, TopicBusiness, TopicTechnology, TopicScience, TopicHealth,
	TopicSports, TopicEntertainment, TopicWorld, TopicEnvironment, TopicOther,
}

func (t Topic) Valid() bool {
	for _, known := range Topics {
		if t == known {
			return true
		}
	}
	return false
}

// ArticleStub is a listing entry that precedes detail extraction.
type ArticleStub struct {
	Title string
	URL   string
	// Hint carries whatever the listing offered besides the title (teaser, lead).
	Hint string
}

func (s ArticleStub) Key() string { return s.URL }

// Article is the canonical record passed through the pipeline.
// Enrichment fields stay nil until the analysis succeeds.
type Article struct {
	URL           string     `json:"url"`
	Title         string     `json:"title,omitempty"`
	Source        SourceID   `json:"source"`
	PublishedDate string     `json:"publishedDate,omitempty"`
	Content       string     `json:"content"`
	Sentiment     *Sentiment `json:"sentiment,omitempty"`
	Topic         *Topic     `json:"topic,omitempty"`
	Score         *int       `json:"score,omitempty"`
	Digest        *string    `json:"digest,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func (a Article) Key() string { return a.URL }

// HasContent reports whether the article carries non-whitespace content.
func (a Article) HasContent() bool {
	return strings.TrimSpace(a.Content) != ""
}

// Enriched reports whether analysis fields were attached.
func (a Article) Enriched() bool {
	return a.Sentiment != nil && a.Topic != nil && a.Score != nil && a.Digest != nil
}

// Site is the runtime description of a configured source.
type Site struct {
	ID         SourceID
	BaseURL    string
	ListingURL string
	// Pages is the number of listing pages fetched in order, starting at 0.
	Pages   int
	Workers int
	Headers map[string]string
	// Form holds extra fields for sources whose listing is a form POST.
	Form map[string]string
}

// PageCount returns the number of listing pages to request.
func (s Site) PageCount() int {
	if s.Pages <= 0 || !s.ID.Paginated() {
		return 1
	}
	return s.Pages
}

// WorkerLimit returns the fan-out ceiling for detail and enrichment calls.
func (s Site) WorkerLimit() int {
	if s.Workers <= 0 {
		return DefaultWorkers
	}
	return s.Workers
}

const DefaultWorkers = 8

package collector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Extractor turns a source's raw markup into stubs and articles.
type Extractor interface {
	Source() SourceID
	ParseListing(markup []byte) ([]ArticleStub, error)
	ParseDetail(markup []byte, pageURL string) (Article, error)
}

// Registry maps source ids to their extractor.
type Registry struct {
	mu         sync.RWMutex
	extractors map[SourceID]Extractor
}

func NewRegistry(extractors ...Extractor) *Registry {
	r := &Registry{extractors: make(map[SourceID]Extractor, len(extractors))}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// DefaultRegistry builds the extractor of every known source for the given sites.
func DefaultRegistry(sites []Site) (*Registry, error) {
	r := NewRegistry()
	for _, site := range sites {
		e, err := NewExtractor(site)
		if err != nil {
			return nil, err
		}
		r.Register(e)
	}
	return r, nil
}

// NewExtractor returns the extractor for site.ID resolving links against site.BaseURL.
func NewExtractor(site Site) (Extractor, error) {
	base, err := url.Parse(site.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("source %s: invalid base url %q", site.ID, site.BaseURL)
	}
	switch site.ID {
	case SourceBBC:
		return NewBBCExtractor(base), nil
	case SourceGuardian:
		return NewGuardianExtractor(base), nil
	case SourceNPR:
		return NewNPRExtractor(base), nil
	case SourceUNNews:
		return NewUNNewsExtractor(base), nil
	}
	return nil, fmt.Errorf("no extractor for source %q", site.ID)
}

func (r *Registry) Register(e Extractor) {
	r.mu.Lock()
	r.extractors[e.Source()] = e
	r.mu.Unlock()
}

func (r *Registry) Resolve(id SourceID) (Extractor, error) {
	r.mu.RLock()
	e, ok := r.extractors[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no extractor registered for source %q", id)
	}
	return e, nil
}

// Sources returns the registered ids sorted by name.
func (r *Registry) Sources() []SourceID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SourceID, 0, len(r.extractors))
	for id := range r.extractors {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// minReadableRunes keeps the readability pass from promoting navigation text to content.
const minReadableRunes = 200

// dateProbe reads a raw date from the first element matching selector,
// from attr when set, from the element text otherwise.
type dateProbe struct {
	selector string
	attr     string
}

// detailRecipe is the selector cascade used to read one source's article page.
type detailRecipe struct {
	source  SourceID
	title   []string
	content []string
	excerpt []string
	dates   []dateProbe
	layouts []string
}

func (r detailRecipe) parse(markup []byte, pageURL string) (Article, error) {
	doc, err := newDocument(markup)
	if err != nil {
		return Article{}, &ExtractionError{URL: pageURL, Source: r.source, Err: err}
	}
	ld := readJSONLD(doc)

	title := firstText(doc, r.title...)
	if title == "" {
		title = cleanText(ld.Headline)
	}
	if title == "" {
		title = attrOf(doc, `meta[property="og:title"]`, "content")
	}

	content := firstContent(doc, r.content...)
	if content == "" {
		content = strings.TrimSpace(ld.ArticleBody)
	}
	if content == "" {
		content = readableText(markup, pageURL)
	}
	if content == "" {
		content = firstExcerpt(doc, r.excerpt...)
	}
	if content == "" {
		return Article{}, &ExtractionError{URL: pageURL, Source: r.source, Err: ErrNoContent}
	}

	published := ""
	for _, p := range r.dates {
		var raw string
		if p.attr != "" {
			raw = attrOf(doc, p.selector, p.attr)
		} else {
			raw = cleanText(doc.Find(p.selector).First().Text())
		}
		if published = NormalizeDate(raw, r.layouts...); published != "" {
			break
		}
	}
	if published == "" {
		published = NormalizeDate(ld.DatePublished, r.layouts...)
	}

	return Article{
		URL:           pageURL,
		Title:         title,
		Source:        r.source,
		PublishedDate: published,
		Content:       content,
	}, nil
}

func newDocument(markup []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if t := cleanText(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func attrOf(doc *goquery.Document, selector, attr string) string {
	v, _ := doc.Find(selector).First().Attr(attr)
	return strings.TrimSpace(v)
}

// joinParagraphs concatenates the non-empty texts of sel, one paragraph per block.
func joinParagraphs(sel *goquery.Selection) string {
	parts := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := cleanText(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n\n")
}

func firstContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if text := joinParagraphs(doc.Find(sel)); text != "" {
			return text
		}
	}
	return ""
}

// firstExcerpt reads meta tags through their content attribute and anything else as text.
func firstExcerpt(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		var text string
		if goquery.NodeName(s) == "meta" {
			text, _ = s.Attr("content")
			text = cleanText(text)
		} else {
			text = cleanText(s.Text())
		}
		if text != "" {
			return text
		}
	}
	return ""
}

func readableText(markup []byte, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(bytes.NewReader(markup), u)
	if err != nil {
		return ""
	}
	text := strings.TrimSpace(article.TextContent)
	if len([]rune(text)) < minReadableRunes {
		return ""
	}
	return text
}

type jsonLD struct {
	Headline      string
	ArticleBody   string
	DatePublished string
}

// readJSONLD merges the page's JSON-LD blocks. Headline and date come from the
// first article-typed node (or the first node carrying a body); ArticleBody
// comes from the first node that has one.
func readJSONLD(doc *goquery.Document) jsonLD {
	var nodes []map[string]any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var payload any
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return
		}
		nodes = collectLDNodes(payload, nodes)
	})

	var (
		ld       jsonLD
		haveMeta bool
	)
	for _, node := range nodes {
		body, _ := node["articleBody"].(string)
		hasBody := strings.TrimSpace(body) != ""
		if ld.ArticleBody == "" && hasBody {
			ld.ArticleBody = body
		}
		if !haveMeta && (hasBody || isArticleLD(node)) {
			ld.Headline, _ = node["headline"].(string)
			ld.DatePublished, _ = node["datePublished"].(string)
			haveMeta = true
		}
	}
	return ld
}

// collectLDNodes flattens arrays and @graph containers into out.
func collectLDNodes(v any, out []map[string]any) []map[string]any {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			out = collectLDNodes(item, out)
		}
	case map[string]any:
		out = append(out, node)
		if graph, ok := node["@graph"]; ok {
			out = collectLDNodes(graph, out)
		}
	}
	return out
}

// isArticleLD matches NewsArticle, ReportageNewsArticle, BlogPosting and friends.
func isArticleLD(node map[string]any) bool {
	var types []string
	switch t := node["@type"].(type) {
	case string:
		types = []string{t}
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				types = append(types, s)
			}
		}
	}
	for _, t := range types {
		if strings.HasSuffix(t, "Article") || t == "BlogPosting" {
			return true
		}
	}
	return false
}

// resolveURL makes href absolute against base and drops the fragment.
// Query strings and trailing slashes are kept as published.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

func sameHost(base *url.URL, link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return strings.TrimPrefix(u.Host, "www.") == strings.TrimPrefix(base.Host, "www.")
}

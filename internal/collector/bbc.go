package collector

import (
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

var bbcArticlePath = regexp.MustCompile(`^/news/(articles/[a-z0-9]+|[a-z0-9-]+-\d{6,})$`)

type bbcExtractor struct {
	base   *url.URL
	recipe detailRecipe
}

func NewBBCExtractor(base *url.URL) Extractor {
	return &bbcExtractor{
		base: base,
		recipe: detailRecipe{
			source: SourceBBC,
			title:  []string{"article h1", "#main-heading", "h1"},
			content: []string{
				`article [data-component="text-block"] p`,
				`[data-component="text-block"] p`,
				`div[class*="RichTextComponentWrapper"] p`,
			},
			excerpt: []string{`meta[name="description"]`, `meta[property="og:description"]`},
			dates:   []dateProbe{{selector: "article time[datetime]", attr: "datetime"}, {selector: "time[datetime]", attr: "datetime"}},
		},
	}
}

func (e *bbcExtractor) Source() SourceID { return SourceBBC }

func (e *bbcExtractor) ParseListing(markup []byte) ([]ArticleStub, error) {
	doc, err := newDocument(markup)
	if err != nil {
		return nil, err
	}
	var stubs []ArticleStub
	doc.Find(`a[data-testid="internal-link"], a.gs-c-promo-heading`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link := resolveURL(e.base, href)
		if link == "" || !sameHost(e.base, link) {
			return
		}
		u, err := url.Parse(link)
		if err != nil || !bbcArticlePath.MatchString(u.Path) {
			return
		}
		// headline first, the anchor text also carries teaser and timestamp
		title := cleanText(s.Find(`h2, h3, [data-testid="card-headline"], .gs-c-promo-heading__title`).First().Text())
		if title == "" {
			title = cleanText(s.Text())
		}
		hint := cleanText(s.Find(`[data-testid="card-description"], p`).First().Text())
		stubs = append(stubs, ArticleStub{Title: title, URL: link, Hint: hint})
	})
	return stubs, nil
}

func (e *bbcExtractor) ParseDetail(markup []byte, pageURL string) (Article, error) {
	return e.recipe.parse(markup, pageURL)
}

package collector

import (
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

// guardian article paths carry a /yyyy/mon/dd/ segment
var guardianArticlePath = regexp.MustCompile(`/\d{4}/[a-z]{3}/\d{2}/[^/]+$`)

type guardianExtractor struct {
	base   *url.URL
	recipe detailRecipe
}

func NewGuardianExtractor(base *url.URL) Extractor {
	return &guardianExtractor{
		base: base,
		recipe: detailRecipe{
			source:  SourceGuardian,
			title:   []string{`[data-gu-name="headline"] h1`, "h1"},
			content: []string{"div#maincontent p", `[data-gu-name="body"] p`, "div.content__article-body p"},
			excerpt: []string{`[data-gu-name="standfirst"]`, "div.content__standfirst", `meta[name="description"]`},
			dates: []dateProbe{
				{selector: `meta[property="article:published_time"]`, attr: "content"},
				{selector: "time[datetime]", attr: "datetime"},
			},
		},
	}
}

func (e *guardianExtractor) Source() SourceID { return SourceGuardian }

func (e *guardianExtractor) ParseListing(markup []byte) ([]ArticleStub, error) {
	doc, err := newDocument(markup)
	if err != nil {
		return nil, err
	}
	var stubs []ArticleStub
	doc.Find(`a[data-link-name="article"], a.fc-item__link, a.js-headline-text`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link := resolveURL(e.base, href)
		if link == "" || !sameHost(e.base, link) {
			return
		}
		u, err := url.Parse(link)
		if err != nil || !guardianArticlePath.MatchString(u.Path) {
			return
		}
		title := cleanText(s.Find(".js-headline-text, span").First().Text())
		if title == "" {
			title = cleanText(s.Text())
		}
		if title == "" {
			title, _ = s.Attr("aria-label")
		}
		stubs = append(stubs, ArticleStub{Title: cleanText(title), URL: link})
	})
	return stubs, nil
}

func (e *guardianExtractor) ParseDetail(markup []byte, pageURL string) (Article, error) {
	return e.recipe.parse(markup, pageURL)
}

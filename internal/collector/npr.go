package collector

import (
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

type nprExtractor struct {
	base   *url.URL
	recipe detailRecipe
}

func NewNPRExtractor(base *url.URL) Extractor {
	return &nprExtractor{
		base: base,
		recipe: detailRecipe{
			source:  SourceNPR,
			title:   []string{".storytitle h1", "h1"},
			content: []string{"#storytext > p", "#storytext p"},
			excerpt: []string{`meta[name="description"]`, `meta[property="og:description"]`},
			dates: []dateProbe{
				{selector: "time[datetime]", attr: "datetime"},
				{selector: ".dateblock .date"},
			},
			layouts: []string{"January 2, 2006", "January 2, 2006 3:04 PM MST"},
		},
	}
}

func (e *nprExtractor) Source() SourceID { return SourceNPR }

// ParseListing reads the RSS feed, falling back to the HTML section page.
func (e *nprExtractor) ParseListing(markup []byte) ([]ArticleStub, error) {
	feed, err := gofeed.NewParser().ParseString(string(markup))
	if err == nil {
		stubs := make([]ArticleStub, 0, len(feed.Items))
		for _, item := range feed.Items {
			link := resolveURL(e.base, item.Link)
			if link == "" {
				continue
			}
			stubs = append(stubs, ArticleStub{
				Title: cleanText(item.Title),
				URL:   link,
				Hint:  cleanText(item.Description),
			})
		}
		return stubs, nil
	}

	doc, err := newDocument(markup)
	if err != nil {
		return nil, err
	}
	var stubs []ArticleStub
	doc.Find("article.item").Each(func(_ int, item *goquery.Selection) {
		a := item.Find("h2.title a").First()
		href, _ := a.Attr("href")
		link := resolveURL(e.base, href)
		if link == "" {
			return
		}
		stubs = append(stubs, ArticleStub{
			Title: cleanText(a.Text()),
			URL:   link,
			Hint:  cleanText(item.Find("p.teaser").First().Text()),
		})
	})
	return stubs, nil
}

func (e *nprExtractor) ParseDetail(markup []byte, pageURL string) (Article, error) {
	return e.recipe.parse(markup, pageURL)
}

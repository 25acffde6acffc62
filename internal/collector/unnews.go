package collector

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type unNewsExtractor struct {
	base   *url.URL
	recipe detailRecipe
}

func NewUNNewsExtractor(base *url.URL) Extractor {
	return &unNewsExtractor{
		base: base,
		recipe: detailRecipe{
			source:  SourceUNNews,
			title:   []string{"h1.page-title", "h1"},
			content: []string{".field--name-field-text-column p", ".field--name-body p"},
			excerpt: []string{".field--name-field-news-story-lead", `meta[name="description"]`},
			dates: []dateProbe{
				{selector: "time[datetime]", attr: "datetime"},
				{selector: ".field--name-field-news-date"},
			},
			layouts: []string{"2 January 2006", "02 January 2006"},
		},
	}
}

func (e *unNewsExtractor) Source() SourceID { return SourceUNNews }

// ajaxCommand is one entry of a Drupal views/ajax response.
type ajaxCommand struct {
	Command string `json:"command"`
	Data    any    `json:"data"`
}

// ParseListing accepts either the views/ajax JSON command list or plain HTML.
func (e *unNewsExtractor) ParseListing(markup []byte) ([]ArticleStub, error) {
	trimmed := bytes.TrimSpace(markup)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var commands []ajaxCommand
		if err := json.Unmarshal(trimmed, &commands); err == nil {
			var stubs []ArticleStub
			for _, cmd := range commands {
				fragment, ok := cmd.Data.(string)
				if cmd.Command != "insert" || !ok || strings.TrimSpace(fragment) == "" {
					continue
				}
				found, err := e.parseRows([]byte(fragment))
				if err != nil {
					return nil, err
				}
				stubs = append(stubs, found...)
			}
			return stubs, nil
		}
	}
	return e.parseRows(markup)
}

func (e *unNewsExtractor) parseRows(fragment []byte) ([]ArticleStub, error) {
	doc, err := newDocument(fragment)
	if err != nil {
		return nil, err
	}
	var stubs []ArticleStub
	doc.Find(".views-row").Each(func(_ int, row *goquery.Selection) {
		a := row.Find("h2 a, .field--name-title a").First()
		href, _ := a.Attr("href")
		link := resolveURL(e.base, href)
		if link == "" {
			return
		}
		stubs = append(stubs, ArticleStub{
			Title: cleanText(a.Text()),
			URL:   link,
			Hint:  cleanText(row.Find(".field--name-field-news-story-lead, .news-body").First().Text()),
		})
	})
	return stubs, nil
}

func (e *unNewsExtractor) ParseDetail(markup []byte, pageURL string) (Article, error) {
	return e.recipe.parse(markup, pageURL)
}

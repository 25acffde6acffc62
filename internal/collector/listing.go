package collector

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// ListFetcher retrieves the raw listing markup of one page of a source.
type ListFetcher struct {
	transport Transport
	sites     map[SourceID]Site
}

func NewListFetcher(t Transport, sites []Site) *ListFetcher {
	m := make(map[SourceID]Site, len(sites))
	for _, s := range sites {
		m[s.ID] = s
	}
	return &ListFetcher{transport: t, sites: m}
}

// FetchListing requests page (0-based) of the source's listing view.
func (f *ListFetcher) FetchListing(ctx context.Context, source SourceID, page int) ([]byte, error) {
	site, ok := f.sites[source]
	if !ok {
		return nil, fmt.Errorf("listing: unknown source %q", source)
	}
	headers := browserHeaders(site)

	switch source {
	case SourceGuardian:
		target, err := pagedURL(site.ListingURL, "page", page+1)
		if err != nil {
			return nil, err
		}
		return f.transport.Get(ctx, target, headers)
	case SourceUNNews:
		headers.Set("X-Requested-With", "XMLHttpRequest")
		headers.Set("Accept", "application/json, text/javascript, */*; q=0.01")
		return f.transport.PostForm(ctx, site.ListingURL, unNewsForm(site, page), headers)
	default:
		// bbc and npr expose a single listing document
		return f.transport.Get(ctx, site.ListingURL, headers)
	}
}

func pagedURL(raw, param string, n int) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("listing url %q: %w", raw, err)
	}
	q := u.Query()
	q.Set(param, strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func unNewsForm(site Site, page int) url.Values {
	form := url.Values{}
	form.Set("view_name", "news_stories")
	form.Set("view_display_id", "page_1")
	form.Set("view_args", "")
	form.Set("pager_element", "0")
	form.Set("_drupal_ajax", "1")
	for k, v := range site.Form {
		form.Set(k, v)
	}
	form.Set("page", strconv.Itoa(page))
	return form
}

package collector

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	defaultRequestTimeout = 15 * time.Second
	maxBodyBytes          = 4 << 20 // 4MB
	browserUserAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Transport is the HTTP capability used by the listing and detail fetchers.
type Transport interface {
	Get(ctx context.Context, rawURL string, headers http.Header) ([]byte, error)
	PostForm(ctx context.Context, rawURL string, form url.Values, headers http.Header) ([]byte, error)
}

// CollyTransport performs single requests through a fresh colly collector.
// Non-2xx responses surface as *FetchError carrying the status code.
type CollyTransport struct {
	timeout   time.Duration
	userAgent string
}

var _ Transport = (*CollyTransport)(nil)

func NewCollyTransport(timeout time.Duration, userAgent string) *CollyTransport {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	if userAgent == "" {
		userAgent = browserUserAgent
	}
	return &CollyTransport{timeout: timeout, userAgent: userAgent}
}

func (t *CollyTransport) Get(ctx context.Context, rawURL string, headers http.Header) ([]byte, error) {
	return t.do(ctx, http.MethodGet, rawURL, nil, headers)
}

func (t *CollyTransport) PostForm(ctx context.Context, rawURL string, form url.Values, headers http.Header) ([]byte, error) {
	hdr := headers.Clone()
	if hdr == nil {
		hdr = http.Header{}
	}
	hdr.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	return t.do(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()), hdr)
}

func (t *CollyTransport) do(ctx context.Context, method, rawURL string, body io.Reader, headers http.Header) ([]byte, error) {
	// colly has no per-request context; the collector timeout bounds each call.
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	c := colly.NewCollector(
		colly.UserAgent(t.userAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(maxBodyBytes),
	)
	c.SetRequestTimeout(t.timeout)

	var (
		payload  []byte
		status   int
		received bool
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		payload = r.Body
		received = true
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	hdr := headers.Clone()
	if hdr == nil {
		hdr = http.Header{}
	}
	if hdr.Get("User-Agent") == "" {
		hdr.Set("User-Agent", t.userAgent)
	}

	if err := c.Request(method, rawURL, body, nil, hdr); err != nil {
		return nil, &FetchError{URL: rawURL, StatusCode: status, Err: err}
	}
	if !received {
		return nil, &FetchError{URL: rawURL, StatusCode: status, Err: errors.New("empty response")}
	}
	return payload, nil
}

// browserHeaders returns the default request headers merged with per-site overrides.
// User-Agent is left to the transport unless the site overrides it.
func browserHeaders(site Site) http.Header {
	h := http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Cache-Control", "no-cache")
	for k, v := range site.Headers {
		h.Set(k, v)
	}
	return h
}

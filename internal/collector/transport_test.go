package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestCollyTransportGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		if r.Header.Get("X-Test") != "1" {
			t.Errorf("missing custom header")
		}
		if r.Header.Get("User-Agent") != "newslens-test" {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	tr := NewCollyTransport(5*time.Second, "newslens-test")
	body, err := tr.Get(context.Background(), srv.URL+"/page", http.Header{"X-Test": []string{"1"}})
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(body) != "<html>ok</html>" {
		t.Fatalf("body = %q", body)
	}
}

func TestCollyTransportPostForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("page") != "2" || r.PostForm.Get("view_name") != "news_stories" {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	form := url.Values{"page": {"2"}, "view_name": {"news_stories"}}
	body, err := NewCollyTransport(5*time.Second, "").PostForm(context.Background(), srv.URL+"/views/ajax", form, nil)
	if err != nil {
		t.Fatalf("PostForm error: %v", err)
	}
	if string(body) != "[]" {
		t.Fatalf("body = %q", body)
	}
}

func TestCollyTransportStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewCollyTransport(5*time.Second, "").Get(context.Background(), srv.URL+"/missing", nil)
	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if ferr.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", ferr.StatusCode)
	}
}

func TestCollyTransportCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCollyTransport(time.Second, "").Get(ctx, "http://127.0.0.1:1/", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestListingUsesConfiguredUserAgent(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	sites := []Site{
		{ID: SourceBBC, ListingURL: srv.URL + "/news"},
		{ID: SourceNPR, ListingURL: srv.URL + "/feed", Headers: map[string]string{"User-Agent": "site-agent"}},
	}
	lf := NewListFetcher(NewCollyTransport(5*time.Second, "NewsLensBot/1.0"), sites)
	for _, id := range []SourceID{SourceBBC, SourceNPR} {
		if _, err := lf.FetchListing(context.Background(), id, 0); err != nil {
			t.Fatalf("%s listing error: %v", id, err)
		}
	}
	if len(seen) != 2 || seen[0] != "NewsLensBot/1.0" || seen[1] != "site-agent" {
		t.Fatalf("user agents = %q", seen)
	}
}

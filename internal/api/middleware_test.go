package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func TestBasicAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()), BasicAuth("admin", "secret"))
	NewServer(&fakeScraper{}, &fakeReader{}, nil).RegisterRoutes(r)

	cases := []struct {
		name       string
		path       string
		user, pass string
		want       int
	}{
		{"health is open", "/health", "", "", http.StatusOK},
		{"missing credentials", "/api/v1/sources", "", "", http.StatusUnauthorized},
		{"wrong password", "/api/v1/sources", "admin", "nope", http.StatusUnauthorized},
		{"valid", "/api/v1/sources", "admin", "secret", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.user != "" {
			req.SetBasicAuth(tc.user, tc.pass)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s: status = %d, want %d", tc.name, w.Code, tc.want)
		}
	}
}

func TestBasicAuthExtraOpenPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BasicAuth("admin", "secret", "/api/v1/sources"))
	NewServer(&fakeScraper{}, &fakeReader{}, nil).RegisterRoutes(r)

	for path, want := range map[string]int{
		"/health":          http.StatusOK,
		"/api/v1/sources":  http.StatusOK,
		"/api/v1/articles": http.StatusUnauthorized,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != want {
			t.Fatalf("%s: status = %d, want %d", path, w.Code, want)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/articles", nil))
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("missing WWW-Authenticate challenge")
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil || env.Code != "unauthorized" {
		t.Fatalf("unexpected body %s (%v)", w.Body.String(), err)
	}
}

package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metascope/backend/internal/infrastructure/logging"
	"github.com/metascope/backend/internal/infrastructure/monitoring"
	"github.com/metascope/backend/internal/metadata"
	"github.com/metascope/backend/internal/proxy"
)

// Prometheus collectors register globally, so the test suite shares one set.
var testMetrics = monitoring.NewMetrics()

// stubFetcher returns a canned outcome and records what it was asked for.
type stubFetcher struct {
	result  *proxy.Result
	err     *proxy.Error
	gotURL  string
	gotUA   string
	called  bool
}

func (s *stubFetcher) Fetch(_ context.Context, url string, caller proxy.Caller) (*proxy.Result, *proxy.Error) {
	s.called = true
	s.gotURL = url
	s.gotUA = caller.UserAgent
	return s.result, s.err
}

func newTestRouter(fetcher *stubFetcher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandlers(fetcher, proxy.DefaultPolicy(), metadata.NewParser(), testMetrics, logging.NewNop())
	r := gin.New()
	r.GET("/health", h.Health)
	r.POST("/api/fetch", h.Fetch)
	return r
}

func postFetch(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/fetch", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "client-test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&stubFetcher{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"online"`)
	assert.Contains(t, w.Body.String(), `"maxRedirects":5`)
}

func TestFetchSuccess(t *testing.T) {
	stub := &stubFetcher{result: &proxy.Result{
		URL:         "https://example.com",
		FinalURL:    "https://example.com",
		StatusCode:  200,
		ContentType: "text/html",
		Head:        `<title>Example</title><meta property="og:title" content="Example">`,
		BodySnippet: "<h1>hi</h1>",
		FetchedAt:   time.Now().UTC(),
	}}
	r := newTestRouter(stub)

	w := postFetch(r, `{"url": "https://example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://example.com", stub.gotURL)
	assert.Equal(t, "client-test", stub.gotUA)

	var resp struct {
		OK   bool   `json:"ok"`
		Head string `json:"head"`
		Meta struct {
			Title     string            `json:"title"`
			OpenGraph map[string]string `json:"openGraph"`
		} `json:"meta"`
	}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Contains(t, resp.Head, "<title>Example</title>")
	assert.Equal(t, "Example", resp.Meta.Title)
	assert.Equal(t, "Example", resp.Meta.OpenGraph["og:title"])
}

func TestFetchClassifiedError(t *testing.T) {
	stub := &stubFetcher{err: &proxy.Error{
		Code:    proxy.CodeSSRFBlocked,
		Message: "host is not fetchable",
	}}
	r := newTestRouter(stub)

	w := postFetch(r, `{"url": "https://localhost/"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"ssrf_blocked"`)
	assert.Contains(t, w.Body.String(), `"ok":false`)
}

func TestFetchRejectsBadRequestShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"unknown field", `{"url": "https://example.com", "depth": 3}`},
		{"missing url", `{}`},
		{"empty url", `{"url": ""}`},
		{"wrong type", `{"url": 42}`},
		{"not json", `url=https://example.com`},
		{"empty body", ``},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubFetcher{}
			r := newTestRouter(stub)

			w := postFetch(r, tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"invalid_url"`)
			// Shape violations never reach the pipeline.
			assert.False(t, stub.called)
		})
	}
}

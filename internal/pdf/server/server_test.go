package server

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/articlepdf/internal/common/urlmatch"
	"github.com/edgecomet/articlepdf/internal/pdf/cache"
	"github.com/edgecomet/articlepdf/internal/pdf/resolver"
	"github.com/edgecomet/articlepdf/pkg/types"
)

const testToken = "secret-token"

type fakeRenderer struct {
	payload []byte
	err     error
	calls   int
}

func (f *fakeRenderer) RenderVariant(_ context.Context, _ string, _ types.Variant) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func newTestServer(t *testing.T, renderer resolver.Renderer) (*Server, *cache.Store) {
	t.Helper()

	store, err := cache.Open(filepath.Join(t.TempDir(), "articles.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	res := resolver.NewResolver(store, renderer, zap.NewNop())
	metrics := NewServerMetricsWithRegistry("test", prometheus.NewRegistry(), zap.NewNop())

	return NewServer(testToken, res, store, nil, 30*24*time.Hour, 90*time.Second, zap.NewNop(), metrics), store
}

func doRequest(server *Server, method, path, token string, body []byte) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&fasthttp.Request{}, nil, nil)
	ctx.Request.SetRequestURI(path)
	ctx.Request.Header.SetMethod(method)
	if token != "" {
		ctx.Request.Header.Set(headerAuthToken, token)
	}
	if body != nil {
		ctx.Request.SetBody(body)
	}
	server.Handler()(ctx)
	return ctx
}

func TestHealthWithoutAuth(t *testing.T) {
	server, _ := newTestServer(t, &fakeRenderer{})

	ctx := doRequest(server, fasthttp.MethodGet, PathHealth, "", nil)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
}

func TestAuthRequired(t *testing.T) {
	server, _ := newTestServer(t, &fakeRenderer{})

	ctx := doRequest(server, fasthttp.MethodGet, PathStats, "", nil)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())

	ctx = doRequest(server, fasthttp.MethodGet, PathStats, "wrong", nil)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
}

func TestAuthViaQueryParam(t *testing.T) {
	server, _ := newTestServer(t, &fakeRenderer{})

	ctx := doRequest(server, fasthttp.MethodGet, PathStats+"?auth_token="+testToken, "", nil)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
}

func TestRequestIDEchoed(t *testing.T) {
	server, _ := newTestServer(t, &fakeRenderer{})

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&fasthttp.Request{}, nil, nil)
	ctx.Request.SetRequestURI(PathHealth)
	ctx.Request.Header.SetMethod(fasthttp.MethodGet)
	ctx.Request.Header.Set(headerRequestID, "my custom id!!")
	server.Handler()(ctx)

	id := string(ctx.Response.Header.Peek(headerRequestID))
	require.NotEmpty(t, id)
	assert.Contains(t, id, "my-custom-id")
}

func TestGetPdfRendersOnMiss(t *testing.T) {
	renderer := &fakeRenderer{payload: []byte("%PDF-fake")}
	server, store := newTestServer(t, renderer)

	body, _ := json.Marshal(generatePdfRequest{
		ArticleURL: "https://example.com/some-story",
		DeviceType: types.DeviceMobile,
		Inline:     true,
	})
	ctx := doRequest(server, fasthttp.MethodPost, PathPdf, testToken, body)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "application/pdf", string(ctx.Response.Header.ContentType()))
	assert.Equal(t, "%PDF-fake", string(ctx.Response.Body()))
	assert.Equal(t, "inline; filename=some-story.pdf",
		string(ctx.Response.Header.Peek(fasthttp.HeaderContentDisposition)))
	assert.Equal(t, 1, renderer.calls)

	entry, err := store.Find(context.Background(), "https://example.com/some-story", types.DeviceMobile, true)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.False(t, entry.Pending())
}

func TestGetPdfServesFromCache(t *testing.T) {
	renderer := &fakeRenderer{payload: []byte("fresh")}
	server, store := newTestServer(t, renderer)

	require.NoError(t, store.Upsert(context.Background(),
		"https://example.com/cached", types.DeviceDesktop, false, []byte("cached-pdf")))

	body, _ := json.Marshal(generatePdfRequest{
		ArticleURL: "https://example.com/cached",
		DeviceType: types.DeviceDesktop,
		Inline:     false,
	})
	ctx := doRequest(server, fasthttp.MethodPost, PathPdf, testToken, body)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "cached-pdf", string(ctx.Response.Body()))
	assert.Equal(t, "attachment; filename=cached.pdf",
		string(ctx.Response.Header.Peek(fasthttp.HeaderContentDisposition)))
	assert.Zero(t, renderer.calls)
}

func TestGetPdfValidation(t *testing.T) {
	server, _ := newTestServer(t, &fakeRenderer{})

	tests := []struct {
		name string
		body string
	}{
		{"garbage body", "{not json"},
		{"missing url", `{"device_type":"mobile","inline":true}`},
		{"relative url", `{"article_url":"/no-host","device_type":"mobile"}`},
		{"unknown device", `{"article_url":"https://example.com/a","device_type":"unknown"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := doRequest(server, fasthttp.MethodPost, PathPdf, testToken, []byte(tt.body))
			assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
		})
	}
}

func TestGetPdfRenderTimeout(t *testing.T) {
	renderer := &fakeRenderer{err: types.NewRenderTimeout("https://example.com/slow", context.DeadlineExceeded)}
	server, _ := newTestServer(t, renderer)

	body, _ := json.Marshal(generatePdfRequest{
		ArticleURL: "https://example.com/slow",
		DeviceType: types.DeviceTablet,
	})
	ctx := doRequest(server, fasthttp.MethodPost, PathPdf, testToken, body)

	assert.Equal(t, fasthttp.StatusGatewayTimeout, ctx.Response.StatusCode())
}

func TestGetPdfRenderFailure(t *testing.T) {
	renderer := &fakeRenderer{err: types.NewRenderError("https://example.com/bad", "tab crashed", nil)}
	server, _ := newTestServer(t, renderer)

	body, _ := json.Marshal(generatePdfRequest{
		ArticleURL: "https://example.com/bad",
		DeviceType: types.DeviceDesktop,
	})
	ctx := doRequest(server, fasthttp.MethodPost, PathPdf, testToken, body)

	assert.Equal(t, fasthttp.StatusBadGateway, ctx.Response.StatusCode())
}

func TestQueueArticle(t *testing.T) {
	server, store := newTestServer(t, &fakeRenderer{})

	body, _ := json.Marshal(queueArticleRequest{ArticleURL: "https://example.com/queued"})
	ctx := doRequest(server, fasthttp.MethodPost, PathQueue, testToken, body)

	require.Equal(t, fasthttp.StatusAccepted, ctx.Response.StatusCode())

	pending, err := store.DequeuePending(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 6)
}

func TestQueueArticleAlreadyKnown(t *testing.T) {
	server, store := newTestServer(t, &fakeRenderer{})

	require.NoError(t, store.Upsert(context.Background(),
		"https://example.com/known", types.DeviceMobile, true, []byte("pdf")))

	body, _ := json.Marshal(queueArticleRequest{ArticleURL: "https://example.com/known"})
	ctx := doRequest(server, fasthttp.MethodPost, PathQueue, testToken, body)

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	// Still only the one upserted row, no pending variants added
	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Rows)
}

func TestStats(t *testing.T) {
	server, store := newTestServer(t, &fakeRenderer{})

	require.NoError(t, store.Upsert(context.Background(),
		"https://example.com/a", types.DeviceMobile, true, []byte("12345")))

	ctx := doRequest(server, fasthttp.MethodGet, PathStats, testToken, nil)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	var resp struct {
		Success bool          `json:"success"`
		Data    statsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
	assert.True(t, resp.Success)
	assert.EqualValues(t, 1, resp.Data.Rows)
	assert.EqualValues(t, 5, resp.Data.Bytes)
}

func TestPurge(t *testing.T) {
	server, store := newTestServer(t, &fakeRenderer{})

	now := time.Now().UTC()
	store.SetClock(func() time.Time { return now.Add(-10 * 24 * time.Hour) })
	require.NoError(t, store.Upsert(context.Background(),
		"https://example.com/oldish", types.DeviceMobile, true, []byte("pdf")))
	store.SetClock(func() time.Time { return now })

	// Default window (30d) keeps the row
	ctx := doRequest(server, fasthttp.MethodPost, PathPurge, testToken, nil)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	var resp struct {
		Data purgeResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
	assert.Zero(t, resp.Data.RowsDeleted)

	// Explicit 7-day window removes it
	body := []byte(fmt.Sprintf(`{"older_than_days":%d}`, 7))
	ctx = doRequest(server, fasthttp.MethodPost, PathPurge, testToken, body)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
	assert.EqualValues(t, 1, resp.Data.RowsDeleted)
}

func TestPurgeNegativeDays(t *testing.T) {
	server, _ := newTestServer(t, &fakeRenderer{})

	ctx := doRequest(server, fasthttp.MethodPost, PathPurge, testToken, []byte(`{"older_than_days":-1}`))
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
}

func TestHostAllowlist(t *testing.T) {
	renderer := &fakeRenderer{payload: []byte("pdf")}
	server, _ := newTestServer(t, renderer)

	matcher, err := urlmatch.Compile([]string{"medium.com", "*.medium.com"})
	require.NoError(t, err)
	server.allowedHosts = matcher

	body, _ := json.Marshal(generatePdfRequest{
		ArticleURL: "https://example.com/outsider",
		DeviceType: types.DeviceMobile,
	})
	ctx := doRequest(server, fasthttp.MethodPost, PathPdf, testToken, body)
	assert.Equal(t, fasthttp.StatusForbidden, ctx.Response.StatusCode())
	assert.Zero(t, renderer.calls)

	body, _ = json.Marshal(queueArticleRequest{ArticleURL: "https://example.com/outsider"})
	ctx = doRequest(server, fasthttp.MethodPost, PathQueue, testToken, body)
	assert.Equal(t, fasthttp.StatusForbidden, ctx.Response.StatusCode())

	body, _ = json.Marshal(generatePdfRequest{
		ArticleURL: "https://blog.medium.com/inside",
		DeviceType: types.DeviceMobile,
	})
	ctx = doRequest(server, fasthttp.MethodPost, PathPdf, testToken, body)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
}

func TestMethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t, &fakeRenderer{})

	ctx := doRequest(server, fasthttp.MethodGet, PathPdf, testToken, nil)
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, ctx.Response.StatusCode())
}

func TestNotFound(t *testing.T) {
	server, _ := newTestServer(t, &fakeRenderer{})

	ctx := doRequest(server, fasthttp.MethodGet, "/nope", testToken, nil)
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
}

func TestPdfFileName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/my-great-story", "my-great-story.pdf"},
		{"https://example.com/My-Great-Story", "my-great-story.pdf"},
		{"https://example.com/a/b/c/deep-post", "deep-post.pdf"},
		{"https://example.com/", "article.pdf"},
		{"https://example.com", "article.pdf"},
		{"not a url at all", "article.pdf"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, pdfFileName(tt.url), "url=%s", tt.url)
	}
}

package router

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchWildcardRoute(t *testing.T) {
	tests := []struct {
		path    string
		pattern string
		want    bool
	}{
		{"/api/v1/pipelines/abc", "/api/v1/pipelines/*", true},
		{"/api/v1/pipelines/abc/errors", "/api/v1/pipelines/*", false},
		{"/api/v1/pipelines/abc/errors", "/api/v1/pipelines/*/errors", true},
		{"/api/v1/pipelines/abc/phases", "/api/v1/pipelines/*/errors", false},
		{"/api/v1/pipelines/", "/api/v1/pipelines/*", false},
		{"/files/a/b/c", "/files/**", true},
		{"/files", "/files/**", true},
		{"/other/a", "/files/**", false},
	}
	for _, tt := range tests {
		t.Run(tt.path+" "+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, matchWildcardRoute(tt.path, tt.pattern))
		})
	}
}

func serve(r *Router, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func text(body string) HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(body))
	}
}

func TestDispatch(t *testing.T) {
	r := New(nil)
	r.GET("/api/v1/pipelines", text("list"))
	r.POST("/api/v1/pipelines", text("create"))
	r.GET("/api/v1/pipelines/*/errors", text("errors"))
	r.GET("/api/v1/pipelines/*", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("get " + Segment(req, 3)))
	})
	r.Handle("/metrics", text("metrics"))

	var routes []string
	r.OnRequest(func(method, route string, status int, _ time.Duration) {
		routes = append(routes, method+" "+route)
	})

	assert.Equal(t, "list", serve(r, "GET", "/api/v1/pipelines").Body.String())
	assert.Equal(t, "create", serve(r, "POST", "/api/v1/pipelines").Body.String())
	assert.Equal(t, "errors", serve(r, "GET", "/api/v1/pipelines/42/errors").Body.String())
	assert.Equal(t, "get 42", serve(r, "GET", "/api/v1/pipelines/42").Body.String())
	assert.Equal(t, "metrics", serve(r, "GET", "/metrics").Body.String())
	assert.Equal(t, http.StatusMethodNotAllowed, serve(r, "DELETE", "/api/v1/pipelines").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(r, "POST", "/api/v1/pipelines/42").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, "GET", "/nope").Code)

	assert.Contains(t, routes, "GET /api/v1/pipelines/*/errors")
	assert.Contains(t, routes, "GET /metrics")
	assert.Len(t, r.Routes(), 4)
	assert.True(t, r.Paths()["/api/v1/pipelines/*"])
}

func TestHandlerFuncMounts(t *testing.T) {
	r := New(nil)
	r.Handle("/static/", text("mounted"))

	rec := serve(r, "PUT", "/static/app.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mounted", rec.Body.String())
}

func TestSegment(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/pipelines/abc/errors", nil)
	assert.Equal(t, "abc", Segment(req, 3))
	assert.Equal(t, "errors", Segment(req, 4))
	assert.Equal(t, "", Segment(req, 5))
	assert.Equal(t, "", Segment(req, -1))
}

func TestStartShutsDownOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	r := New(nil)
	r.GET("/ping", text("pong"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/ping")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

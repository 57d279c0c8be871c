package router

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

// ServeHTTP lets a HandlerFunc be mounted with Handle.
func (f HandlerFunc) ServeHTTP(w http.ResponseWriter, req *http.Request) { f(w, req) }

var _ http.Handler = HandlerFunc(nil)

// RequestHook is called after every request with the matched route pattern,
// or the raw path when nothing matched.
type RequestHook func(method, route string, status int, elapsed time.Duration)

type Router struct {
	logger    *slog.Logger
	mux       *http.ServeMux
	routes    map[string]HandlerFunc // key = METHOD:PATH
	paths     map[string]bool        // track registered paths
	wildcards []string               // wildcard paths in registration order
	mounts    []mount
	hooks     []RequestHook
}

type mount struct {
	prefix  string
	handler http.Handler
}

func New(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Router{
		logger: logger,
		mux:    http.NewServeMux(),
		routes: make(map[string]HandlerFunc),
		paths:  make(map[string]bool),
	}

	// Catch-all handler for unknown paths
	r.mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		route := r.dispatch(lrw, req)

		duration := time.Since(start)
		for _, hook := range r.hooks {
			hook(req.Method, route, lrw.statusCode, duration)
		}
		r.logger.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", lrw.statusCode,
			"duration", duration,
		)
	})

	return r
}

// dispatch serves req and returns the route that matched.
func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) string {
	key := req.Method + ":" + req.URL.Path
	if h, ok := r.routes[key]; ok {
		h(w, req)
		return req.URL.Path
	}

	// More specific wildcard routes must be registered first
	for _, routePath := range r.wildcards {
		if !matchWildcardRoute(req.URL.Path, routePath) {
			continue
		}
		if h, ok := r.routes[req.Method+":"+routePath]; ok {
			h(w, req)
			return routePath
		}
	}

	for _, m := range r.mounts {
		if strings.HasPrefix(req.URL.Path, m.prefix) {
			m.handler.ServeHTTP(w, req)
			return m.prefix
		}
	}

	if r.pathExists(req.URL.Path) {
		// Path exists but method not allowed
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	} else {
		http.Error(w, "Not Found", http.StatusNotFound)
	}
	return req.URL.Path
}

func (r *Router) pathExists(p string) bool {
	if r.paths[p] {
		return true
	}
	for _, routePath := range r.wildcards {
		if matchWildcardRoute(p, routePath) {
			return true
		}
	}
	return false
}

// matchWildcardRoute checks if a request path matches a wildcard route pattern
func matchWildcardRoute(requestPath, routePattern string) bool {
	requestSegments := strings.Split(strings.Trim(requestPath, "/"), "/")
	routeSegments := strings.Split(strings.Trim(routePattern, "/"), "/")

	// Handle single wildcard at the end (matches any number of remaining segments)
	if len(routeSegments) > 0 && routeSegments[len(routeSegments)-1] == "**" {
		if len(requestSegments) < len(routeSegments)-1 {
			return false
		}
		for i := 0; i < len(routeSegments)-1; i++ {
			if requestSegments[i] != routeSegments[i] && routeSegments[i] != "*" {
				return false
			}
		}
		return true
	}

	if len(requestSegments) != len(routeSegments) {
		return false
	}
	for i, routeSegment := range routeSegments {
		if routeSegment == "*" {
			// Wildcard matches any non-empty segment
			if requestSegments[i] == "" {
				return false
			}
			continue
		}
		if requestSegments[i] != routeSegment {
			return false
		}
	}
	return true
}

// Segment returns the n-th path segment of req, or "" when there is none.
func Segment(req *http.Request, n int) string {
	segments := strings.Split(strings.Trim(req.URL.Path, "/"), "/")
	if n < 0 || n >= len(segments) {
		return ""
	}
	return segments[n]
}

// --- Register paths ---
func (r *Router) register(method, path string, handler HandlerFunc) {
	key := method + ":" + path
	r.routes[key] = handler
	if !r.paths[path] && strings.Contains(path, "*") {
		r.wildcards = append(r.wildcards, path)
	}
	r.paths[path] = true
}

func (r *Router) GET(path string, handler HandlerFunc)   { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc)  { r.register(http.MethodPost, path, handler) }
func (r *Router) PUT(path string, handler HandlerFunc)   { r.register(http.MethodPut, path, handler) }
func (r *Router) PATCH(path string, handler HandlerFunc) { r.register(http.MethodPatch, path, handler) }
func (r *Router) DELETE(path string, handler HandlerFunc) {
	r.register(http.MethodDelete, path, handler)
}

// Handle mounts h for every method under prefix. Registered routes win.
func (r *Router) Handle(prefix string, h http.Handler) {
	r.mounts = append(r.mounts, mount{prefix: prefix, handler: h})
}

// OnRequest adds a hook called after every request.
func (r *Router) OnRequest(hook RequestHook) {
	r.hooks = append(r.hooks, hook)
}

// Getter methods for testing
func (r *Router) Routes() map[string]HandlerFunc {
	return r.routes
}

func (r *Router) Paths() map[string]bool {
	return r.paths
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// --- Start server ---

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (r *Router) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("server started", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	r.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// --- Logging response writer to capture status codes ---
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

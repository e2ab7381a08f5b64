package router

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

type Router struct {
	mux      *http.ServeMux
	routes   map[string]HandlerFunc // key = METHOD:PATH
	paths    map[string]bool        // track registered paths
	patterns []string               // wildcard paths, most specific first
	log      *zap.SugaredLogger
}

type paramsKey struct{}

// New creates a router that logs every request to log. A nil log is silent.
func New(log *zap.SugaredLogger) *Router {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := &Router{
		mux:    http.NewServeMux(),
		routes: make(map[string]HandlerFunc),
		paths:  make(map[string]bool),
		log:    log,
	}

	// Catch-all handler for unknown paths
	r.mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		r.dispatch(lrw, req)

		r.log.Infow("HTTP request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", lrw.statusCode,
			"duration", time.Since(start),
		)
	})

	return r
}

func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) {
	if h, ok := r.routes[req.Method+":"+req.URL.Path]; ok {
		h(w, req)
		return
	}

	pathMatched := r.paths[req.URL.Path]
	for _, pattern := range r.patterns {
		// a trailing wildcard must not shadow a path registered for other methods
		if pathMatched && strings.HasSuffix(pattern, "/*") {
			break
		}
		params, ok := matchWildcardRoute(req.URL.Path, pattern)
		if !ok {
			continue
		}
		if h, ok := r.routes[req.Method+":"+pattern]; ok {
			h(w, req.WithContext(context.WithValue(req.Context(), paramsKey{}, params)))
			return
		}
		pathMatched = true
	}

	if pathMatched {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	http.Error(w, "Not Found", http.StatusNotFound)
}

// Params returns the path segments matched by the wildcards of the route
// that served req. A trailing wildcard captures the rest of the path as one
// value.
func Params(req *http.Request) []string {
	p, _ := req.Context().Value(paramsKey{}).([]string)
	return p
}

// Param returns the i-th wildcard value, or "".
func Param(req *http.Request, i int) string {
	p := Params(req)
	if i < 0 || i >= len(p) {
		return ""
	}
	return p[i]
}

// matchWildcardRoute checks if a request path matches a wildcard route
// pattern and returns the values the wildcards matched.
func matchWildcardRoute(requestPath, routePattern string) ([]string, bool) {
	// Split both paths into segments
	requestSegments := strings.Split(strings.Trim(requestPath, "/"), "/")
	routeSegments := strings.Split(strings.Trim(routePattern, "/"), "/")
	var params []string

	// Handle single wildcard at the end (matches any number of remaining segments)
	if strings.HasSuffix(routePattern, "/*") {
		last := len(routeSegments) - 1
		if len(requestSegments) < last {
			return nil, false
		}
		for i := 0; i < last; i++ {
			if routeSegments[i] == "*" {
				params = append(params, requestSegments[i])
				continue
			}
			if requestSegments[i] != routeSegments[i] {
				return nil, false
			}
		}
		return append(params, strings.Join(requestSegments[last:], "/")), true
	}

	if len(requestSegments) != len(routeSegments) {
		return nil, false
	}
	for i, routeSegment := range routeSegments {
		if routeSegment == "*" {
			if requestSegments[i] == "" {
				return nil, false
			}
			params = append(params, requestSegments[i])
			continue
		}
		if requestSegments[i] != routeSegment {
			return nil, false
		}
	}
	return params, true
}

// --- Register paths ---
func (r *Router) register(method, path string, handler HandlerFunc) {
	key := method + ":" + path
	r.routes[key] = handler
	if !r.paths[path] && strings.Contains(path, "*") {
		r.patterns = append(r.patterns, path)
		sort.SliceStable(r.patterns, func(i, j int) bool { return moreSpecific(r.patterns[i], r.patterns[j]) })
	}
	r.paths[path] = true
}

// moreSpecific orders exact-length patterns before trailing wildcards and
// longer patterns before shorter ones.
func moreSpecific(a, b string) bool {
	at, bt := strings.HasSuffix(a, "/*"), strings.HasSuffix(b, "/*")
	if at != bt {
		return !at
	}
	return strings.Count(a, "/") > strings.Count(b, "/")
}

func (r *Router) GET(path string, handler HandlerFunc)   { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc)  { r.register(http.MethodPost, path, handler) }
func (r *Router) PUT(path string, handler HandlerFunc)   { r.register(http.MethodPut, path, handler) }
func (r *Router) PATCH(path string, handler HandlerFunc) { r.register(http.MethodPatch, path, handler) }
func (r *Router) DELETE(path string, handler HandlerFunc) {
	r.register(http.MethodDelete, path, handler)
}

// Routes returns the registered handlers keyed by METHOD:PATH.
func (r *Router) Routes() map[string]HandlerFunc {
	return r.routes
}

// Paths returns every registered path.
func (r *Router) Paths() map[string]bool {
	return r.paths
}

// ServeHTTP makes the router usable as an http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// ServerConfig tunes Serve.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Serve listens on cfg.Addr until ctx is cancelled, then shuts down,
// giving in-flight requests a few seconds to finish.
func (r *Router) Serve(ctx context.Context, cfg ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		r.log.Infow("Server started", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.log.Infow("Server shutting down", "addr", cfg.Addr)
	if err := srv.Shutdown(shutdownCtx); err != nil {
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

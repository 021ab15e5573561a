package server

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (r *statusRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// routeOf returns the mux pattern that matched r, set once routing ran.
func routeOf(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	return r.Pattern
}

// spanName is "METHOD /path/{param}" for a routed request, or the bare
// method when nothing matched. Path parameters stay as placeholders.
func spanName(r *http.Request) string {
	path := r.Pattern
	if i := strings.IndexByte(path, ' '); i >= 0 {
		path = path[i+1:]
	}
	if path == "" || path == "/" {
		return r.Method
	}
	return r.Method + " " + path
}

// recoverer turns a handler panic into a 500 envelope.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.log.Error("handler panic", "method", r.Method, "path", r.URL.Path,
					"panic", fmt.Sprint(v), "stack", string(debug.Stack()))
				fail(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// observe logs each request and records it in the HTTP metrics. Nothing
// between observe and the mux may replace the request, or the matched
// pattern is lost.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(began)
		route := routeOf(r)
		if span := trace.SpanFromContext(r.Context()); span.IsRecording() {
			span.SetName(spanName(r))
			span.SetAttributes(attribute.String("http.route", route))
		}
		s.metrics.RecordHTTPRequest(r.Method, route, rec.code(), elapsed)
		s.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", rec.code(),
			"bytes", rec.bytes,
			"duration", elapsed,
		)
	})
}

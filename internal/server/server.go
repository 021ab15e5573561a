// Package server exposes the entity store and the driver data over a JSON
// HTTP API. Every response is an envelope {success, data?, error?}.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/mesh-intelligence/apexdraft/internal/entity"
	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

// AppName is reported by the health route.
const AppName = "ApexDraft"

const shutdownTimeout = 10 * time.Second

// DriverSource provides driver listings and per-driver stats.
type DriverSource interface {
	Drivers(ctx context.Context) ([]types.Driver, error)
	DriverStats(ctx context.Context, driverNumber int) (types.DriverStats, error)
}

// Deps are the collaborators a Server is built from. Logger and Metrics
// default to a discarding logger and a fresh registry; a nil TracerProvider
// selects the global one.
type Deps struct {
	Users          *entity.Users
	Chats          *entity.Chats
	Drivers        DriverSource
	Logger         *slog.Logger
	Metrics        *Metrics
	TracerProvider trace.TracerProvider
}

// Server is the HTTP API.
type Server struct {
	users   *entity.Users
	chats   *entity.Chats
	drivers DriverSource
	log     *slog.Logger
	metrics *Metrics
	handler http.Handler
}

// New builds the server and its route table.
func New(d Deps) *Server {
	s := &Server{
		users:   d.Users,
		chats:   d.Chats,
		drivers: d.Drivers,
		log:     d.Logger,
		metrics: d.Metrics,
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}

	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	// The span starts before routing, so it is named by method only and
	// renamed to the matched route in observe.
	opts := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string { return r.Method }),
	}
	if d.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(d.TracerProvider))
	}
	s.handler = otelhttp.NewHandler(s.observe(s.recoverer(mux)), "apexdraft", opts...)
	return s
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe listens on addr and serves until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then shuts down
// gracefully, waiting for in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.log.Handler(), slog.LevelWarn),
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("server stopped")
	return nil
}

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/apexdraft/internal/backend"
	"github.com/mesh-intelligence/apexdraft/internal/openf1"
	"github.com/mesh-intelligence/apexdraft/internal/server"
	"github.com/mesh-intelligence/apexdraft/internal/telemetry"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the ApexDraft JSON API until interrupted.

Routes live under /api (users, chats, chat messages, drivers); Prometheus
metrics are served at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, flags)
		},
	}
	cmd.Flags().String("listen", "", "listen address (default :8080)")
	cmd.Flags().String("seed-file", "", "YAML file with seed users and chats")
	cmd.Flags().String("log-level", "", "log level: debug, info, warn, error")
	cmd.Flags().String("log-format", "", "log format: text or json")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, flags *rootFlags) error {
	metrics := server.NewMetrics()
	st, err := openStore(ctx, cmd, flags, metrics)
	if err != nil {
		return err
	}
	defer st.Close()
	cfg := st.cfg

	tp, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:       cfg.OTelEndpoint,
		ServiceName:    "apexdraft",
		ServiceVersion: Version,
	})
	if err != nil {
		return sysError(err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			st.log.Warn("tracer shutdown", "error", err)
		}
	}()

	drivers := openf1.New(cfg.OpenF1BaseURL,
		openf1.WithTimeout(cfg.OpenF1Timeout),
		openf1.WithRateLimit(cfg.OpenF1Rate),
		openf1.WithSession(cfg.OpenF1Session),
		openf1.WithLogger(st.log.With("component", "openf1")),
	)
	srv := server.New(server.Deps{
		Users:   st.users,
		Chats:   st.chats,
		Drivers: drivers,
		Logger:  st.log,
		Metrics: metrics,
	})

	st.log.Info("starting apexdraft",
		"version", Version,
		"store", backend.Describe(cfg),
		"tracing", tp.Enabled(),
	)
	return commandError(srv.ListenAndServe(ctx, cfg.ListenAddr))
}

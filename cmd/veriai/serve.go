package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ahrav/go-veriai/infrastructure/middleware"
	"github.com/ahrav/go-veriai/infrastructure/session"
	"github.com/ahrav/go-veriai/internal/application"
	"github.com/ahrav/go-veriai/internal/httpapi"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serves the stateless /v1/verify endpoint, interactive sessions under
/v1/sessions with a WebSocket state stream, /healthz and /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.serve(cmd)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func (a *app) serve(cmd *cobra.Command) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewPrometheusMetrics(reg)

	verifier, err := a.buildVerifier(metrics)
	if err != nil {
		return err
	}

	sc := a.cfg.Sessions
	sessions := application.NewSessionManager(
		session.NewMemoryStore(sc.TTL, sc.CleanupInterval),
		verifier,
		application.WithSessionLogger(a.logger),
		application.WithSessionMetrics(metrics),
		application.WithMaxSessions(sc.MaxSessions),
	)

	srv := a.cfg.Server
	server := httpapi.NewServer(sessions, verifier,
		httpapi.WithLogger(a.logger),
		httpapi.WithMaxInputBytes(srv.MaxInputBytes),
		httpapi.WithCORSOrigins(srv.CORSOrigins),
		httpapi.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})),
	)

	a.logger.Info("starting veriai",
		zap.String("version", version),
		zap.String("provider", a.cfg.LLM.Provider),
		zap.String("addr", srv.Addr),
	)
	return server.ListenAndServe(cmd.Context(), srv.Addr, srv.ReadHeaderTimeout, srv.ShutdownTimeout)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/roadsim/internal/logging"
	"github.com/signalsfoundry/roadsim/internal/observability"
	"github.com/signalsfoundry/roadsim/internal/sim/state"
	"github.com/signalsfoundry/roadsim/internal/simserver"
)

type serveConfig struct {
	Place       placeFlags
	GRPCAddr    string
	MetricsAddr string
	// AutoRun ticks the place continuously; otherwise clients advance it
	// with Step.
	AutoRun     bool
}

func serveCmd(log logging.Logger) *cobra.Command {
	var cfg serveConfig
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a scenario over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lis, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
			}
			return serve(cmd.Context(), cfg, log, lis)
		},
	}
	cfg.Place.register(cmd, false)
	cmd.Flags().StringVar(&cfg.GRPCAddr, "grpc-addr", ":50061", "TCP address the gRPC server listens on")
	cmd.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", ":9090", "HTTP address for /metrics and /debug; empty disables it")
	cmd.Flags().BoolVar(&cfg.AutoRun, "autorun", true, "tick the place continuously")
	return cmd
}

// serve blocks until ctx is done, then stops the servers.
func serve(ctx context.Context, cfg serveConfig, log logging.Logger, lis net.Listener) error {
	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	promReg := prometheus.NewRegistry()
	simMetrics, err := observability.NewSimCollector(promReg)
	if err != nil {
		return err
	}
	rpcMetrics, err := observability.NewRPCCollector(promReg)
	if err != nil {
		return err
	}

	reg := state.NewRegistry()
	p, err := cfg.Place.buildPlace(reg, state.WithLogger(log), state.WithMetricsRecorder(simMetrics))
	if err != nil {
		return err
	}
	defer p.Close()

	svc := simserver.NewService(reg, log)
	srv := simserver.NewServer(svc, simserver.Config{
		Logger:  log,
		Metrics: rpcMetrics,
		Tracing: true,
	})

	httpSrv := serveHTTP(cfg.MetricsAddr, rpcMetrics, svc, log)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.GRPC.Serve(lis) }()
	log.Info(ctx, "serving perceptions",
		logging.String("addr", lis.Addr().String()),
		logging.String("place", string(p.ID())),
	)

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	runErr := make(chan error, 1)
	if cfg.AutoRun {
		go func() { runErr <- p.Run(runCtx, 0) }()
	}

	var result error
	running := cfg.AutoRun
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !simserver.IsServerClosed(err) {
			result = fmt.Errorf("grpc server: %w", err)
		}
	case err := <-runErr:
		running = false
		if !errors.Is(err, context.Canceled) {
			result = fmt.Errorf("simulation loop: %w", err)
		}
	}

	log.Info(context.Background(), "shutting down")
	stopRun()
	if running {
		<-runErr
	}
	srv.Stop()
	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	return result
}

func serveHTTP(addr string, collector *observability.RPCCollector, svc simserver.PerceptionServer, log logging.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	mux.Handle("/debug/", simserver.DebugHandler(svc))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); !simserver.IsServerClosed(err) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()
	log.Info(context.Background(), "serving metrics and debug endpoints", logging.String("addr", addr))
	return srv
}

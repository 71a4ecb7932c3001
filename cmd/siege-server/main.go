package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/siege-simulator/internal/command"
	"github.com/signalsfoundry/siege-simulator/internal/game"
	"github.com/signalsfoundry/siege-simulator/internal/logging"
	"github.com/signalsfoundry/siege-simulator/internal/observability"
	"github.com/signalsfoundry/siege-simulator/internal/persist"
	"github.com/signalsfoundry/siege-simulator/internal/rpc"
	"github.com/signalsfoundry/siege-simulator/internal/sim"
	"github.com/signalsfoundry/siege-simulator/internal/stream"
	"github.com/signalsfoundry/siege-simulator/timectrl"
)

// Config holds the server settings.
type Config struct {
	ListenAddress string
	// HTTPAddress serves /metrics and /events. Empty disables HTTP.
	HTTPAddress  string
	StoreBackend string // file | sqlite
	StorePath    string
	TickInterval time.Duration
	Accelerated  bool
	// Registry receives the Prometheus collectors. Nil means a fresh registry.
	Registry *prometheus.Registry
}

func main() {
	cfg := Config{}
	flag.StringVar(&cfg.ListenAddress, "grpc-addr", ":50051", "TCP address the command gRPC server listens on")
	flag.StringVar(&cfg.HTTPAddress, "http-addr", ":9090", "HTTP address for /metrics and the /events websocket")
	flag.StringVar(&cfg.StoreBackend, "store", "file", "arena configuration store: file or sqlite")
	flag.StringVar(&cfg.StorePath, "store-path", "siegecraft", "directory (file) or database path (sqlite) for the arena configuration")
	flag.DurationVar(&cfg.TickInterval, "tick", sim.DefaultTick, "simulated time per loop step")
	flag.BoolVar(&cfg.Accelerated, "accelerated", false, "step as fast as possible instead of in real time")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.ListenAddress), logging.Err(err))
		os.Exit(1)
	}
	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled. It owns lis.
func run(ctx context.Context, cfg Config, log logging.Logger, lis net.Listener) error {
	if log == nil {
		log = logging.Noop()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	rpcMetrics, err := observability.NewRPCCollector(reg)
	if err != nil {
		return err
	}
	loopMetrics, err := observability.NewLoopCollector(reg)
	if err != nil {
		return err
	}
	gameMetrics, err := observability.NewGameCollector(reg)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn(context.Background(), "closing store failed", logging.Err(err))
		}
	}()

	simCfg := sim.DefaultConfig()
	if cfg.TickInterval > 0 {
		simCfg.Tick = cfg.TickInterval
	}
	if cfg.Accelerated {
		simCfg.Mode = timectrl.Accelerated
	}
	runner := sim.NewRunner(simCfg, log, sim.WithMetricsRecorder(loopMetrics))

	hub := stream.NewHub(func(ctx context.Context) (game.Snapshot, error) {
		var snap game.Snapshot
		err := runner.Do(ctx, func(g *game.Game) error {
			snap = g.Snapshot()
			return nil
		})
		return snap, err
	}, log)
	defer hub.Close()

	// The loop is not running yet, so the game can be touched directly.
	g := runner.Game()
	gameMetrics.Attach(g)
	g.AddListener(hub)
	g.AddListener(game.NewLogListener(log))
	// Restore logs its own outcome; a missing or corrupt arena leaves the
	// game unconfigured.
	_ = persist.Restore(ctx, store, g, log)

	dispatcher := command.NewDispatcher(runner.Sandbox(), store, log)
	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			rpc.RequestIDUnaryServerInterceptor(log),
			rpc.TracingUnaryServerInterceptor(),
			rpcMetrics.UnaryServerInterceptor(),
		),
	)
	rpc.RegisterCommandServiceServer(server, rpc.NewCommandService(runner, dispatcher, log))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(server, healthSrv)
	healthSrv.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	var httpSrv *http.Server
	if cfg.HTTPAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler(reg))
		mux.Handle("/events", hub)
		httpSrv = &http.Server{Addr: cfg.HTTPAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn(context.Background(), "http server exited", logging.Err(err))
			}
		}()
		log.Info(ctx, "serving metrics and events", logging.String("addr", cfg.HTTPAddress))
	}

	// The loop outlives ctx so in-flight RPCs can finish during GracefulStop.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	loopErr := make(chan error, 1)
	go func() { loopErr <- runner.Run(loopCtx) }()

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(lis) }()
	log.Info(ctx, "starting siege command server", logging.String("addr", lis.Addr().String()))

	var result error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		result = fmt.Errorf("grpc serve: %w", err)
	case err := <-loopErr:
		if err != nil {
			result = fmt.Errorf("simulation loop: %w", err)
		}
	}

	log.Info(context.Background(), "shutting down siege server")
	healthSrv.Shutdown()
	server.GracefulStop()
	stopLoop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if httpSrv != nil {
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	return result
}

func openStore(cfg Config) (persist.Store, func() error, error) {
	switch strings.ToLower(cfg.StoreBackend) {
	case "", "file":
		return persist.NewFileStore(cfg.StorePath), func() error { return nil }, nil
	case "sqlite":
		st, err := persist.OpenSQLiteStore(cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}

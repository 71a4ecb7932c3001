package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// RPCCollector holds the Prometheus metrics for the command service and
// wires them into gRPC servers and HTTP handlers.
type RPCCollector struct {
	gatherer prometheus.Gatherer

	Requests  *prometheus.CounterVec
	Durations *prometheus.HistogramVec
}

// NewRPCCollector registers the RPC metrics against reg, or against the
// global registry when reg is nil.
func NewRPCCollector(reg prometheus.Registerer) (*RPCCollector, error) {
	reg, gatherer := resolve(reg)

	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "siege_rpc_requests_total",
		Help: "Handled RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}))
	if err != nil {
		return nil, err
	}

	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "siege_rpc_request_duration_seconds",
		Help:    "RPC latency in seconds, including the wait for the game loop.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"service", "method"}))
	if err != nil {
		return nil, err
	}

	return &RPCCollector{
		gatherer:  gatherer,
		Requests:  requests,
		Durations: durations,
	}, nil
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *RPCCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		c.Requests.WithLabelValues(service, method, status.Code(err).String()).Inc()
		c.Durations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// Handler exposes a /metrics handler for the collector's registry.
func (c *RPCCollector) Handler() http.Handler {
	return Handler(c.gatherer)
}

// Handler serves the given gatherer, or the global one when nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// SplitMethod parses a fully-qualified gRPC method name into service and
// method components, returning "unknown" for parts it cannot find.
func SplitMethod(fullMethod string) (string, string) {
	parts := strings.Split(strings.TrimPrefix(fullMethod, "/"), "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func resolve(reg prometheus.Registerer) (prometheus.Registerer, prometheus.Gatherer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	return reg, gatherer
}

// register adds c to reg, reusing an identical collector that is already
// registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			var zero C
			return zero, err
		}
		existing, ok := are.ExistingCollector.(C)
		if !ok {
			var zero C
			return zero, fmt.Errorf("collector %T already registered with incompatible type", c)
		}
		return existing, nil
	}
	return c, nil
}

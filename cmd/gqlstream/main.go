package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jacoelho/gqlstream/internal/config"
	"github.com/jacoelho/gqlstream/internal/exit"
	"github.com/jacoelho/gqlstream/internal/metrics"
	"github.com/jacoelho/gqlstream/internal/runner"
)

const shutdownTimeout = 5 * time.Second

func main() {
	exitCode := run(os.Args, os.Stdout)
	os.Exit(exitCode)
}

func run(args []string, stdout io.Writer) int {
	cfg, exitResult := config.Parse(args)
	if exitResult != nil {
		exitResult.Print()
		return exitResult.ExitCode
	}

	logger := zap.NewNop()
	if cfg.Debug {
		l, err := zap.NewDevelopment()
		if err != nil {
			exitResult = exit.Errorf("Error creating logger: %v\n", err)
			exitResult.Print()
			return exitResult.ExitCode
		}
		logger = l
	}
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if cfg.MetricsAddr != "" {
		_, stop, err := serveMetrics(cfg.MetricsAddr, registry, logger)
		if err != nil {
			exitResult = exit.Errorf("Error: %v\n", err)
			exitResult.Print()
			return exitResult.ExitCode
		}
		defer stop()
	}

	r, exitResult := runner.New(cfg,
		runner.WithLogger(logger),
		runner.WithMetrics(metrics.New(registry)),
		runner.WithOutput(stdout),
	)
	if exitResult != nil {
		exitResult.Print()
		return exitResult.ExitCode
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	exitResult = r.Run(ctx)
	exitResult.Print()
	return exitResult.ExitCode
}

// serveMetrics exposes gatherer on addr/metrics until the returned stop
// function is called. It returns the bound address.
func serveMetrics(addr string, gatherer prometheus.Gatherer, logger *zap.Logger) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Debug("serving metrics", zap.String("addr", ln.Addr().String()))

	return ln.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}, nil
}

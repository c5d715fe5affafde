// Package runner executes the operations in operation files and prints every
// snapshot as it arrives.
package runner

import (
	"context"
	"io"
	"maps"
	"net/http"
	"os"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jacoelho/gqlstream/internal/clock"
	"github.com/jacoelho/gqlstream/internal/config"
	"github.com/jacoelho/gqlstream/internal/exit"
	"github.com/jacoelho/gqlstream/internal/metrics"
	"github.com/jacoelho/gqlstream/internal/operation"
	"github.com/jacoelho/gqlstream/internal/output"
	"github.com/jacoelho/gqlstream/internal/ratelimit"
	"github.com/jacoelho/gqlstream/internal/sanitizer"
	"github.com/jacoelho/gqlstream/internal/transport"
)

// Runner executes operation files.
type Runner struct {
	config    *config.Config
	client    *transport.Client
	printer   *output.Printer
	format    output.Format
	logger    *zap.Logger
	metrics   *metrics.Metrics
	variables map[string]any
	headers   operation.Headers
	out       io.Writer

	debugMu  sync.Mutex
	debugOut io.Writer
	redactor *sanitizer.Redactor
}

type Option func(*Runner)

// WithLogger sets the logger shared with the transport.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithOutput sets the writer for snapshots and summaries. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		r.out = w
	}
}

// WithDebugOutput sets the writer for request and response dumps. Defaults to stderr.
func WithDebugOutput(w io.Writer) Option {
	return func(r *Runner) {
		r.debugOut = w
	}
}

// New creates a Runner for cfg.
// If creation fails, returns nil runner and exit result.
func New(cfg *config.Config, opts ...Option) (*Runner, *exit.Result) {
	r := &Runner{
		config:   cfg,
		logger:   zap.NewNop(),
		out:      os.Stdout,
		debugOut: os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}

	format, err := output.ParseFormat(cfg.Output)
	if err != nil {
		return nil, exit.Errorf("Error creating runner: %v\n", err)
	}
	r.format = format

	r.printer, err = output.NewPrinter(r.out, format, cfg.Select)
	if err != nil {
		return nil, exit.Errorf("Error creating runner: %v\n", err)
	}

	httpClient, err := cfg.HTTPClient()
	if err != nil {
		return nil, exit.Errorf("Error creating runner: %v\n", err)
	}

	r.variables = cfg.AllVariables()
	r.headers = headersFromConfig(cfg.Headers)

	r.redactor = sanitizer.New(uuid.NewString(), cfg.SecretValues()...)
	r.redactor.AddHeaders(cfg.Headers)

	clientOpts := []transport.Option{
		transport.WithHTTPClient(httpClient),
		transport.WithLogger(r.logger),
		transport.WithMetrics(r.metrics),
		transport.WithRateLimit(ratelimit.New(cfg.RateLimit)),
		transport.WithMaxBuffered(cfg.MaxBuffered),
	}
	if cfg.Debug {
		clientOpts = append(clientOpts, transport.WithResponseHook(r.debugResponse))
	}
	r.client = transport.New(clientOpts...)

	return r, nil
}

// Run executes the operation files according to the configuration.
func (r *Runner) Run(ctx context.Context) *exit.Result {
	if r.config.Repeat < 0 {
		return r.runInfiniteLoop(ctx)
	}
	return r.runFiniteLoop(ctx)
}

// runInfiniteLoop prints each iteration summary until ctx is cancelled.
func (r *Runner) runInfiniteLoop(ctx context.Context) *exit.Result {
	for iteration := 1; ; iteration++ {
		select {
		case <-ctx.Done():
			return exit.Errorf("\nInterrupted after %d iterations\n", iteration-1)
		default:
		}

		r.logger.Debug("starting iteration", zap.Int("iteration", iteration))

		summary, err := r.ExecuteFiles(ctx, r.config.OperationFiles)
		if err != nil {
			if ctx.Err() != nil {
				return exit.Errorf("\nInterrupted after %d iterations\n", iteration-1)
			}
			return exit.Errorf("\nError in iteration %d: %v\n", iteration, err)
		}

		if err := summary.Format(r.format, r.out); err != nil {
			return exit.Errorf("Error formatting results: %v\n", err)
		}
	}
}

// runFiniteLoop runs Repeat+1 iterations and prints the aggregated summary.
func (r *Runner) runFiniteLoop(ctx context.Context) *exit.Result {
	totalIterations := r.config.Repeat + 1
	summaries := make([]*output.Summary, 0, totalIterations)

	for i := 1; i <= totalIterations; i++ {
		select {
		case <-ctx.Done():
			return exit.Errorf("\nInterrupted after %d of %d iterations\n", i-1, totalIterations)
		default:
		}

		if totalIterations > 1 {
			r.logger.Debug("starting iteration", zap.Int("iteration", i), zap.Int("total", totalIterations))
		}

		summary, err := r.ExecuteFiles(ctx, r.config.OperationFiles)
		if err != nil {
			return exit.Errorf("\nError in iteration %d: %v\n", i, err)
		}
		summaries = append(summaries, summary)
	}

	if err := output.FormatAggregated(r.format, r.out, summaries); err != nil {
		return exit.Errorf("Error formatting results: %v\n", err)
	}

	return exitResult(summaries)
}

// exitResult maps the run outcome to a process exit code.
func exitResult(summaries []*output.Summary) *exit.Result {
	graphQLErrors := false
	for _, s := range summaries {
		if s.Failed() > 0 {
			return exit.Error("")
		}
		if s.WithGraphQLErrors() > 0 {
			graphQLErrors = true
		}
	}
	if graphQLErrors {
		return exit.GraphQLErrors("")
	}
	return exit.Success("")
}

// ExecuteFiles executes every operation of every file once. Operation
// failures are recorded in the summary; an unreadable file or a cancelled
// context stops the run.
func (r *Runner) ExecuteFiles(ctx context.Context, files []string) (*output.Summary, error) {
	s := &output.Summary{}
	overallStart := clock.Now()

	for _, filename := range files {
		select {
		case <-ctx.Done():
			return s, ctx.Err()
		default:
		}

		operations, err := operation.ParseFile(filename)
		if err != nil {
			return s, err
		}

		for _, op := range operations {
			if err := ctx.Err(); err != nil {
				return s, err
			}
			s.Add(r.executeOperation(ctx, filename, op))
		}
	}

	s.Duration = clock.Since(overallStart)
	return s, nil
}

// headersFromConfig flattens command line headers in a stable order.
func headersFromConfig(h http.Header) operation.Headers {
	var headers operation.Headers
	for _, name := range slices.Sorted(maps.Keys(h)) {
		for _, value := range h[name] {
			headers = append(headers, operation.Header{Name: name, Value: value})
		}
	}
	return headers
}

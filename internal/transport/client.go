// Package transport executes GraphQL requests over HTTP and exposes the
// response as a stream of cumulative results. Plain JSON responses produce a
// single result; multipart/mixed responses produce one snapshot per payload.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jacoelho/gqlstream/internal/clock"
	"github.com/jacoelho/gqlstream/internal/graphql"
	"github.com/jacoelho/gqlstream/internal/metrics"
	"github.com/jacoelho/gqlstream/internal/multipart"
	"github.com/jacoelho/gqlstream/internal/ratelimit"
	"github.com/jacoelho/gqlstream/internal/stream"
)

const (
	// RequestIDHeader is logged with every request event when present.
	RequestIDHeader = "X-Request-Id"

	maxErrorBody = 64 << 10
)

type Client struct {
	httpClient  *http.Client
	logger      *zap.Logger
	metrics     *metrics.Metrics
	limiter     *ratelimit.Limiter
	maxBuffered int
	onResponse  func(*http.Response)
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithRateLimit delays each request until the limiter allows it.
func WithRateLimit(limiter *ratelimit.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithMaxBuffered bounds the snapshots each stream keeps for a slow consumer.
// See stream.WithMaxBuffered.
func WithMaxBuffered(n int) Option {
	return func(c *Client) {
		c.maxBuffered = n
	}
}

// WithResponseHook is called with every response before its body is read.
// The hook must not consume the body.
func WithResponseHook(fn func(*http.Response)) Option {
	return func(c *Client) {
		c.onResponse = fn
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute sends req and returns immediately. The response is read by a single
// background producer; closing the returned stream aborts the request.
func (c *Client) Execute(ctx context.Context, req *http.Request) *stream.Stream {
	ctx, cancel := context.WithCancel(ctx)

	s := stream.New(
		stream.WithMaxBuffered(c.maxBuffered),
		stream.WithOnDrop(c.metrics.SnapshotDropped),
		stream.WithCancel(cancel),
	)

	go c.produce(ctx, cancel, req.WithContext(ctx), s)

	return s
}

// Do executes req and waits for the final result.
func (c *Client) Do(ctx context.Context, req *http.Request) (graphql.Result, error) {
	s := c.Execute(ctx, req)
	defer s.Close()
	return s.Wait(ctx)
}

// producer carries the per-request state of one Execute call.
type producer struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	out     stream.Emitter
	start   time.Time
	emitted int
}

func (p *producer) emit(snapshot graphql.Result) {
	if p.emitted == 0 {
		p.metrics.FirstPayload(clock.Since(p.start))
	}
	p.emitted++
	p.out.Emit(snapshot)
}

func (c *Client) produce(ctx context.Context, cancel context.CancelFunc, req *http.Request, s *stream.Stream) {
	defer cancel()

	p := &producer{
		logger: c.logger.With(
			zap.String("method", req.Method),
			zap.String("url", req.URL.Redacted()),
			zap.String("request_id", req.Header.Get(RequestIDHeader)),
		),
		metrics: c.metrics,
		out:     s,
	}

	if err := c.limiter.Wait(ctx); err != nil {
		p.logger.Debug("request not sent", zap.Error(err))
		c.metrics.Finished(metrics.OutcomeInterrupted, 0)
		s.Fail(err)
		return
	}

	p.start = clock.Now()
	p.logger.Debug("sending request")

	final, err := c.exchange(req, p)
	elapsed := clock.Since(p.start)

	var statusErr *HTTPStatusError
	switch {
	case err == nil:
		p.logger.Debug("stream finished", zap.Int("snapshots", p.emitted), zap.Duration("elapsed", elapsed))
		c.metrics.Finished(metrics.OutcomeFinished, elapsed)
		s.Finish(final)
	case errors.As(err, &statusErr):
		p.logger.Debug("request rejected", zap.Int("status", statusErr.StatusCode), zap.Duration("elapsed", elapsed))
		c.metrics.Finished(metrics.OutcomeHTTPError, elapsed)
		result := statusErr.Result()
		p.emit(result)
		s.Finish(result)
	default:
		outcome := metrics.OutcomeFailed
		if ctx.Err() != nil {
			outcome = metrics.OutcomeInterrupted
		}
		p.logger.Debug("stream failed", zap.String("outcome", outcome), zap.Int("snapshots", p.emitted), zap.Error(err))
		c.metrics.Finished(outcome, elapsed)
		s.Fail(err)
	}
}

func (c *Client) exchange(req *http.Request, p *producer) (graphql.Result, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return graphql.Result{}, &NetworkError{Op: "send", Err: err}
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	p.logger.Debug("response received",
		zap.Int("status", resp.StatusCode),
		zap.String("content_type", contentType),
	)

	if c.onResponse != nil {
		c.onResponse(resp)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return graphql.Result{}, statusError(resp)
	}

	if isMultipart(contentType) {
		return p.readMultipart(resp.Body, contentType)
	}
	return p.readJSON(resp.Body)
}

func statusError(resp *http.Response) *HTTPStatusError {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil && len(body) == 0 {
		body = []byte(err.Error())
	}

	status := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" ")
	if status == "" || status == resp.Status {
		status = http.StatusText(resp.StatusCode)
	}

	return &HTTPStatusError{
		StatusCode: resp.StatusCode,
		Status:     status,
		Body:       strings.TrimSpace(string(body)),
	}
}

func isMultipart(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "multipart/mixed")
	}
	return mediaType == "multipart/mixed"
}

func (p *producer) readJSON(body io.Reader) (graphql.Result, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return graphql.Result{}, &NetworkError{Op: "read", Err: err}
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return graphql.Result{}, ErrEmptyResponse
	}

	result, err := graphql.DecodeString(string(raw))
	if err != nil {
		return graphql.Result{}, fmt.Errorf("decode response: %w", err)
	}

	p.metrics.PayloadMerged()
	p.emit(result)
	return result, nil
}

func (p *producer) readMultipart(body io.Reader, contentType string) (graphql.Result, error) {
	decoder := multipart.NewDecoder(body)
	defer decoder.Close()

	parts := multipart.NewSplitter(decoder, multipart.Delimiter(contentType))

	var merger graphql.Merger
	for {
		part, err := parts.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return graphql.Result{}, &NetworkError{Op: "read", Err: err}
		}

		payload, err := multipart.ParsePart(part)
		if errors.Is(err, multipart.ErrNoBody) {
			continue
		}
		if err != nil {
			if merger.Merged() == 0 {
				return graphql.Result{}, err
			}
			p.logger.Debug("ignoring malformed part", zap.Int("merged", merger.Merged()), zap.Error(err))
			p.metrics.MalformedPart()
			continue
		}

		snapshot, err := merger.Merge(payload)
		if err != nil {
			return graphql.Result{}, err
		}
		p.metrics.PayloadMerged()
		p.logger.Debug("payload merged",
			zap.Int("index", merger.Merged()-1),
			zap.Int("patches", len(payload.Incremental)),
			zap.Bool("last", snapshot.Last()),
		)
		p.emit(snapshot)

		if snapshot.Last() {
			return merger.Result(), nil
		}
	}

	if merger.Merged() == 0 {
		return graphql.Result{}, ErrEmptyResponse
	}

	if snapshot, ok := merger.Complete(); ok {
		p.logger.Debug("stream ended without hasNext false")
		p.emit(snapshot)
	}
	return merger.Result(), nil
}

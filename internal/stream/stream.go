// Package stream provides Stream, the value handed to callers of an
// incremental GraphQL request. It can be iterated for every snapshot and
// awaited for the final result; both views are fed by a single producer.
package stream

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"

	"github.com/jacoelho/gqlstream/internal/graphql"
)

// State is the producer status as seen by iterating consumers.
type State int

const (
	Pending State = iota
	Streaming
	Finished
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Streaming:
		return "streaming"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Emitter is the producer side of a Stream.
type Emitter interface {
	Emit(graphql.Result)
	Finish(graphql.Result)
	Fail(error)
}

type reply struct {
	result graphql.Result
	err    error
}

// Stream is safe for concurrent use by one producer and any number of consumers.
//
// Snapshots are buffered until pulled. With the default unbounded buffer a
// consumer that never calls Next keeps every snapshot alive until the stream
// is dropped; WithMaxBuffered bounds that by discarding the oldest snapshot.
type Stream struct {
	mu          sync.Mutex
	state       State
	buffered    []graphql.Result
	waiters     []chan reply
	err         error
	maxBuffered int
	onDrop      func()
	cancel      context.CancelFunc

	done     chan struct{}
	final    graphql.Result
	finalErr error
}

type Option func(*Stream)

// WithMaxBuffered bounds the number of snapshots held for slow consumers.
// Zero means unbounded.
func WithMaxBuffered(n int) Option {
	return func(s *Stream) {
		s.maxBuffered = max(n, 0)
	}
}

// WithOnDrop registers a callback invoked for every discarded snapshot.
func WithOnDrop(fn func()) Option {
	return func(s *Stream) {
		s.onDrop = fn
	}
}

// WithCancel registers the function that aborts the producer when a consumer closes the stream.
func WithCancel(cancel context.CancelFunc) Option {
	return func(s *Stream) {
		s.cancel = cancel
	}
}

func New(opts ...Option) *Stream {
	s := &Stream{
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Next returns the next snapshot. It returns io.EOF once the stream is
// finished, and the producer error exactly once if it failed; calls after that
// return io.EOF. Cancelling ctx abandons only this call.
func (s *Stream) Next(ctx context.Context) (graphql.Result, error) {
	s.mu.Lock()
	if len(s.buffered) > 0 {
		result := s.buffered[0]
		s.buffered[0] = graphql.Result{}
		s.buffered = s.buffered[1:]
		s.mu.Unlock()
		return result, nil
	}

	switch s.state {
	case Failed:
		err := s.err
		s.err = nil
		s.mu.Unlock()
		if err != nil {
			return graphql.Result{}, err
		}
		return graphql.Result{}, io.EOF
	case Finished:
		s.mu.Unlock()
		return graphql.Result{}, io.EOF
	}

	waiter := make(chan reply, 1)
	s.waiters = append(s.waiters, waiter)
	s.mu.Unlock()

	select {
	case r := <-waiter:
		return r.result, r.err
	case <-ctx.Done():
		s.mu.Lock()
		removed := s.removeWaiter(waiter)
		s.mu.Unlock()
		if !removed {
			// The producer answered while we were giving up; keep its reply.
			r := <-waiter
			return r.result, r.err
		}
		return graphql.Result{}, ctx.Err()
	}
}

// Wait blocks until the producer terminates and returns the final cumulative
// result without the streaming fields, or the producer error.
func (s *Stream) Wait(ctx context.Context) (graphql.Result, error) {
	select {
	case <-s.done:
		return s.final, s.finalErr
	case <-ctx.Done():
		return graphql.Result{}, ctx.Err()
	}
}

// Done is closed when the producer terminates.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// All iterates over snapshots until the stream ends. A failure is yielded
// once as the error. Breaking out of the loop closes the stream.
func (s *Stream) All(ctx context.Context) iter.Seq2[graphql.Result, error] {
	return func(yield func(graphql.Result, error) bool) {
		for {
			result, err := s.Next(ctx)
			if err == io.EOF {
				return
			}
			if !yield(result, err) {
				s.Close()
				return
			}
			if err != nil {
				return
			}
		}
	}
}

// Close stops consumption: the stream becomes finished for iteration, pending
// Next calls return io.EOF and the producer is cancelled. Snapshots buffered
// but not yet pulled are discarded; Wait still reports how the producer ended
// and its final result carries every merged field.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.state != Finished {
		s.state = Finished
		s.buffered = nil
		s.err = nil
	}
	waiters := s.waiters
	s.waiters = nil
	cancel := s.cancel
	s.mu.Unlock()

	for _, waiter := range waiters {
		waiter <- reply{err: io.EOF}
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

// Throw fails the oldest pending Next call with err and returns err.
// The producer is not affected.
func (s *Stream) Throw(err error) error {
	if err == nil {
		err = errors.New("stream: nil error thrown")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.waiters) > 0 {
		waiter := s.waiters[0]
		s.waiters = s.waiters[1:]
		waiter <- reply{err: err}
	}
	return err
}

// Emit delivers a snapshot to the oldest waiting consumer or buffers it.
func (s *Stream) Emit(result graphql.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Finished || s.state == Failed {
		return
	}
	s.state = Streaming

	if len(s.waiters) > 0 {
		waiter := s.waiters[0]
		s.waiters = s.waiters[1:]
		waiter <- reply{result: result}
		return
	}

	if s.maxBuffered > 0 && len(s.buffered) >= s.maxBuffered {
		s.buffered[0] = graphql.Result{}
		s.buffered = s.buffered[1:]
		if s.onDrop != nil {
			s.onDrop()
		}
	}
	s.buffered = append(s.buffered, result)
}

// Finish records the final cumulative result and ends the stream.
// Only the first terminal call (Finish or Fail) has an effect.
func (s *Stream) Finish(result graphql.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.terminate(result.Final(), nil) {
		return
	}

	if s.state != Finished {
		s.state = Finished
	}
	for _, waiter := range s.waiters {
		waiter <- reply{err: io.EOF}
	}
	s.waiters = nil
}

// Fail ends the stream with err. The oldest waiting consumer receives err;
// without one it is kept for the next Next call. Other waiters see io.EOF.
func (s *Stream) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.terminate(graphql.Result{}, err) {
		return
	}

	if s.state == Finished {
		return
	}
	s.state = Failed

	if len(s.waiters) == 0 {
		s.err = err
		return
	}

	s.waiters[0] <- reply{err: err}
	for _, waiter := range s.waiters[1:] {
		waiter <- reply{err: io.EOF}
	}
	s.waiters = nil
}

func (s *Stream) terminate(final graphql.Result, err error) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	s.final = final
	s.finalErr = err
	close(s.done)
	return true
}

func (s *Stream) removeWaiter(waiter chan reply) bool {
	for i, w := range s.waiters {
		if w == waiter {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return true
		}
	}
	return false
}

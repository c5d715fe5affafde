package runner

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jacoelho/gqlstream/internal/clock"
	"github.com/jacoelho/gqlstream/internal/graphql"
	"github.com/jacoelho/gqlstream/internal/operation"
	"github.com/jacoelho/gqlstream/internal/output"
)

// executeOperation sends op and consumes its stream twice: one goroutine
// prints every snapshot while another waits for the final result.
func (r *Runner) executeOperation(ctx context.Context, filename string, op operation.Operation) (result output.OperationResult) {
	name := op.Label()
	result = output.OperationResult{File: filename, Operation: name}
	start := clock.Now()
	defer func() {
		result.Duration = clock.Since(start)
	}()

	req, err := operation.NewRequest(ctx, op,
		operation.WithVariables(r.variables),
		operation.WithHeaders(r.headers),
	)
	if err != nil {
		result.Err = err
		return result
	}

	if r.config.Debug {
		r.redactor.AddHeaders(req.Header)
		r.debugRequest(req)
	}

	r.logger.Debug("executing operation",
		zap.String("file", filename),
		zap.String("operation", name),
		zap.Bool("incremental", operation.IsIncremental(op.Query)),
	)

	s := r.client.Execute(ctx, req)
	defer s.Close()

	var final graphql.Result
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for snapshot, err := range s.All(gctx) {
			if err != nil {
				// Reported by Wait.
				return nil
			}
			result.Snapshots++
			if r.config.FinalOnly {
				continue
			}
			if err := r.printer.Print(output.Entry{Operation: name, Sequence: result.Snapshots, Result: snapshot}); err != nil {
				return err
			}
		}
		return nil
	})

	g.Go(func() error {
		var err error
		final, err = s.Wait(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		result.Err = err
		r.logger.Debug("operation failed", zap.String("operation", name), zap.Error(err))
		return result
	}

	result.GraphQLErrors = len(final.Errors)
	if err := r.printer.Print(output.Entry{Operation: name, Result: final}); err != nil {
		result.Err = err
	}
	return result
}

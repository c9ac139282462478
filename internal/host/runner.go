package host

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/chrissnell/curle/internal/mesh"
	"github.com/chrissnell/curle/internal/parallel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runner steps a Case from a start to an end time
type Runner struct {
	host    *Case
	start   float64
	end     float64
	objects []FunctionObject
	logger  *zap.SugaredLogger
}

// NewRunner returns a runner over [start, end] with the case's time step
func NewRunner(host *Case, start, end float64, objects []FunctionObject, logger *zap.SugaredLogger) *Runner {
	return &Runner{
		host:    host,
		start:   start,
		end:     end,
		objects: objects,
		logger:  logger,
	}
}

// Steps returns the number of time steps after the start time
func (r *Runner) Steps() int {
	return int(math.Round((r.end - r.start) / r.host.DeltaT()))
}

// Run initialises every function object, evaluates them at the start time and
// after each time step, and closes them. The first error stops the loop.
func (r *Runner) Run(ctx context.Context) (err error) {
	defer func() {
		var errs []error
		for _, o := range r.objects {
			if cerr := o.Close(); cerr != nil {
				errs = append(errs, fmt.Errorf("%s: %w", o.Name(), cerr))
			}
		}
		err = errors.Join(append([]error{err}, errs...)...)
	}()

	r.host.Advance(r.start)
	for _, o := range r.objects {
		if err := o.Initialise(ctx); err != nil {
			return err
		}
	}

	steps := r.Steps()
	began := time.Now()
	r.logger.Infof("running %d step(s) from t=%g to t=%g with %d function object(s)", steps, r.start, r.end, len(r.objects))

	for i := 0; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		t := r.start + float64(i)*r.host.DeltaT()
		r.host.Advance(t)
		r.logger.Debugf("time = %g", t)

		for _, o := range r.objects {
			if err := o.Calculate(ctx); err != nil {
				return err
			}
			if err := o.Execute(ctx); err != nil {
				return err
			}
			if err := o.Write(ctx); err != nil {
				return err
			}
		}
	}

	r.logger.Infof("finished %d step(s) in %v", steps, time.Since(began).Round(time.Millisecond))
	return nil
}

// Builder creates the function objects of one rank. The communicator must be
// handed to every object that reduces across ranks.
type Builder func(rank int, host *Case, comm parallel.Communicator) ([]FunctionObject, error)

// RunParallel decomposes the case into n partitions and runs one Runner per
// partition concurrently. An error on any rank aborts the others.
func RunParallel(ctx context.Context, base *Case, n int, start, end float64, build Builder, logger *zap.SugaredLogger) error {
	if n <= 1 {
		objects, err := build(0, base, parallel.Serial{})
		if err != nil {
			return err
		}
		return NewRunner(base, start, end, objects, logger).Run(ctx)
	}

	parts, err := mesh.Decompose(base.Mesh(), n)
	if err != nil {
		return err
	}
	logger.Infof("decomposed %d cells into %d partitions", base.Mesh().NCells(), n)

	group := parallel.NewGroup(n)
	eg, ctx := errgroup.WithContext(ctx)
	for rank := range parts {
		rank := rank
		h := base.Partition(parts[rank])
		comm := group.Rank(rank)

		eg.Go(func() error {
			objects, err := build(rank, h, comm)
			if err == nil {
				err = NewRunner(h, start, end, objects, logger.With("rank", rank)).Run(ctx)
			}
			if err != nil {
				group.Abort(err)
				return fmt.Errorf("rank %d: %w", rank, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

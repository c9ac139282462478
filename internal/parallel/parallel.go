// Package parallel provides the collective reductions that combine partial
// results from the partitions of a decomposed mesh.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// Op is a reduction operator
type Op int

const (
	Sum Op = iota
	Min
)

func (o Op) String() string {
	switch o {
	case Sum:
		return "sum"
	case Min:
		return "min"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// ErrAborted is returned by AllReduce once any rank of a group has aborted
var ErrAborted = errors.New("collective aborted")

// Communicator is one rank's handle on a collective. AllReduce blocks until
// every rank has contributed and then overwrites values with the reduced
// result on all ranks.
type Communicator interface {
	Rank() int
	Size() int
	AllReduce(ctx context.Context, op Op, values []float64) error
}

// Master reports whether c is rank 0
func Master(c Communicator) bool {
	return c.Rank() == 0
}

// Serial is the single-rank communicator. Its reductions are identities.
type Serial struct{}

func (Serial) Rank() int { return 0 }
func (Serial) Size() int { return 1 }

func (Serial) AllReduce(ctx context.Context, _ Op, _ []float64) error {
	return ctx.Err()
}

// Group is a set of in-process ranks sharing a barrier
type Group struct {
	mu   sync.Mutex
	cond *sync.Cond
	size int

	arrived    int
	generation uint64
	op         Op
	acc        []float64
	result     []float64
	err        error
}

// NewGroup creates a collective for size ranks
func NewGroup(size int) *Group {
	g := &Group{size: size}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Size returns the number of ranks in the group
func (g *Group) Size() int {
	return g.size
}

// Rank returns the communicator of rank i
func (g *Group) Rank(i int) Communicator {
	return &member{group: g, rank: i}
}

// Abort fails every pending and future reduction with err
func (g *Group) Abort(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err == nil {
		if err == nil {
			err = ErrAborted
		}
		g.err = fmt.Errorf("%w: %w", ErrAborted, err)
	}
	g.cond.Broadcast()
}

type member struct {
	group *Group
	rank  int
}

func (m *member) Rank() int { return m.rank }
func (m *member) Size() int { return m.group.size }

func (m *member) AllReduce(ctx context.Context, op Op, values []float64) error {
	g := m.group

	stop := context.AfterFunc(ctx, func() {
		g.Abort(context.Cause(ctx))
	})
	defer stop()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.err != nil {
		return g.err
	}

	if g.arrived == 0 {
		g.op = op
		g.acc = append([]float64(nil), values...)
	} else {
		if op != g.op || len(values) != len(g.acc) {
			err := fmt.Errorf("rank %d: %s of %d values does not match %s of %d values", m.rank, op, len(values), g.op, len(g.acc))
			g.err = fmt.Errorf("%w: %w", ErrAborted, err)
			g.cond.Broadcast()
			return g.err
		}
		combine(op, g.acc, values)
	}
	g.arrived++

	if g.arrived == g.size {
		g.result = g.acc
		g.acc = nil
		g.arrived = 0
		g.generation++
		g.cond.Broadcast()
		copy(values, g.result)
		return nil
	}

	gen := g.generation
	for gen == g.generation && g.err == nil {
		g.cond.Wait()
	}
	if gen == g.generation {
		return g.err
	}
	copy(values, g.result)
	return nil
}

func combine(op Op, dst, src []float64) {
	switch op {
	case Sum:
		floats.Add(dst, src)
	case Min:
		for i := range dst {
			dst[i] = math.Min(dst[i], src[i])
		}
	}
}

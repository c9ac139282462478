package parallel

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestSerial(t *testing.T) {
	var c Communicator = Serial{}
	values := []float64{1, 2, 3}
	if err := c.AllReduce(context.Background(), Sum, values); err != nil {
		t.Fatalf("AllReduce: %v", err)
	}
	if values[0] != 1 || values[2] != 3 {
		t.Errorf("serial reduction must not change values, got %v", values)
	}
	if !Master(c) || c.Size() != 1 {
		t.Error("serial communicator should be a single master rank")
	}
}

func TestGroupAllReduce(t *testing.T) {
	const size = 4
	const rounds = 25
	g := NewGroup(size)

	results := make([][]float64, size)
	eg, ctx := errgroup.WithContext(context.Background())
	for rank := 0; rank < size; rank++ {
		c := g.Rank(rank)
		eg.Go(func() error {
			var last []float64
			for round := 0; round < rounds; round++ {
				sum := []float64{float64(c.Rank()), float64(round)}
				if err := c.AllReduce(ctx, Sum, sum); err != nil {
					return err
				}
				if sum[0] != 6 || sum[1] != float64(size*round) {
					t.Errorf("rank %d round %d: unexpected sum %v", c.Rank(), round, sum)
				}

				lo := []float64{float64(c.Rank() + round)}
				if err := c.AllReduce(ctx, Min, lo); err != nil {
					return err
				}
				if lo[0] != float64(round) {
					t.Errorf("rank %d round %d: unexpected min %v", c.Rank(), round, lo)
				}
				last = sum
			}
			results[c.Rank()] = last
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatalf("group failed: %v", err)
	}

	for rank, r := range results {
		if len(r) != 2 {
			t.Errorf("rank %d has no result", rank)
		}
	}
}

func TestGroupMismatchAborts(t *testing.T) {
	g := NewGroup(2)
	errs := make(chan error, 2)

	go func() { errs <- g.Rank(0).AllReduce(context.Background(), Sum, []float64{1, 2}) }()
	go func() { errs <- g.Rank(1).AllReduce(context.Background(), Sum, []float64{1}) }()

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			if !errors.Is(err, ErrAborted) {
				t.Errorf("expected ErrAborted, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("reduction did not abort")
		}
	}
}

func TestGroupContextCancel(t *testing.T) {
	g := NewGroup(2)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- g.Rank(0).AllReduce(ctx, Sum, []float64{1}) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrAborted) || !errors.Is(err, context.Canceled) {
			t.Errorf("expected aborted by cancellation, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("waiting rank was not released")
	}

	// the group stays aborted
	if err := g.Rank(1).AllReduce(context.Background(), Sum, []float64{1}); !errors.Is(err, ErrAborted) {
		t.Errorf("expected ErrAborted after abort, got %v", err)
	}
}

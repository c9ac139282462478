package memory

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/chrissnell/curle/internal/storage"
)

var pressureStream = storage.Stream{Name: "Curle1_mic", Columns: []storage.Column{{Name: "p'", Unit: "Pa"}}}

func TestRingKeepsLatest(t *testing.T) {
	s := New(3)
	chans, err := s.Open(context.Background(), []storage.Stream{pressureStream})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		if err := chans[0].Append(context.Background(), storage.Record{Time: float64(i), Values: []float64{float64(i * 10)}}); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		limit int
		want  []float64
	}{
		{0, []float64{2, 3, 4}},
		{2, []float64{3, 4}},
		{10, []float64{2, 3, 4}},
	}
	for _, tt := range tests {
		recs, err := s.Records("Curle1_mic", tt.limit)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != len(tt.want) {
			t.Fatalf("limit %d: expected %d records, got %d", tt.limit, len(tt.want), len(recs))
		}
		for i, r := range recs {
			if r.Time != tt.want[i] || r.Values[0] != tt.want[i]*10 {
				t.Errorf("limit %d: record %d is %+v, want time %g", tt.limit, i, r, tt.want[i])
			}
		}
	}

	if n := s.Total("Curle1_mic"); n != 5 {
		t.Errorf("expected 5 appended records, got %d", n)
	}
}

func TestAppendCopiesValues(t *testing.T) {
	s := New(0)
	chans, _ := s.Open(context.Background(), []storage.Stream{pressureStream})

	values := []float64{1}
	chans[0].Append(context.Background(), storage.Record{Values: values})
	values[0] = 99

	recs, _ := s.Records("Curle1_mic", 0)
	if recs[0].Values[0] != 1 {
		t.Errorf("stored record aliases the caller's slice: %v", recs[0].Values)
	}
}

func TestOpenAndAppendErrors(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	if _, err := s.Open(ctx, []storage.Stream{{Name: "a/b", Columns: pressureStream.Columns}}); err == nil {
		t.Error("expected error for a stream name with a path separator")
	}

	chans, err := s.Open(ctx, []storage.Stream{pressureStream})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Open(ctx, []storage.Stream{pressureStream}); err == nil {
		t.Error("expected error opening a stream twice")
	}

	if err := chans[0].Append(ctx, storage.Record{Values: []float64{1, 2}}); err == nil {
		t.Error("expected error for a record with the wrong number of values")
	}

	chans[0].Close()
	if err := chans[0].Append(ctx, storage.Record{Values: []float64{1}}); err == nil {
		t.Error("expected error appending to a closed channel")
	}

	if _, err := s.Records("missing", 0); !errors.Is(err, ErrUnknownStream) {
		t.Errorf("expected ErrUnknownStream, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	s := New(0)
	chans, _ := s.Open(context.Background(), []storage.Stream{pressureStream})
	for i, v := range []float64{1, -1, 1, -1} {
		chans[0].Append(context.Background(), storage.Record{Time: float64(i), Values: []float64{v}})
	}

	sum, err := s.Summarize("Curle1_mic", 0)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Count != 4 || sum.Column != "p' [Pa]" {
		t.Errorf("unexpected summary header %+v", sum)
	}
	if sum.Mean != 0 || sum.Min != -1 || sum.Max != 1 || sum.RMS != 1 {
		t.Errorf("unexpected statistics %+v", sum)
	}
	if want := 20 * math.Log10(1/20e-6); math.Abs(sum.SPL-want) > 1e-9 {
		t.Errorf("expected SPL %g dB, got %g", want, sum.SPL)
	}
	// sample standard deviation of four alternating unit values
	if want := math.Sqrt(4.0 / 3); math.Abs(sum.StdDev-want) > 1e-12 {
		t.Errorf("expected std dev %g, got %g", want, sum.StdDev)
	}

	if _, err := s.Summarize("Curle1_mic", 1); err == nil {
		t.Error("expected error for a missing column")
	}

	if got := s.Streams(); len(got) != 1 || got[0].Name != "Curle1_mic" {
		t.Errorf("unexpected streams %v", got)
	}
}

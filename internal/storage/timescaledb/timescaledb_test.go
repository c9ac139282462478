package timescaledb

import (
	"context"
	"os"
	"testing"

	"github.com/chrissnell/curle/internal/storage"
)

func TestTableNames(t *testing.T) {
	if got := (Record{}).TableName(); got != "acoustic_records" {
		t.Errorf("expected acoustic_records, got %s", got)
	}
	if got := (StreamRow{}).TableName(); got != "acoustic_streams" {
		t.Errorf("expected acoustic_streams, got %s", got)
	}
}

// TestTimescaleDBRoundTrip needs a live database, e.g.
// CURLE_TIMESCALEDB_URL="host=localhost user=postgres dbname=curle sslmode=disable"
func TestTimescaleDBRoundTrip(t *testing.T) {
	dsn := os.Getenv("CURLE_TIMESCALEDB_URL")
	if dsn == "" {
		t.Skip("CURLE_TIMESCALEDB_URL not set")
	}

	ctx := context.Background()
	s, err := New(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.CheckHealth(ctx); err != nil {
		t.Fatal(err)
	}

	stream := storage.Stream{Name: "Curle1_mic", Columns: []storage.Column{{Name: "p'", Unit: "Pa"}}}
	chans, err := s.Open(ctx, []storage.Stream{stream})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := chans[0].Append(ctx, storage.Record{Time: float64(i) * 1e-3, Values: []float64{float64(i)}}); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := s.Records(ctx, s.RunID(), stream.Name)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 || recs[2].Values[0] != 2 {
		t.Errorf("unexpected records %+v", recs)
	}
}

package restserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/chrissnell/curle/internal/log"
	"github.com/chrissnell/curle/internal/metrics"
	"github.com/chrissnell/curle/internal/storage"
	"github.com/chrissnell/curle/internal/storage/memory"
	"github.com/chrissnell/curle/pkg/config"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

func newTestController(t *testing.T) (*Controller, *storage.HealthManager) {
	t.Helper()

	store := memory.New(0)
	chans, err := store.Open(context.Background(), []storage.Stream{
		{Name: "Curle1_microphone-A", Columns: []storage.Column{{Name: "p'", Unit: "Pa"}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range []float64{1, -1, 1, -1, 1} {
		chans[0].Append(context.Background(), storage.Record{Time: float64(i) * 1e-3, Values: []float64{p}})
	}

	m := metrics.New()
	m.ObserveStep("Curle1", 0)

	health := storage.NewHealthManager()
	health.MarkHealthy("memory", "backend started")

	var wg sync.WaitGroup
	c, err := NewController(context.Background(), &wg, config.RESTServerData{}, store, health, m, zap.NewNop().Sugar())
	if err != nil {
		t.Fatal(err)
	}
	return c, health
}

func get(t *testing.T, h http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestGetStreams(t *testing.T) {
	c, _ := newTestController(t)

	rec := get(t, c.Handler(), "/api/streams")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp StreamsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Streams) != 1 || resp.Streams[0].Name != "Curle1_microphone-A" || resp.Streams[0].Columns[0].Unit != "Pa" {
		t.Errorf("unexpected streams %+v", resp.Streams)
	}
}

func TestGetRecords(t *testing.T) {
	c, _ := newTestController(t)

	tests := []struct {
		name   string
		url    string
		status int
		count  int
	}{
		{"default limit", "/api/streams/Curle1_microphone-A/records", http.StatusOK, 5},
		{"limited", "/api/streams/Curle1_microphone-A/records?limit=2", http.StatusOK, 2},
		{"bad limit", "/api/streams/Curle1_microphone-A/records?limit=-3", http.StatusBadRequest, 0},
		{"unknown stream", "/api/streams/nope/records", http.StatusNotFound, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, c.Handler(), tt.url)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body)
			}
			if tt.status != http.StatusOK {
				return
			}

			var resp RecordsResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if len(resp.Records) != tt.count {
				t.Errorf("expected %d records, got %d", tt.count, len(resp.Records))
			}
			if resp.Header[0] != "Time [s]" || resp.Header[1] != "p' [Pa]" {
				t.Errorf("unexpected header %v", resp.Header)
			}
			if last := resp.Records[len(resp.Records)-1]; last.Time != 4e-3 {
				t.Errorf("expected the newest record last, got %+v", last)
			}
		})
	}
}

func TestGetRecordsMsgpack(t *testing.T) {
	c, _ := newTestController(t)

	rec := get(t, c.Handler(), "/api/streams/Curle1_microphone-A/records?limit=1&format=msgpack")
	if rec.Header().Get("Content-Type") != "application/x-msgpack" {
		t.Fatalf("expected msgpack, got %s", rec.Header().Get("Content-Type"))
	}

	dec := msgpack.NewDecoder(rec.Body)
	dec.SetCustomStructTag("json")
	var resp RecordsResponse
	if err := dec.Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Records) != 1 || resp.Records[0].Values[0] != 1 {
		t.Errorf("unexpected records %+v", resp.Records)
	}
}

func TestGetSummary(t *testing.T) {
	c, _ := newTestController(t)

	rec := get(t, c.Handler(), "/api/streams/Curle1_microphone-A/summary")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var s memory.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatal(err)
	}
	if s.Count != 5 || s.RMS != 1 || s.Max != 1 || s.Min != -1 {
		t.Errorf("unexpected summary %+v", s)
	}

	if rec := get(t, c.Handler(), "/api/streams/nope/summary"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown stream, got %d", rec.Code)
	}
	if rec := get(t, c.Handler(), "/api/streams/Curle1_microphone-A/summary?column=3"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a missing column, got %d", rec.Code)
	}
}

func TestGetHealth(t *testing.T) {
	c, health := newTestController(t)

	if rec := get(t, c.Handler(), "/api/health"); rec.Code != http.StatusOK {
		t.Errorf("expected 200 while healthy, got %d", rec.Code)
	}

	health.MarkUnhealthy("sqlite", "append failed", nil)
	rec := get(t, c.Handler(), "/api/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 with an unhealthy backend, got %d", rec.Code)
	}
	var resp map[string]storage.Health
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["sqlite"].Status != storage.StatusUnhealthy || resp["memory"].Status != storage.StatusHealthy {
		t.Errorf("unexpected health %+v", resp)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	c, _ := newTestController(t)

	rec := get(t, c.Handler(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `curle_steps_total{analysis="Curle1"} 1`) {
		t.Errorf("expected the step counter in the exposition:\n%s", rec.Body)
	}
}

func TestNewControllerNeedsSource(t *testing.T) {
	var wg sync.WaitGroup
	if _, err := NewController(context.Background(), &wg, config.RESTServerData{}, nil, nil, nil, zap.NewNop().Sugar()); err == nil {
		t.Error("expected error without a stream source")
	}
}

func TestGetHTTPLogs(t *testing.T) {
	c, _ := newTestController(t)

	get(t, c.Handler(), "/api/streams")
	get(t, c.Handler(), "/api/streams/nope/records")

	rec := get(t, c.Handler(), "/api/logs/http")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Entries []log.HTTPLogEntry `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Entries) != 2 {
		t.Fatalf("expected 2 logged requests, got %d", len(resp.Entries))
	}
	if e := resp.Entries[1]; e.Path != "/api/streams/nope/records" || e.Status != http.StatusNotFound || e.Method != http.MethodGet {
		t.Errorf("unexpected entry %+v", e)
	}
}

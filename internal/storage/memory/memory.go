// Package memory keeps the most recent records of each stream in bounded
// ring buffers so they can be served while a run is in progress.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/chrissnell/curle/internal/storage"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultCapacity is the number of records kept per stream
const DefaultCapacity = 4096

// ReferencePressure is the reference for sound pressure levels in air, Pa
const ReferencePressure = 20e-6

// ErrUnknownStream is returned for a stream that was never opened
var ErrUnknownStream = errors.New("unknown stream")

// Store is a ChannelFactory holding the latest records of every stream
type Store struct {
	mu       sync.RWMutex
	capacity int
	streams  map[string]*ring
	order    []string
}

type ring struct {
	stream  storage.Stream
	records []storage.Record
	next    int
	full    bool
	total   int
}

// New creates a store keeping capacity records per stream
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		streams:  make(map[string]*ring),
	}
}

// Name returns the backend name
func (s *Store) Name() string {
	return "memory"
}

// Close is a no-op; the buffered records stay readable
func (s *Store) Close() error {
	return nil
}

// Open registers the streams and returns their channels
func (s *Store) Open(ctx context.Context, streams []storage.Stream) ([]storage.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range streams {
		if err := st.Validate(); err != nil {
			return nil, err
		}
		if _, ok := s.streams[st.Name]; ok {
			return nil, fmt.Errorf("stream %q is already open", st.Name)
		}
	}

	channels := make([]storage.Channel, 0, len(streams))
	for _, st := range streams {
		s.streams[st.Name] = &ring{stream: st, records: make([]storage.Record, s.capacity)}
		s.order = append(s.order, st.Name)
		channels = append(channels, &channel{store: s, stream: st})
	}
	return channels, nil
}

// Streams returns the open streams in the order they were opened
func (s *Store) Streams() []storage.Stream {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]storage.Stream, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.streams[name].stream)
	}
	return out
}

// Records returns up to limit of the most recent records of a stream,
// oldest first. A limit <= 0 returns everything buffered.
func (s *Store) Records(name string, limit int) ([]storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.streams[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStream, name)
	}
	return r.latest(limit), nil
}

// Total returns the number of records ever appended to a stream
func (s *Store) Total(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.streams[name]; ok {
		return r.total
	}
	return 0
}

func (r *ring) size() int {
	if r.full {
		return len(r.records)
	}
	return r.next
}

func (r *ring) latest(limit int) []storage.Record {
	n := r.size()
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]storage.Record, n)
	for i := 0; i < n; i++ {
		idx := (r.next - n + i + len(r.records)) % len(r.records)
		out[i] = r.records[idx]
	}
	return out
}

func (r *ring) append(rec storage.Record) {
	rec.Values = append([]float64(nil), rec.Values...)
	r.records[r.next] = rec
	r.next = (r.next + 1) % len(r.records)
	if r.next == 0 {
		r.full = true
	}
	r.total++
}

// Summary describes the buffered values of one column
type Summary struct {
	Stream string  `json:"stream"`
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	RMS    float64 `json:"rms"`
	// SPL is the sound pressure level of the RMS value re 20 µPa, in dB
	SPL float64 `json:"spl"`
}

// Summarize computes statistics of the buffered values of one column
func (s *Store) Summarize(name string, column int) (Summary, error) {
	s.mu.RLock()
	r, ok := s.streams[name]
	if !ok {
		s.mu.RUnlock()
		return Summary{}, fmt.Errorf("%w: %q", ErrUnknownStream, name)
	}
	if column < 0 || column >= len(r.stream.Columns) {
		s.mu.RUnlock()
		return Summary{}, fmt.Errorf("stream %q has no column %d", name, column)
	}
	records := r.latest(0)
	label := r.stream.Columns[column].Label()
	s.mu.RUnlock()

	sum := Summary{Stream: name, Column: label, Count: len(records)}
	if len(records) == 0 {
		return sum, nil
	}

	values := make([]float64, len(records))
	squares := make([]float64, len(records))
	for i, rec := range records {
		values[i] = rec.Values[column]
		squares[i] = values[i] * values[i]
	}

	sum.Mean = stat.Mean(values, nil)
	if len(values) > 1 {
		sum.StdDev = stat.StdDev(values, nil)
	}
	sum.Min = floats.Min(values)
	sum.Max = floats.Max(values)
	sum.RMS = math.Sqrt(stat.Mean(squares, nil))
	if sum.RMS > 0 {
		sum.SPL = 20 * math.Log10(sum.RMS/ReferencePressure)
	}
	return sum, nil
}

type channel struct {
	store  *Store
	stream storage.Stream
	closed bool
}

func (c *channel) Append(ctx context.Context, rec storage.Record) error {
	if c.closed {
		return fmt.Errorf("stream %q is closed", c.stream.Name)
	}
	if err := storage.CheckRecord(c.stream, rec); err != nil {
		return err
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.streams[c.stream.Name].append(rec)
	return nil
}

// Close marks the channel closed. The buffered records stay readable.
func (c *channel) Close() error {
	c.closed = true
	return nil
}

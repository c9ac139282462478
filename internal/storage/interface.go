// Package storage defines the append-only output channels acoustic samples
// are written to, and the interfaces every storage backend implements.
package storage

import (
	"context"
	"fmt"
	"strings"
)

// Column describes one value column of a stream
type Column struct {
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// Label returns the column heading, e.g. "p' [Pa]"
func (c Column) Label() string {
	if c.Unit == "" {
		return c.Name
	}
	return fmt.Sprintf("%s [%s]", c.Name, c.Unit)
}

// TimeColumn leads every stream
var TimeColumn = Column{Name: "Time", Unit: "s"}

// Stream is a named append-only table. Every record carries a time followed
// by one value per column.
type Stream struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Header returns the column headings including the leading time column
func (s Stream) Header() []string {
	h := make([]string, 0, len(s.Columns)+1)
	h = append(h, TimeColumn.Label())
	for _, c := range s.Columns {
		h = append(h, c.Label())
	}
	return h
}

// Validate checks that the stream can be created by a backend
func (s Stream) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("stream has no name")
	}
	if strings.ContainsAny(s.Name, `/\`) {
		return fmt.Errorf("stream name %q contains a path separator", s.Name)
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("stream %q has no columns", s.Name)
	}
	return nil
}

// Record is one row of a stream
type Record struct {
	Time   float64   `json:"time"`
	Values []float64 `json:"values"`
}

// Channel is an open stream. Appends are ordered and synchronous: a nil
// error means the record has been handed to the backend.
type Channel interface {
	Append(ctx context.Context, r Record) error
	Close() error
}

// ChannelFactory opens one channel per stream. The returned channels are in
// the order of the streams.
type ChannelFactory interface {
	Open(ctx context.Context, streams []Stream) ([]Channel, error)
}

// CheckRecord reports whether r fits stream s
func CheckRecord(s Stream, r Record) error {
	if len(r.Values) != len(s.Columns) {
		return fmt.Errorf("stream %q: record has %d values for %d columns", s.Name, len(r.Values), len(s.Columns))
	}
	return nil
}

// Backend is a configured storage engine. Close releases the engine itself
// and must be called after every channel it opened has been closed.
type Backend interface {
	ChannelFactory
	Name() string
	Close() error
}

// HealthChecker is implemented by backends that can check their connection
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// Package sqlite stores streams in a SQLite database. Every Store is one run,
// identified by a random UUID, so several runs can share a database file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chrissnell/curle/internal/storage"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS streams (
    run_id TEXT NOT NULL REFERENCES runs(id),
    name TEXT NOT NULL,
    columns TEXT NOT NULL,
    PRIMARY KEY (run_id, name)
);
CREATE TABLE IF NOT EXISTS records (
    run_id TEXT NOT NULL,
    stream TEXT NOT NULL,
    seq INTEGER NOT NULL,
    time REAL NOT NULL,
    column_index INTEGER NOT NULL,
    value REAL NOT NULL,
    PRIMARY KEY (run_id, stream, seq, column_index)
);
`

// Store is a SQLite backend for one run
type Store struct {
	db    *sql.DB
	runID uuid.UUID
}

// New opens, or creates, the database at path and registers a new run
func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite serialises writers anyway
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &Store{db: db, runID: uuid.New()}
	if _, err := db.ExecContext(ctx, `INSERT INTO runs (id, started_at) VALUES (?, ?)`, s.runID.String(), time.Now().UTC()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to register run: %w", err)
	}
	return s, nil
}

// Name returns the backend name
func (s *Store) Name() string {
	return "sqlite"
}

// RunID identifies the rows written by this store
func (s *Store) RunID() uuid.UUID {
	return s.runID
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// CheckHealth pings the database
func (s *Store) CheckHealth(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Open registers the streams for this run
func (s *Store) Open(ctx context.Context, streams []storage.Stream) ([]storage.Channel, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	channels := make([]storage.Channel, 0, len(streams))
	for _, st := range streams {
		if err := st.Validate(); err != nil {
			return nil, err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO streams (run_id, name, columns) VALUES (?, ?, ?)`,
			s.runID.String(), st.Name, strings.Join(st.Header(), "\t"))
		if err != nil {
			return nil, fmt.Errorf("registering stream %q: %w", st.Name, err)
		}
		channels = append(channels, &channel{store: s, stream: st})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return channels, nil
}

// Streams returns the streams of a run in name order
func (s *Store) Streams(ctx context.Context, runID uuid.UUID) ([]storage.Stream, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, columns FROM streams WHERE run_id = ? ORDER BY name`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query streams: %w", err)
	}
	defer rows.Close()

	var streams []storage.Stream
	for rows.Next() {
		var name, header string
		if err := rows.Scan(&name, &header); err != nil {
			return nil, fmt.Errorf("failed to scan stream row: %w", err)
		}
		streams = append(streams, storage.Stream{Name: name, Columns: parseHeader(header)})
	}
	return streams, rows.Err()
}

// Records returns every record of a stream of a run, in append order
func (s *Store) Records(ctx context.Context, runID uuid.UUID, stream string) ([]storage.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, time, column_index, value
		FROM records
		WHERE run_id = ? AND stream = ?
		ORDER BY seq, column_index`, runID.String(), stream)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []storage.Record
	last := int64(-1)
	for rows.Next() {
		var seq int64
		var t, v float64
		var col int
		if err := rows.Scan(&seq, &t, &col, &v); err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		if seq != last {
			records = append(records, storage.Record{Time: t})
			last = seq
		}
		r := &records[len(records)-1]
		r.Values = append(r.Values, v)
	}
	return records, rows.Err()
}

// parseHeader turns "Time [s]\tp' [Pa]" back into value columns
func parseHeader(header string) []storage.Column {
	labels := strings.Split(header, "\t")
	cols := make([]storage.Column, 0, len(labels))
	for _, l := range labels[1:] {
		c := storage.Column{Name: l}
		if i := strings.LastIndex(l, " ["); i >= 0 && strings.HasSuffix(l, "]") {
			c = storage.Column{Name: l[:i], Unit: l[i+2 : len(l)-1]}
		}
		cols = append(cols, c)
	}
	return cols
}

type channel struct {
	mu     sync.Mutex
	store  *Store
	stream storage.Stream
	seq    int64
	closed bool
}

// Append inserts one record in a single transaction
func (c *channel) Append(ctx context.Context, rec storage.Record) error {
	if err := storage.CheckRecord(c.stream, rec); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("stream %q is closed", c.stream.Name)
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (run_id, stream, seq, time, column_index, value) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	run := c.store.runID.String()
	for i, v := range rec.Values {
		if _, err := stmt.ExecContext(ctx, run, c.stream.Name, c.seq, rec.Time, i, v); err != nil {
			return fmt.Errorf("stream %q: %w", c.stream.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("stream %q: %w", c.stream.Name, err)
	}
	c.seq++
	return nil
}

func (c *channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Package msgpack writes each stream as a MessagePack file: the stream
// description followed by one encoded record per append.
package msgpack

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/chrissnell/curle/internal/storage"
	"github.com/vmihailenco/msgpack/v5"
)

// Extension of every stream file
const Extension = ".msgpack"

// Store creates stream files under a directory
type Store struct {
	dir string
}

// New returns a store writing under dir
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("msgpack storage needs a directory")
	}
	return &Store{dir: dir}, nil
}

// Name returns the backend name
func (s *Store) Name() string {
	return "msgpack"
}

// Close is a no-op; every channel owns its file
func (s *Store) Close() error {
	return nil
}

// Path returns the file a stream is written to
func (s *Store) Path(stream string) string {
	return filepath.Join(s.dir, stream+Extension)
}

func newEncoder(w io.Writer) *msgpack.Encoder {
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	return enc
}

// Open creates one file per stream and writes the stream description
func (s *Store) Open(ctx context.Context, streams []storage.Stream) ([]storage.Channel, error) {
	for _, st := range streams {
		if err := st.Validate(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	channels := make([]storage.Channel, 0, len(streams))
	for _, st := range streams {
		f, err := os.OpenFile(s.Path(st.Name), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			closeAll(channels)
			return nil, fmt.Errorf("opening stream %q: %w", st.Name, err)
		}

		c := &channel{stream: st, f: f, w: bufio.NewWriter(f)}
		c.enc = newEncoder(c.w)
		if err := c.enc.Encode(st); err == nil {
			err = c.w.Flush()
		}
		if err != nil {
			f.Close()
			closeAll(channels)
			return nil, fmt.Errorf("writing header of stream %q: %w", st.Name, err)
		}
		channels = append(channels, c)
	}
	return channels, nil
}

func closeAll(channels []storage.Channel) {
	for _, c := range channels {
		c.Close()
	}
}

type channel struct {
	mu     sync.Mutex
	stream storage.Stream
	f      *os.File
	w      *bufio.Writer
	enc    *msgpack.Encoder
}

func (c *channel) Append(ctx context.Context, rec storage.Record) error {
	if err := storage.CheckRecord(c.stream, rec); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.f == nil {
		return fmt.Errorf("stream %q is closed", c.stream.Name)
	}

	if err := c.enc.Encode(rec); err != nil {
		return fmt.Errorf("stream %q: %w", c.stream.Name, err)
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("stream %q: %w", c.stream.Name, err)
	}
	return nil
}

func (c *channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.f == nil {
		return nil
	}

	err := c.w.Flush()
	if cerr := c.f.Close(); err == nil {
		err = cerr
	}
	c.f = nil
	return err
}

// Reader decodes a stream file written by Store
type Reader struct {
	dec    *msgpack.Decoder
	stream storage.Stream
}

// NewReader reads the stream description from r
func NewReader(r io.Reader) (*Reader, error) {
	dec := msgpack.NewDecoder(bufio.NewReader(r))
	dec.SetCustomStructTag("json")

	rd := &Reader{dec: dec}
	if err := dec.Decode(&rd.stream); err != nil {
		return nil, fmt.Errorf("reading stream header: %w", err)
	}
	return rd, nil
}

// Stream returns the description of the stream
func (r *Reader) Stream() storage.Stream {
	return r.stream
}

// Next returns the next record, or io.EOF after the last one
func (r *Reader) Next() (storage.Record, error) {
	var rec storage.Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return rec, io.EOF
		}
		return rec, err
	}
	return rec, nil
}

// ReadAll returns every remaining record
func (r *Reader) ReadAll() ([]storage.Record, error) {
	var out []storage.Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

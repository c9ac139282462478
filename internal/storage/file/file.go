// Package file writes each stream to a whitespace-separated text file with a
// commented header, one row per record.
package file

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/chrissnell/curle/internal/storage"
)

// Extension of every stream file
const Extension = ".dat"

// Store creates stream files under a directory
type Store struct {
	dir string
}

// New returns a store writing under dir. The directory is created on Open.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("file storage needs a directory")
	}
	return &Store{dir: dir}, nil
}

// Name returns the backend name
func (s *Store) Name() string {
	return "file"
}

// Close is a no-op; every channel owns its file
func (s *Store) Close() error {
	return nil
}

// Path returns the file a stream is written to
func (s *Store) Path(stream string) string {
	return filepath.Join(s.dir, stream+Extension)
}

// Open creates, or truncates, one file per stream and writes its header
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
		ch, err := s.open(st)
		if err != nil {
			for _, c := range channels {
				c.Close()
			}
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

func (s *Store) open(st storage.Stream) (*channel, error) {
	f, err := os.OpenFile(s.Path(st.Name), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening stream %q: %w", st.Name, err)
	}

	c := &channel{stream: st, f: f, w: bufio.NewWriter(f)}
	if _, err := fmt.Fprintf(c.w, "# %s\n", strings.Join(st.Header(), "\t")); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing header of stream %q: %w", st.Name, err)
	}
	if err := c.w.Flush(); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing header of stream %q: %w", st.Name, err)
	}
	return c, nil
}

type channel struct {
	mu     sync.Mutex
	stream storage.Stream
	f      *os.File
	w      *bufio.Writer
	buf    []byte
}

// Append writes one row and flushes it to the file
func (c *channel) Append(ctx context.Context, rec storage.Record) error {
	if err := storage.CheckRecord(c.stream, rec); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.f == nil {
		return fmt.Errorf("stream %q is closed", c.stream.Name)
	}

	c.buf = strconv.AppendFloat(c.buf[:0], rec.Time, 'g', -1, 64)
	for _, v := range rec.Values {
		c.buf = append(c.buf, '\t')
		c.buf = strconv.AppendFloat(c.buf, v, 'g', -1, 64)
	}
	c.buf = append(c.buf, '\n')

	if _, err := c.w.Write(c.buf); err != nil {
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

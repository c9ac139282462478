package managers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/curle/internal/metrics"
	"github.com/chrissnell/curle/internal/storage"
	"github.com/chrissnell/curle/internal/storage/file"
	"github.com/chrissnell/curle/internal/storage/memory"
	"github.com/chrissnell/curle/internal/storage/msgpack"
	"github.com/chrissnell/curle/internal/storage/sqlite"
	"github.com/chrissnell/curle/internal/storage/timescaledb"
	"github.com/chrissnell/curle/pkg/config"
	"go.uber.org/zap"
)

// HealthCheckInterval is how often backends that support it are checked
const HealthCheckInterval = time.Minute

// StorageManager holds our active storage backends and fans every stream out
// to all of them. It is itself a storage.ChannelFactory.
type StorageManager struct {
	Engines []storage.Backend
	Health  *storage.HealthManager

	memory  *memory.Store
	metrics *metrics.Collectors
	logger  *zap.SugaredLogger
}

// NewStorageManager creates a StorageManager populated with every configured backend
func NewStorageManager(ctx context.Context, c config.StorageData, m *metrics.Collectors, logger *zap.SugaredLogger) (*StorageManager, error) {
	s := &StorageManager{
		Health:  storage.NewHealthManager(),
		metrics: m,
		logger:  logger,
	}

	// Check the configuration for the supported storage backends and enable
	// them if found
	if c.File != nil {
		if err := s.AddEngine(ctx, "file", c); err != nil {
			return s, fmt.Errorf("could not add file storage backend: %w", err)
		}
	}
	if c.SQLite != nil {
		if err := s.AddEngine(ctx, "sqlite", c); err != nil {
			return s, fmt.Errorf("could not add SQLite storage backend: %w", err)
		}
	}
	if c.TimescaleDB != nil {
		if err := s.AddEngine(ctx, "timescaledb", c); err != nil {
			return s, fmt.Errorf("could not add TimescaleDB storage backend: %w", err)
		}
	}
	if c.MsgPack != nil {
		if err := s.AddEngine(ctx, "msgpack", c); err != nil {
			return s, fmt.Errorf("could not add MessagePack storage backend: %w", err)
		}
	}
	if c.Memory != nil {
		if err := s.AddEngine(ctx, "memory", c); err != nil {
			return s, fmt.Errorf("could not add memory storage backend: %w", err)
		}
	}

	if len(s.Engines) == 0 {
		logger.Warn("no storage backends configured, samples will be discarded")
	}
	return s, nil
}

// AddEngine adds the backend engineName, configured from c
func (s *StorageManager) AddEngine(ctx context.Context, engineName string, c config.StorageData) error {
	var (
		b   storage.Backend
		err error
	)

	switch engineName {
	case "file":
		b, err = file.New(c.File.Directory)
	case "sqlite":
		b, err = sqlite.New(ctx, c.SQLite.Path)
	case "timescaledb":
		b, err = timescaledb.New(ctx, c.TimescaleDB.ConnectionString)
	case "msgpack":
		b, err = msgpack.New(c.MsgPack.Directory)
	case "memory":
		ms := memory.New(c.Memory.Capacity)
		s.memory = ms
		b = ms
	default:
		return fmt.Errorf("unknown storage backend %q", engineName)
	}
	if err != nil {
		return err
	}

	s.Add(b)
	return nil
}

// Add registers an already constructed backend
func (s *StorageManager) Add(b storage.Backend) {
	s.Engines = append(s.Engines, b)
	s.Health.MarkHealthy(b.Name(), "backend started")
	s.logger.Infof("storage backend %s enabled", b.Name())
}

// Memory returns the in-memory backend, or nil if it is not configured
func (s *StorageManager) Memory() *memory.Store {
	return s.memory
}

// Open opens the streams on every backend and returns one fan-out channel per stream
func (s *StorageManager) Open(ctx context.Context, streams []storage.Stream) ([]storage.Channel, error) {
	fan := make([]*fanout, len(streams))
	for i, st := range streams {
		fan[i] = &fanout{manager: s, stream: st}
	}

	for _, b := range s.Engines {
		chans, err := b.Open(ctx, streams)
		if err != nil {
			s.Health.MarkUnhealthy(b.Name(), "failed to open streams", err)
			for _, f := range fan {
				f.Close()
			}
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		for i, ch := range chans {
			fan[i].targets = append(fan[i].targets, target{backend: b.Name(), ch: ch})
		}
	}

	out := make([]storage.Channel, len(fan))
	for i, f := range fan {
		out[i] = f
	}
	return out, nil
}

// StartHealthMonitor periodically checks every backend that supports it
func (s *StorageManager) StartHealthMonitor(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		s.checkHealth(ctx)

		ticker := time.NewTicker(HealthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.checkHealth(ctx)
			case <-ctx.Done():
				s.logger.Info("stopping storage health monitor")
				return
			}
		}
	}()
}

func (s *StorageManager) checkHealth(ctx context.Context) {
	for _, b := range s.Engines {
		hc, ok := b.(storage.HealthChecker)
		if !ok {
			continue
		}
		if err := hc.CheckHealth(ctx); err != nil {
			s.Health.MarkUnhealthy(b.Name(), "health check failed", err)
			s.logger.Warnf("storage backend %s is unhealthy: %v", b.Name(), err)
			continue
		}
		s.Health.MarkHealthy(b.Name(), "health check passed")
	}
}

// Close closes every backend
func (s *StorageManager) Close() error {
	var errs []error
	for _, b := range s.Engines {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		}
	}
	return errors.Join(errs...)
}

type target struct {
	backend string
	ch      storage.Channel
}

// fanout appends every record to one channel per backend
type fanout struct {
	manager *StorageManager
	stream  storage.Stream
	targets []target
}

// Append writes rec to every backend, even after one of them fails
func (f *fanout) Append(ctx context.Context, rec storage.Record) error {
	var errs []error
	for _, t := range f.targets {
		if err := t.ch.Append(ctx, rec); err != nil {
			f.manager.metrics.IncWriteError(t.backend)
			f.manager.Health.MarkUnhealthy(t.backend, fmt.Sprintf("append to %s failed", f.stream.Name), err)
			errs = append(errs, fmt.Errorf("%s: %w", t.backend, err))
			continue
		}
		f.manager.metrics.AddRecords(t.backend, 1)
	}
	return errors.Join(errs...)
}

func (f *fanout) Close() error {
	var errs []error
	for _, t := range f.targets {
		if err := t.ch.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.backend, err))
		}
	}
	f.targets = nil
	return errors.Join(errs...)
}

// Package timescaledb stores streams in a TimescaleDB hypertable so that
// long runs can be queried while they progress.
package timescaledb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/curle/internal/log"
	"github.com/chrissnell/curle/internal/storage"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Record is one row of the acoustic_records hypertable
type Record struct {
	RecordedAt time.Time       `gorm:"column:recorded_at"`
	RunID      uuid.UUID       `gorm:"column:run_id;type:uuid"`
	Stream     string          `gorm:"column:stream"`
	SimTime    float64         `gorm:"column:sim_time"`
	Values     pq.Float64Array `gorm:"column:samples;type:double precision[]"`
}

// TableName overrides the gorm default
func (Record) TableName() string {
	return "acoustic_records"
}

// StreamRow describes one stream of a run
type StreamRow struct {
	RunID   uuid.UUID      `gorm:"column:run_id;type:uuid;primaryKey"`
	Name    string         `gorm:"column:name;primaryKey"`
	Columns pq.StringArray `gorm:"column:columns;type:text[]"`
}

// TableName overrides the gorm default
func (StreamRow) TableName() string {
	return "acoustic_streams"
}

// Storage is a TimescaleDB backend for one run
type Storage struct {
	TimescaleDBConn *gorm.DB
	runID           uuid.UUID
}

// CreateConnection opens a gorm connection that logs through zap
func CreateConnection(connectionString string) (*gorm.DB, error) {
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	return gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
}

// New connects to TimescaleDB and creates the schema
func New(ctx context.Context, connectionString string) (*Storage, error) {
	var err error
	t := Storage{runID: uuid.New()}

	log.Info("connecting to TimescaleDB...")
	t.TimescaleDBConn, err = CreateConnection(connectionString)
	if err != nil {
		return nil, fmt.Errorf("unable to create a TimescaleDB connection: %w", err)
	}

	steps := []struct {
		what string
		sql  string
	}{
		{"records table", createTableSQL},
		{"streams table", createStreamsTableSQL},
		{"TimescaleDB extension", createExtensionSQL},
		{"hypertable", createHypertableSQL},
		{"records index", createIndexSQL},
	}
	for _, s := range steps {
		log.Infof("creating %s...", s.what)
		if err := t.TimescaleDBConn.WithContext(ctx).Exec(s.sql).Error; err != nil {
			t.Close()
			return nil, fmt.Errorf("could not create %s: %w", s.what, err)
		}
	}

	log.Infof("TimescaleDB storage ready, run %s", t.runID)
	return &t, nil
}

// Name returns the backend name
func (t *Storage) Name() string {
	return "timescaledb"
}

// RunID identifies the rows written by this backend
func (t *Storage) RunID() uuid.UUID {
	return t.runID
}

// Close closes the connection pool
func (t *Storage) Close() error {
	if t.TimescaleDBConn == nil {
		return nil
	}
	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CheckHealth pings the database and runs a trivial query
func (t *Storage) CheckHealth(ctx context.Context) error {
	if t.TimescaleDBConn == nil {
		return fmt.Errorf("TimescaleDB connection is nil")
	}
	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database connection: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	var result int
	if err := t.TimescaleDBConn.WithContext(ctx).Raw("SELECT 1").Scan(&result).Error; err != nil {
		return fmt.Errorf("database query test failed: %w", err)
	}
	return nil
}

// Open registers the streams of this run
func (t *Storage) Open(ctx context.Context, streams []storage.Stream) ([]storage.Channel, error) {
	rows := make([]StreamRow, 0, len(streams))
	channels := make([]storage.Channel, 0, len(streams))
	for _, st := range streams {
		if err := st.Validate(); err != nil {
			return nil, err
		}
		rows = append(rows, StreamRow{RunID: t.runID, Name: st.Name, Columns: st.Header()})
		channels = append(channels, &channel{db: t.TimescaleDBConn, runID: t.runID, stream: st})
	}

	if err := t.TimescaleDBConn.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, fmt.Errorf("could not register streams: %w", err)
	}
	return channels, nil
}

// Records returns the records of a stream of a run in simulation time order
func (t *Storage) Records(ctx context.Context, runID uuid.UUID, stream string) ([]storage.Record, error) {
	var rows []Record
	err := t.TimescaleDBConn.WithContext(ctx).
		Where("run_id = ? AND stream = ?", runID, stream).
		Order("sim_time").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]storage.Record, len(rows))
	for i, r := range rows {
		out[i] = storage.Record{Time: r.SimTime, Values: []float64(r.Values)}
	}
	return out, nil
}

type channel struct {
	mu     sync.Mutex
	db     *gorm.DB
	runID  uuid.UUID
	stream storage.Stream
	closed bool
}

func (c *channel) Append(ctx context.Context, rec storage.Record) error {
	if err := storage.CheckRecord(c.stream, rec); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("stream %q is closed", c.stream.Name)
	}

	row := Record{
		RecordedAt: time.Now(),
		RunID:      c.runID,
		Stream:     c.stream.Name,
		SimTime:    rec.Time,
		Values:     pq.Float64Array(rec.Values),
	}
	if err := c.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("could not store record of stream %q: %w", c.stream.Name, err)
	}
	return nil
}

func (c *channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

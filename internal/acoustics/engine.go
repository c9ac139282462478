// Package acoustics predicts far-field sound at fixed observers from an
// incompressible flow using Curle's acoustic analogy: surface pressure
// dipoles on a set of patches plus, optionally, Lighthill quadrupoles over
// a cell zone.
//
// The host drives an Engine once per time step through Calculate and Write.
// On a decomposed mesh every rank runs its own Engine over its partition and
// the engines meet in one collective reduction per step; only rank 0 writes.
package acoustics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/curle/internal/field"
	"github.com/chrissnell/curle/internal/log"
	"github.com/chrissnell/curle/internal/mesh"
	"github.com/chrissnell/curle/internal/metrics"
	"github.com/chrissnell/curle/internal/parallel"
	"github.com/chrissnell/curle/internal/storage"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// Host is the simulation the engine samples
type Host interface {
	Mesh() *mesh.Mesh
	Fields() field.Registry
	Time() float64
	DeltaT() float64
}

// State of the engine
type State int

const (
	Uninitialized State = iota
	Initialized
	Executing
	Writing
	Finalized
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Executing:
		return "executing"
	case Writing:
		return "writing"
	case Finalized:
		return "finalized"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is the outcome of the latest step for one observer
type Result struct {
	Sample ObserverSample
	Err    error
}

// noCopy makes go vet flag copies of an Engine
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Engine evaluates one Curle analysis. It must not be copied.
type Engine struct {
	noCopy noCopy

	settings Settings
	host     Host
	factory  storage.ChannelFactory
	comm     parallel.Communicator
	metrics  *metrics.Collectors
	logger   *zap.SugaredLogger

	state      State
	provider   *DerivativeProvider
	integrator *Integrator
	model      *ObserverModel
	clearance  []float64
	channels   []storage.Channel
	aggregates storage.Channel
	latest     []Result
	lastAgg    Aggregates
}

// Option configures an Engine
type Option func(*Engine)

// WithCommunicator sets the rank's communicator on a decomposed mesh
func WithCommunicator(c parallel.Communicator) Option {
	return func(e *Engine) { e.comm = c }
}

// WithMetrics records step metrics
func WithMetrics(m *metrics.Collectors) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger replaces the default logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) { e.logger = l }
}

// New returns an uninitialised engine. Output channels are opened through
// factory on rank 0 only.
func New(s Settings, host Host, factory storage.ChannelFactory, opts ...Option) *Engine {
	e := &Engine{
		settings: s.WithDefaults(),
		host:     host,
		factory:  factory,
		comm:     parallel.Serial{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.Named("curle")
	}
	e.logger = e.logger.With("analysis", e.settings.Name)
	return e
}

// Name returns the analysis name
func (e *Engine) Name() string {
	return e.settings.Name
}

// State returns the current state
func (e *Engine) State() State {
	return e.state
}

// Settings returns the settings with defaults applied
func (e *Engine) Settings() Settings {
	return e.settings
}

// StreamName returns the output stream of an observer
func (e *Engine) StreamName(observer string) string {
	return e.settings.Name + "_" + observer
}

// Streams returns the output streams the engine opens
func (e *Engine) Streams() []storage.Stream {
	streams := make([]storage.Stream, 0, len(e.settings.Observers)+1)
	for _, o := range e.settings.Observers {
		streams = append(streams, storage.Stream{
			Name:    e.StreamName(o.Name),
			Columns: []storage.Column{{Name: "p'", Unit: "Pa"}, {Name: "Retarded time", Unit: "s"}},
		})
	}
	if e.settings.WriteAggregates {
		streams = append(streams, storage.Stream{
			Name: e.settings.Name + "_aggregates",
			Columns: []storage.Column{
				{Name: "Fx", Unit: "N"}, {Name: "Fy", Unit: "N"}, {Name: "Fz", Unit: "N"},
				{Name: "dFx/dt", Unit: "N/s"}, {Name: "dFy/dt", Unit: "N/s"}, {Name: "dFz/dt", Unit: "N/s"},
			},
		})
	}
	return streams
}

// Initialise validates the settings, resolves patch and zone names against
// the host mesh, checks the fields and opens the output channels.
func (e *Engine) Initialise(ctx context.Context) error {
	switch e.state {
	case Uninitialized:
	case Finalized:
		return ErrFinalized
	default:
		return fmt.Errorf("%s: already initialised", e.settings.Name)
	}

	s := e.settings
	if err := s.Validate(); err != nil {
		return err
	}

	m := e.host.Mesh()
	patchIDs := make([]int, 0, len(s.Patches))
	for _, name := range s.Patches {
		id := m.FindPatchID(name)
		if id < 0 {
			return &ConfigurationError{Analysis: s.Name, Option: "patches", Reason: "cannot resolve patch", Err: &InvalidPatchError{Patch: name, ID: -1}}
		}
		patchIDs = append(patchIDs, id)
	}

	zoneID := -1
	if s.CellZone != "" {
		zoneID = m.FindZoneID(s.CellZone)
		if zoneID < 0 {
			return &ConfigurationError{Analysis: s.Name, Option: "cellZone", Reason: fmt.Sprintf("cell zone %q does not exist on the mesh", s.CellZone)}
		}
	}

	in, err := NewIntegrator(m, patchIDs, zoneID, e.comm)
	if err != nil {
		return &ConfigurationError{Analysis: s.Name, Option: "patches", Reason: "cannot build integrator", Err: err}
	}

	provider := NewDerivativeProvider(m, e.host.Fields(), s, in.Region(), e.logger)
	if err := provider.CheckFields(); err != nil {
		return err
	}

	if err := in.Geometry(ctx); err != nil {
		return fmt.Errorf("%s: %w", s.Name, err)
	}

	positions := make([]r3.Vec, len(s.Observers))
	for i, o := range s.Observers {
		positions[i] = o.Position
	}
	clearance, err := in.Clearance(ctx, positions)
	if err != nil {
		return fmt.Errorf("%s: %w", s.Name, err)
	}

	if parallel.Master(e.comm) {
		channels, err := e.factory.Open(ctx, e.Streams())
		if err != nil {
			return fmt.Errorf("%s: opening output channels: %w", s.Name, err)
		}
		e.channels = channels[:len(s.Observers)]
		if s.WriteAggregates {
			e.aggregates = channels[len(s.Observers)]
		}
	}

	e.provider = provider
	e.integrator = in
	e.model = NewObserverModel(s)
	e.clearance = clearance
	e.latest = make([]Result, len(s.Observers))
	e.state = Initialized

	e.logger.Infof("initialised Curle analogy: %d patch(es), cell zone %q, %d observer(s), surface centroid %v",
		len(in.Patches()), s.CellZone, len(s.Observers), in.SurfaceCentroid())
	return nil
}

func (e *Engine) checkRunning() error {
	switch e.state {
	case Uninitialized:
		return ErrNotInitialised
	case Finalized:
		return ErrFinalized
	}
	return nil
}

// Calculate evaluates the current host time step for every observer.
// Observers too close to the source get a SingularGeometryError in their
// Result; the other observers are unaffected.
func (e *Engine) Calculate(ctx context.Context) error {
	if err := e.checkRunning(); err != nil {
		return err
	}
	start := time.Now()

	if err := e.provider.Update(e.host.Time()); err != nil {
		return fmt.Errorf("%s: %w", e.settings.Name, err)
	}

	agg, err := e.integrator.Aggregate(ctx, e.provider)
	if err != nil {
		return fmt.Errorf("%s: %w", e.settings.Name, err)
	}
	e.lastAgg = agg

	for i, o := range e.settings.Observers {
		var r Result
		if e.clearance[i] < e.settings.MinDistance {
			r.Sample = ObserverSample{Observer: o.Name, Time: agg.Time}
			r.Err = &SingularGeometryError{Observer: o.Name, Distance: e.clearance[i], Min: e.settings.MinDistance}
		} else {
			r.Sample, r.Err = e.model.Predict(o, agg)
		}

		var sge *SingularGeometryError
		switch {
		case errors.As(r.Err, &sge):
			e.metrics.IncSingular(e.settings.Name, o.Name)
			e.logger.Warnf("time %g: %v", agg.Time, r.Err)
		case r.Err == nil:
			e.metrics.SetPressure(e.settings.Name, o.Name, r.Sample.Pressure)
		}
		e.latest[i] = r
	}

	e.metrics.ObserveStep(e.settings.Name, time.Since(start))
	e.state = Executing
	return nil
}

// Execute is reserved for per-step side effects that do not write
func (e *Engine) Execute(ctx context.Context) error {
	return e.checkRunning()
}

// Write appends the latest sample of every observer to its channel. Storage
// errors are returned since a failed channel would silently lose data.
func (e *Engine) Write(ctx context.Context) error {
	if err := e.checkRunning(); err != nil {
		return err
	}
	if e.state == Initialized {
		e.logger.Debug("nothing calculated yet, skipping write")
		return nil
	}
	defer func() { e.state = Writing }()

	if !parallel.Master(e.comm) {
		return nil
	}

	for i, r := range e.latest {
		if r.Err != nil {
			continue
		}
		rec := storage.Record{Time: r.Sample.Time, Values: []float64{r.Sample.Pressure, r.Sample.RetardedTime}}
		if err := e.channels[i].Append(ctx, rec); err != nil {
			return fmt.Errorf("%s: writing observer %q: %w", e.settings.Name, r.Sample.Observer, err)
		}
		if e.settings.Log {
			e.logger.Infof("time %g observer %s: p' = %g Pa (retarded time %g)",
				r.Sample.Time, r.Sample.Observer, r.Sample.Pressure, r.Sample.RetardedTime)
		}
	}

	if e.aggregates != nil {
		s := e.lastAgg.Surface
		rec := storage.Record{
			Time:   e.lastAgg.Time,
			Values: []float64{s.Force.X, s.Force.Y, s.Force.Z, s.ForceRate.X, s.ForceRate.Y, s.ForceRate.Z},
		}
		if err := e.aggregates.Append(ctx, rec); err != nil {
			return fmt.Errorf("%s: writing aggregates: %w", e.settings.Name, err)
		}
	}

	return nil
}

// Latest returns the results of the last Calculate, in observer order
func (e *Engine) Latest() []Result {
	return append([]Result(nil), e.latest...)
}

// LatestAggregates returns the integrated source terms of the last Calculate
func (e *Engine) LatestAggregates() Aggregates {
	return e.lastAgg
}

// Close releases the output channels. The engine cannot be used afterwards.
func (e *Engine) Close() error {
	if e.state == Finalized {
		return nil
	}
	e.state = Finalized

	var errs []error
	for _, ch := range e.channels {
		if err := ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.aggregates != nil {
		if err := e.aggregates.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.channels = nil
	e.aggregates = nil

	return errors.Join(errs...)
}

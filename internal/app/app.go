// Package app wires the configuration, storage, controllers and the Curle
// analyses into one run of the synthetic case.
package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/curle/internal/acoustics"
	"github.com/chrissnell/curle/internal/host"
	"github.com/chrissnell/curle/internal/managers"
	"github.com/chrissnell/curle/internal/metrics"
	"github.com/chrissnell/curle/internal/parallel"
	"github.com/chrissnell/curle/pkg/config"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// App represents the main application
type App struct {
	cfg    *config.ConfigData
	logger *zap.SugaredLogger

	// Serve keeps the controllers running after the simulation finishes,
	// until the context is cancelled or a signal arrives
	Serve bool

	metrics *metrics.Collectors
	storage *managers.StorageManager
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Settings converts one configured analysis into engine settings
func Settings(a config.AnalysisData) acoustics.Settings {
	s := acoustics.Settings{
		Name:            a.Name,
		Log:             a.Log,
		Patches:         append([]string(nil), a.Patches...),
		CellZone:        a.CellZone,
		RhoRef:          a.RhoRef,
		CRef:            a.CRef,
		PName:           a.PName,
		UName:           a.UName,
		PRef:            a.PRef,
		MinDistance:     a.MinDistance,
		NearField:       a.NearField,
		WriteAggregates: a.WriteAggregates,
		Observers:       make([]acoustics.Observer, 0, len(a.Observers)),
	}
	for _, o := range a.Observers {
		s.Observers = append(s.Observers, acoustics.Observer{
			Name:     o.Name,
			Position: r3.Vec{X: o.Position[0], Y: o.Position[1], Z: o.Position[2]},
		})
	}
	return s.WithDefaults()
}

// Metrics returns the collectors of the last Run
func (a *App) Metrics() *metrics.Collectors {
	return a.metrics
}

// Storage returns the storage manager of the last Run
func (a *App) Storage() *managers.StorageManager {
	return a.storage
}

func needsMemory(controllers []config.ControllerData) bool {
	for _, c := range controllers {
		if c.Type == "rest" || c.Type == "restserver" {
			return true
		}
	}
	return false
}

// Run validates the configuration, runs every analysis over the case and
// shuts down. With Serve set it blocks until shutdown after the run.
func (a *App) Run(ctx context.Context) (err error) {
	var wg sync.WaitGroup

	cfg := a.cfg
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	settings := make([]acoustics.Settings, 0, len(cfg.Analyses))
	for _, an := range cfg.Analyses {
		s := Settings(an)
		if err := s.Validate(); err != nil {
			return err
		}
		settings = append(settings, s)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	storageCfg := cfg.Storage
	if needsMemory(cfg.Controllers) && storageCfg.Memory == nil {
		storageCfg.Memory = &config.MemoryData{}
	}

	a.metrics = metrics.New()
	sm, err := managers.NewStorageManager(ctx, storageCfg, a.metrics, a.logger.Named("storage"))
	if err != nil {
		if sm != nil {
			sm.Close()
		}
		return err
	}
	a.storage = sm
	defer func() {
		cancel()
		wg.Wait()
		err = errors.Join(err, sm.Close())
	}()
	sm.StartHealthMonitor(ctx, &wg)

	cm, err := managers.NewControllerManager(ctx, &wg, cfg.Controllers, sm, a.metrics, a.logger)
	if err != nil {
		return err
	}
	if err := cm.StartControllers(); err != nil {
		return err
	}

	sim := cfg.Simulation
	c, err := host.NewCase(sim.Case, sim.DeltaT)
	if err != nil {
		return fmt.Errorf("building case: %w", err)
	}

	build := func(rank int, h *host.Case, comm parallel.Communicator) ([]host.FunctionObject, error) {
		objects := make([]host.FunctionObject, 0, len(settings))
		for _, s := range settings {
			opts := []acoustics.Option{
				acoustics.WithCommunicator(comm),
				acoustics.WithLogger(a.logger.Named("curle").With("rank", rank)),
			}
			if rank == 0 {
				opts = append(opts, acoustics.WithMetrics(a.metrics))
			}
			objects = append(objects, acoustics.New(s, h, sm, opts...))
		}
		return objects, nil
	}

	a.logger.Infof("running %d analysis(es) on %d processor(s)", len(settings), sim.Processors)
	if err := host.RunParallel(ctx, c, sim.Processors, sim.StartTime, sim.EndTime, build, a.logger.Named("host")); err != nil {
		return err
	}
	a.logger.Info("simulation complete")

	if a.Serve {
		a.logger.Info("serving results until shutdown")
		<-ctx.Done()
		a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	}

	a.logger.Info("waiting for all workers to terminate...")
	return nil
}

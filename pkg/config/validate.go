package config

import (
	"errors"
	"fmt"
)

// Defaults applied by ApplyDefaults
const (
	DefaultProcessors = 1
	DefaultWallPatch  = "plate"
	DefaultDensity    = 1.225
	DefaultRESTPort   = 8080
)

// ApplyDefaults fills in optional values
func (c *ConfigData) ApplyDefaults() {
	if c.Simulation.Processors == 0 {
		c.Simulation.Processors = DefaultProcessors
	}
	if c.Simulation.Case.WallPatch == "" {
		c.Simulation.Case.WallPatch = DefaultWallPatch
	}
	if c.Simulation.Case.Density == 0 {
		c.Simulation.Case.Density = DefaultDensity
	}
	for i := range c.Controllers {
		if r := c.Controllers[i].RESTServer; r != nil && r.Port == 0 {
			r.Port = DefaultRESTPort
		}
	}
}

// Validate checks the configuration for errors that would only surface
// part way through a run. Every problem found is reported.
func (c *ConfigData) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	s := c.Simulation
	if !(s.DeltaT > 0) {
		add("simulation: deltaT must be positive, got %g", s.DeltaT)
	}
	if !(s.EndTime >= s.StartTime) {
		add("simulation: endTime %g is before startTime %g", s.EndTime, s.StartTime)
	}
	if s.Processors < 1 {
		add("simulation: processors must be at least 1, got %d", s.Processors)
	}
	for i, n := range s.Case.Cells {
		if n < 1 {
			add("simulation.case: cells[%d] must be at least 1, got %d", i, n)
		}
		if !(s.Case.Size[i] > 0) {
			add("simulation.case: size[%d] must be positive, got %g", i, s.Case.Size[i])
		}
	}
	if ncells := s.Case.Cells[0] * s.Case.Cells[1] * s.Case.Cells[2]; s.Processors > ncells && ncells > 0 {
		add("simulation: %d processors for %d cells", s.Processors, ncells)
	}
	if !(s.Case.Density > 0) {
		add("simulation.case: density must be positive, got %g", s.Case.Density)
	}
	if s.Case.Frequency < 0 {
		add("simulation.case: frequency must not be negative, got %g", s.Case.Frequency)
	}

	if len(c.Analyses) == 0 {
		add("analyses: at least one analysis is required")
	}
	names := make(map[string]bool, len(c.Analyses))
	for i, a := range c.Analyses {
		label := a.Name
		if label == "" {
			label = fmt.Sprintf("analyses[%d]", i)
			add("%s: analysis has no name", label)
		} else if names[a.Name] {
			add("analyses: duplicate analysis %q", a.Name)
		}
		names[a.Name] = true

		if len(a.Observers) == 0 {
			add("%s: at least one observer is required", label)
		}
		observers := make(map[string]bool, len(a.Observers))
		for _, o := range a.Observers {
			if observers[o.Name] {
				add("%s: duplicate observer %q", label, o.Name)
			}
			observers[o.Name] = true
		}
	}

	st := c.Storage
	if st.File != nil && st.File.Directory == "" {
		add("storage.file: directory is required")
	}
	if st.SQLite != nil && st.SQLite.Path == "" {
		add("storage.sqlite: path is required")
	}
	if st.TimescaleDB != nil && st.TimescaleDB.ConnectionString == "" {
		add("storage.timescaledb: connectionString is required")
	}
	if st.MsgPack != nil && st.MsgPack.Directory == "" {
		add("storage.msgpack: directory is required")
	}
	if st.Memory != nil && st.Memory.Capacity < 0 {
		add("storage.memory: capacity must not be negative, got %d", st.Memory.Capacity)
	}

	for i, con := range c.Controllers {
		switch con.Type {
		case "rest", "restserver":
			if con.RESTServer == nil {
				add("controllers[%d]: rest controller needs a rest section", i)
			} else if con.RESTServer.Port < 0 || con.RESTServer.Port > 65535 {
				add("controllers[%d]: invalid port %d", i, con.RESTServer.Port)
			}
		default:
			add("controllers[%d]: unknown controller type %q", i, con.Type)
		}
	}

	return errors.Join(errs...)
}

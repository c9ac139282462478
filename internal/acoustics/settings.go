package acoustics

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	DefaultPName       = "p"
	DefaultUName       = "U"
	DefaultMinDistance = 1e-6
)

// Observer is a fixed point where acoustic pressure is sampled. Its name is
// its identity.
type Observer struct {
	Name     string
	Position r3.Vec
}

// Settings configures one Curle analysis. Patch and zone names are resolved
// against the host mesh by Engine.Initialise.
type Settings struct {
	Name     string
	Log      bool
	Patches  []string
	CellZone string
	RhoRef   float64
	CRef     float64
	PName    string
	UName    string
	// PRef is subtracted from the pressure in the Lighthill tensor and the
	// near-field surface term.
	PRef float64
	// MinDistance guards the 1/r singularity
	MinDistance float64
	// NearField adds the static near-field terms, which do not radiate
	NearField       bool
	WriteAggregates bool
	Observers       []Observer
}

// WithDefaults returns a copy of s with unset optional values filled in
func (s Settings) WithDefaults() Settings {
	if s.PName == "" {
		s.PName = DefaultPName
	}
	if s.UName == "" {
		s.UName = DefaultUName
	}
	if s.MinDistance == 0 {
		s.MinDistance = DefaultMinDistance
	}
	return s
}

// Validate checks the invariants of s
func (s Settings) Validate() error {
	bad := func(option, format string, args ...any) error {
		return &ConfigurationError{Analysis: s.Name, Option: option, Reason: fmt.Sprintf(format, args...)}
	}

	if s.Name == "" {
		return bad("name", "analysis has no name")
	}
	if !(s.RhoRef > 0) {
		return bad("rhoRef", "reference density must be positive, got %g", s.RhoRef)
	}
	if !(s.CRef > 0) {
		return bad("cRef", "reference speed of sound must be positive, got %g", s.CRef)
	}
	if !(s.MinDistance > 0) {
		return bad("minDistance", "minimum distance must be positive, got %g", s.MinDistance)
	}
	if len(s.Patches) == 0 {
		return bad("patches", "at least one patch is required")
	}
	if s.PName == "" || s.UName == "" {
		return bad("pName", "field names must not be empty")
	}
	if len(s.Observers) == 0 {
		return bad("observers", "at least one observer is required")
	}

	seen := make(map[string]bool, len(s.Observers))
	for _, o := range s.Observers {
		if o.Name == "" {
			return bad("observers", "observer has no name")
		}
		if seen[o.Name] {
			return bad("observers", "duplicate observer %q", o.Name)
		}
		seen[o.Name] = true
	}

	return nil
}

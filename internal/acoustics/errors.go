package acoustics

import (
	"errors"
	"fmt"

	"github.com/chrissnell/curle/internal/field"
)

var (
	// ErrNotInitialised is returned by the per-step hooks before Initialise
	ErrNotInitialised = errors.New("acoustic analogy has not been initialised")
	// ErrFinalized is returned once the engine has been closed
	ErrFinalized = errors.New("acoustic analogy has been finalized")
	// ErrOutOfOrder is returned when the host time moves backwards
	ErrOutOfOrder = errors.New("simulation time moved backwards")
)

// ConfigurationError reports a missing or invalid option. It is fatal at
// initialisation.
type ConfigurationError struct {
	Analysis string
	Option   string
	Reason   string
	Err      error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s: %s", e.Analysis, e.Option, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// FieldNotFoundError reports a pressure or velocity field that is absent,
// of the wrong rank, or does not fit the mesh.
type FieldNotFoundError = field.NotFoundError

// InvalidPatchError reports a patch that does not exist on the current mesh
type InvalidPatchError struct {
	Patch string
	ID    int
}

func (e *InvalidPatchError) Error() string {
	if e.Patch != "" {
		return fmt.Sprintf("patch %q does not exist on the mesh", e.Patch)
	}
	return fmt.Sprintf("patch ID %d does not exist on the mesh", e.ID)
}

// SingularGeometryError reports an observer on or too close to the
// integration surface. Only that observer's sample is lost.
type SingularGeometryError struct {
	Observer string
	Distance float64
	Min      float64
}

func (e *SingularGeometryError) Error() string {
	return fmt.Sprintf("observer %q is %g m from the source, below the minimum distance of %g m", e.Observer, e.Distance, e.Min)
}

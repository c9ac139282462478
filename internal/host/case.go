// Package host provides a synthetic simulation for the acoustic engine to
// sample: a box mesh with an analytic, convected, oscillating flow, a time
// loop that drives function objects, and an in-process parallel runner.
package host

import (
	"fmt"
	"math"

	"github.com/chrissnell/curle/internal/field"
	"github.com/chrissnell/curle/internal/mesh"
	"github.com/chrissnell/curle/pkg/config"
	"gonum.org/v1/gonum/spatial/r3"
)

// Field names published by a Case
const (
	PressureField = "p"
	VelocityField = "U"
)

// Flow is a travelling wave convected with the mean velocity:
//
//	phase = 2 pi f t - k (x . u)    with k = 2 pi f / |U| and u = U / |U|
//	p     = P0 + A sin(phase)
//	U     = U0 + V sin(phase) n    with n a unit vector normal to U0
type Flow struct {
	Density           float64
	MeanPressure      float64
	PressureAmplitude float64
	Frequency         float64
	MeanVelocity      r3.Vec
	VelocityAmplitude float64
	Kinematic         bool
}

func (f Flow) phase(x r3.Vec, t float64) float64 {
	omega := 2 * math.Pi * f.Frequency
	phase := omega * t
	if speed := r3.Norm(f.MeanVelocity); speed > 0 {
		phase -= omega / speed * r3.Dot(x, r3.Unit(f.MeanVelocity))
	}
	return phase
}

// normal returns a unit vector perpendicular to the mean velocity
func (f Flow) normal() r3.Vec {
	u := f.MeanVelocity
	n := r3.Vec{X: -u.Y, Y: u.X}
	if r3.Norm(n) == 0 {
		return r3.Vec{Y: 1}
	}
	return r3.Unit(n)
}

// Pressure returns the static pressure in Pa
func (f Flow) Pressure(x r3.Vec, t float64) float64 {
	return f.MeanPressure + f.PressureAmplitude*math.Sin(f.phase(x, t))
}

// Velocity returns the velocity in m/s
func (f Flow) Velocity(x r3.Vec, t float64) r3.Vec {
	return r3.Add(f.MeanVelocity, r3.Scale(f.VelocityAmplitude*math.Sin(f.phase(x, t)), f.normal()))
}

// Case is an acoustics.Host over a box mesh with an analytic flow
type Case struct {
	mesh   *mesh.Mesh
	flow   Flow
	reg    *field.ObjectRegistry
	time   float64
	deltaT float64
}

// NewCase builds the box mesh described by c. The yMin side becomes the wall
// patch, and the cell zone is added when c names one.
func NewCase(c config.CaseData, deltaT float64) (*Case, error) {
	origin := r3.Vec{X: c.Origin[0], Y: c.Origin[1], Z: c.Origin[2]}
	size := r3.Vec{X: c.Size[0], Y: c.Size[1], Z: c.Size[2]}

	m, err := mesh.NewBox(origin, size, c.Cells[0], c.Cells[1], c.Cells[2])
	if err != nil {
		return nil, err
	}
	if c.WallPatch != "" && c.WallPatch != "yMin" {
		if err := m.RenamePatch("yMin", c.WallPatch); err != nil {
			return nil, err
		}
	}
	if c.Zone != "" {
		lo := r3.Vec{X: c.ZoneMin[0], Y: c.ZoneMin[1], Z: c.ZoneMin[2]}
		hi := r3.Vec{X: c.ZoneMax[0], Y: c.ZoneMax[1], Z: c.ZoneMax[2]}
		if _, err := m.AddZone(c.Zone, lo, hi); err != nil {
			return nil, err
		}
	}

	flow := Flow{
		Density:           c.Density,
		MeanPressure:      c.MeanPressure,
		PressureAmplitude: c.PressureAmplitude,
		Frequency:         c.Frequency,
		MeanVelocity:      r3.Vec{X: c.MeanVelocity[0], Y: c.MeanVelocity[1], Z: c.MeanVelocity[2]},
		VelocityAmplitude: c.VelocityAmplitude,
		Kinematic:         c.Kinematic,
	}
	if flow.Kinematic && !(flow.Density > 0) {
		return nil, fmt.Errorf("a kinematic pressure field needs a positive density")
	}

	return newCase(m, flow, deltaT), nil
}

func newCase(m *mesh.Mesh, flow Flow, deltaT float64) *Case {
	return &Case{
		mesh:   m,
		flow:   flow,
		reg:    field.NewObjectRegistry(),
		deltaT: deltaT,
	}
}

// Partition returns the case restricted to one partition of its mesh
func (c *Case) Partition(p mesh.Partition) *Case {
	return newCase(p.Mesh, c.flow, c.deltaT)
}

func (c *Case) Mesh() *mesh.Mesh       { return c.mesh }
func (c *Case) Fields() field.Registry { return c.reg }
func (c *Case) Time() float64          { return c.time }
func (c *Case) DeltaT() float64        { return c.deltaT }

// Flow returns the analytic flow
func (c *Case) Flow() Flow {
	return c.flow
}

// Advance moves the case to time t and publishes p and U
func (c *Case) Advance(t float64) {
	c.time = t

	p := field.NewScalarField(PressureField, c.mesh)
	u := field.NewVectorField(VelocityField, c.mesh)
	scale := 1.0
	if c.flow.Kinematic {
		p.Kinematic = true
		scale = 1 / c.flow.Density
	}

	for cell, x := range c.mesh.CellCentres {
		p.Internal[cell] = scale * c.flow.Pressure(x, t)
		u.Internal[cell] = c.flow.Velocity(x, t)
	}
	for patchi := range c.mesh.Patches {
		for i, x := range c.mesh.Patches[patchi].FaceCentres {
			p.Boundary[patchi][i] = scale * c.flow.Pressure(x, t)
			u.Boundary[patchi][i] = c.flow.Velocity(x, t)
		}
	}

	c.reg.StoreScalar(p)
	c.reg.StoreVector(u)
}

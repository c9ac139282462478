package acoustics

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/chrissnell/curle/internal/field"
	"github.com/chrissnell/curle/internal/mesh"
	"github.com/chrissnell/curle/internal/parallel"
	"gonum.org/v1/gonum/spatial/r3"
)

// SurfaceAggregate holds the integrals over the patch set
type SurfaceAggregate struct {
	Centroid r3.Vec
	Area     float64
	// Force is the integral of (p - pRef) n dS
	Force r3.Vec
	// ForceRate is the integral of dp/dt n dS
	ForceRate r3.Vec
}

// VolumeAggregate holds the integrals of the Lighthill tensor over the cell zone
type VolumeAggregate struct {
	Centroid           r3.Vec
	Volume             float64
	Stress             field.Tensor
	StressRate         field.Tensor
	StressAcceleration field.Tensor
}

// Aggregates is everything the observer model needs for one step. Volume is
// nil without a cell zone.
type Aggregates struct {
	Time    float64
	Surface SurfaceAggregate
	Volume  *VolumeAggregate
}

// Integrator sums fields over a set of boundary patches and an optional
// cell zone. Every reduction is global: on a decomposed mesh all ranks must
// call the same methods in the same order.
type Integrator struct {
	mesh    *mesh.Mesh
	patches []int
	zone    int
	cells   []int
	comm    parallel.Communicator

	surface SurfaceAggregate
	volume  VolumeAggregate
}

// NewIntegrator returns an integrator over the given patch IDs and zone ID.
// A zone ID of -1 means no volume integration.
func NewIntegrator(m *mesh.Mesh, patchIDs []int, zoneID int, comm parallel.Communicator) (*Integrator, error) {
	if len(patchIDs) == 0 {
		return nil, fmt.Errorf("no patches to integrate over")
	}

	seen := make(map[int]bool, len(patchIDs))
	patches := make([]int, 0, len(patchIDs))
	for _, id := range patchIDs {
		if id < 0 || id >= len(m.Patches) {
			return nil, &InvalidPatchError{ID: id}
		}
		if !seen[id] {
			seen[id] = true
			patches = append(patches, id)
		}
	}
	sort.Ints(patches)

	in := &Integrator{
		mesh:    m,
		patches: patches,
		zone:    -1,
		comm:    comm,
	}

	if zoneID >= 0 {
		if zoneID >= len(m.CellZones) {
			return nil, fmt.Errorf("cell zone ID %d does not exist on the mesh", zoneID)
		}
		in.zone = zoneID
		in.cells = m.CellZones[zoneID].Cells
	}

	return in, nil
}

// Patches returns the patch IDs integrated over
func (in *Integrator) Patches() []int {
	return in.patches
}

// HasZone reports whether a cell zone is integrated over
func (in *Integrator) HasZone() bool {
	return in.zone >= 0
}

// Region returns the cells of the zone, or nil
func (in *Integrator) Region() []int {
	return in.cells
}

// Geometry reduces the area, volume and centroids of the integration
// region. It must be called before Aggregate.
func (in *Integrator) Geometry(ctx context.Context) error {
	// area moment, area, volume moment, volume
	buf := make([]float64, 8)
	for _, patchi := range in.patches {
		p := &in.mesh.Patches[patchi]
		for i, sf := range p.FaceAreas {
			a := r3.Norm(sf)
			c := p.FaceCentres[i]
			buf[0] += a * c.X
			buf[1] += a * c.Y
			buf[2] += a * c.Z
			buf[3] += a
		}
	}
	for _, c := range in.cells {
		v := in.mesh.CellVolumes[c]
		x := in.mesh.CellCentres[c]
		buf[4] += v * x.X
		buf[5] += v * x.Y
		buf[6] += v * x.Z
		buf[7] += v
	}

	if err := in.comm.AllReduce(ctx, parallel.Sum, buf); err != nil {
		return err
	}

	if !(buf[3] > 0) {
		return fmt.Errorf("integration surface has no area")
	}
	in.surface = SurfaceAggregate{
		Centroid: r3.Scale(1/buf[3], r3.Vec{X: buf[0], Y: buf[1], Z: buf[2]}),
		Area:     buf[3],
	}

	if in.HasZone() {
		if !(buf[7] > 0) {
			return fmt.Errorf("cell zone %q has no volume", in.mesh.CellZones[in.zone].Name)
		}
		in.volume = VolumeAggregate{
			Centroid: r3.Scale(1/buf[7], r3.Vec{X: buf[4], Y: buf[5], Z: buf[6]}),
			Volume:   buf[7],
		}
	}

	return nil
}

// SurfaceCentroid returns the area-weighted centroid of the patch set
func (in *Integrator) SurfaceCentroid() r3.Vec {
	return in.surface.Centroid
}

func (in *Integrator) localScalar(f *field.ScalarField) r3.Vec {
	var sum r3.Vec
	for _, patchi := range in.patches {
		sf := in.mesh.Patches[patchi].FaceAreas
		for i, v := range f.Boundary[patchi] {
			sum = r3.Add(sum, r3.Scale(v, sf[i]))
		}
	}
	return sum
}

func (in *Integrator) localVolume(t *field.TensorField) field.Tensor {
	var sum field.Tensor
	for i, c := range t.Cells {
		sum = sum.Add(t.Values[i].Scale(in.mesh.CellVolumes[c]))
	}
	return sum
}

// IntegrateScalar returns the global sum of f Sf over the patch set
func (in *Integrator) IntegrateScalar(ctx context.Context, f *field.ScalarField) (r3.Vec, error) {
	s := in.localScalar(f)
	buf := []float64{s.X, s.Y, s.Z}
	if err := in.comm.AllReduce(ctx, parallel.Sum, buf); err != nil {
		return r3.Vec{}, err
	}
	return r3.Vec{X: buf[0], Y: buf[1], Z: buf[2]}, nil
}

// IntegrateVolume returns the global sum of t V over the cells of t
func (in *Integrator) IntegrateVolume(ctx context.Context, t *field.TensorField) (field.Tensor, error) {
	s := in.localVolume(t)
	buf := s[:]
	if err := in.comm.AllReduce(ctx, parallel.Sum, buf); err != nil {
		return field.Tensor{}, err
	}
	return s, nil
}

// Clearance returns, for each point, the distance to the nearest face of
// the patch set.
func (in *Integrator) Clearance(ctx context.Context, points []r3.Vec) ([]float64, error) {
	dist := make([]float64, len(points))
	for i, x := range points {
		dist[i] = math.Inf(1)
		for _, patchi := range in.patches {
			p := &in.mesh.Patches[patchi]
			for facei := range p.FaceCentres {
				dist[i] = math.Min(dist[i], p.FaceDistance(facei, x))
			}
		}
	}

	if err := in.comm.AllReduce(ctx, parallel.Min, dist); err != nil {
		return nil, err
	}
	return dist, nil
}

// Aggregate integrates the current state of d with a single global reduction
func (in *Integrator) Aggregate(ctx context.Context, d *DerivativeProvider) (Aggregates, error) {
	force := in.localScalar(d.GaugePressure())
	forceRate := in.localScalar(d.PressureTimeDerivative())

	buf := make([]float64, 6, 6+27)
	buf[0], buf[1], buf[2] = force.X, force.Y, force.Z
	buf[3], buf[4], buf[5] = forceRate.X, forceRate.Y, forceRate.Z

	if in.HasZone() {
		q := in.localVolume(d.LighthillTensor())
		dq := in.localVolume(d.LighthillTensorFirstDerivative())
		d2q := in.localVolume(d.LighthillTensorSecondDerivative())
		buf = append(buf, q[:]...)
		buf = append(buf, dq[:]...)
		buf = append(buf, d2q[:]...)
	}

	if err := in.comm.AllReduce(ctx, parallel.Sum, buf); err != nil {
		return Aggregates{}, err
	}

	agg := Aggregates{
		Time:    d.Time(),
		Surface: in.surface,
	}
	agg.Surface.Force = r3.Vec{X: buf[0], Y: buf[1], Z: buf[2]}
	agg.Surface.ForceRate = r3.Vec{X: buf[3], Y: buf[4], Z: buf[5]}

	if in.HasZone() {
		v := in.volume
		copy(v.Stress[:], buf[6:15])
		copy(v.StressRate[:], buf[15:24])
		copy(v.StressAcceleration[:], buf[24:33])
		agg.Volume = &v
	}

	return agg, nil
}

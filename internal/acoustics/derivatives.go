package acoustics

import (
	"fmt"

	"github.com/chrissnell/curle/internal/field"
	"github.com/chrissnell/curle/internal/mesh"
	"go.uber.org/zap"
)

// historySize is the number of snapshots the second derivative stencil needs
const historySize = 3

type snapshot struct {
	time float64
	p    *field.ScalarField
	u    *field.VectorField
	tij  *field.TensorField
}

// DerivativeProvider derives pressure, the Lighthill tensor and their time
// derivatives from the host's current fields and a short ring buffer of
// earlier steps. Derivatives that need more history than is available are
// zero.
type DerivativeProvider struct {
	mesh   *mesh.Mesh
	fields field.Registry
	pName  string
	uName  string
	rhoRef float64
	pRef   float64
	region []int
	logger *zap.SugaredLogger

	history [historySize]*snapshot
	head    int
	depth   int
}

// NewDerivativeProvider returns a provider reading s.PName and s.UName from
// fields. Tensors are evaluated over the cells in region.
func NewDerivativeProvider(m *mesh.Mesh, fields field.Registry, s Settings, region []int, logger *zap.SugaredLogger) *DerivativeProvider {
	return &DerivativeProvider{
		mesh:   m,
		fields: fields,
		pName:  s.PName,
		uName:  s.UName,
		rhoRef: s.RhoRef,
		pRef:   s.PRef,
		region: region,
		logger: logger,
	}
}

// CheckFields looks up the pressure and velocity fields without recording
// them.
func (d *DerivativeProvider) CheckFields() error {
	_, _, err := d.lookup()
	return err
}

func (d *DerivativeProvider) lookup() (*field.ScalarField, *field.VectorField, error) {
	p, err := d.fields.LookupScalar(d.pName)
	if err != nil {
		return nil, nil, err
	}
	if err := p.CheckSize(d.mesh); err != nil {
		return nil, nil, &FieldNotFoundError{Name: d.pName, Want: "scalar", Reason: err.Error()}
	}

	u, err := d.fields.LookupVector(d.uName)
	if err != nil {
		return nil, nil, err
	}
	if err := u.CheckSize(d.mesh); err != nil {
		return nil, nil, &FieldNotFoundError{Name: d.uName, Want: "vector", Reason: err.Error()}
	}

	return p, u, nil
}

// Update records the fields at time t. A second update at the same time
// replaces the newest snapshot instead of extending the history.
func (d *DerivativeProvider) Update(t float64) error {
	p, u, err := d.lookup()
	if err != nil {
		return err
	}

	s := &snapshot{time: t, p: p.Clone(), u: u.Clone()}
	if p.Kinematic {
		s.p.Scale(d.rhoRef)
	}

	switch {
	case d.depth == 0:
		d.head = 0
		d.depth = 1
	case t == d.history[d.head].time:
	case t < d.history[d.head].time:
		return fmt.Errorf("%w: %g after %g", ErrOutOfOrder, t, d.history[d.head].time)
	default:
		d.head = (d.head + 1) % historySize
		d.depth = min(d.depth+1, historySize)
	}
	d.history[d.head] = s

	if d.depth < historySize {
		d.logger.Debugf("time %g: %d of %d snapshots, higher time derivatives are zero", t, d.depth, historySize)
	}
	return nil
}

// HistoryDepth returns the number of snapshots held
func (d *DerivativeProvider) HistoryDepth() int {
	return d.depth
}

// Time returns the time of the newest snapshot
func (d *DerivativeProvider) Time() float64 {
	if d.depth == 0 {
		return 0
	}
	return d.history[d.head].time
}

// Region returns the cells tensors are evaluated on
func (d *DerivativeProvider) Region() []int {
	return d.region
}

// snap returns the snapshot age steps back from the newest
func (d *DerivativeProvider) snap(age int) *snapshot {
	if age >= d.depth {
		return nil
	}
	return d.history[(d.head-age+historySize)%historySize]
}

// Pressure returns the current pressure in Pa
func (d *DerivativeProvider) Pressure() *field.ScalarField {
	if s := d.snap(0); s != nil {
		return s.p
	}
	return field.NewScalarField(d.pName, d.mesh)
}

// GaugePressure returns the current pressure minus the reference pressure
func (d *DerivativeProvider) GaugePressure() *field.ScalarField {
	p := d.Pressure().Clone()
	for i := range p.Internal {
		p.Internal[i] -= d.pRef
	}
	for _, b := range p.Boundary {
		for i := range b {
			b[i] -= d.pRef
		}
	}
	return p
}

// PressureTimeDerivative returns (p_n - p_n-1)/dt, or zero on the first step
func (d *DerivativeProvider) PressureTimeDerivative() *field.ScalarField {
	dpdt := field.NewScalarField("ddt("+d.pName+")", d.mesh)
	now, prev := d.snap(0), d.snap(1)
	if prev == nil {
		return dpdt
	}

	rDeltaT := 1 / (now.time - prev.time)
	for i := range dpdt.Internal {
		dpdt.Internal[i] = (now.p.Internal[i] - prev.p.Internal[i]) * rDeltaT
	}
	for patchi := range dpdt.Boundary {
		for i := range dpdt.Boundary[patchi] {
			dpdt.Boundary[patchi][i] = (now.p.Boundary[patchi][i] - prev.p.Boundary[patchi][i]) * rDeltaT
		}
	}
	return dpdt
}

// lighthill returns the Lighthill tensor of s, computing it on first use
func (d *DerivativeProvider) lighthill(s *snapshot) *field.TensorField {
	if s.tij != nil {
		return s.tij
	}

	tij := field.NewTensorField("Tij", d.region)
	for i, c := range d.region {
		u := s.u.Internal[c]
		tij.Values[i] = field.Outer(u, u).Scale(d.rhoRef).Add(field.Spherical(s.p.Internal[c] - d.pRef))
	}
	s.tij = tij
	return tij
}

// LighthillTensor returns T_ij = rhoRef u_i u_j + (p - pRef) delta_ij
func (d *DerivativeProvider) LighthillTensor() *field.TensorField {
	if s := d.snap(0); s != nil {
		return d.lighthill(s)
	}
	return field.NewTensorField("Tij", d.region)
}

// LighthillTensorFirstDerivative returns the backward difference of T_ij,
// or zero until two snapshots exist
func (d *DerivativeProvider) LighthillTensorFirstDerivative() *field.TensorField {
	dtij := field.NewTensorField("ddt(Tij)", d.region)
	now, prev := d.snap(0), d.snap(1)
	if prev == nil {
		return dtij
	}

	t0, t1 := d.lighthill(now), d.lighthill(prev)
	rDeltaT := 1 / (now.time - prev.time)
	for i := range dtij.Values {
		dtij.Values[i] = t0.Values[i].Sub(t1.Values[i]).Scale(rDeltaT)
	}
	return dtij
}

// LighthillTensorSecondDerivative returns the second backward difference of
// T_ij, or zero until three snapshots exist. Non-uniform steps are allowed.
func (d *DerivativeProvider) LighthillTensorSecondDerivative() *field.TensorField {
	d2tij := field.NewTensorField("d2dt2(Tij)", d.region)
	s0, s1, s2 := d.snap(0), d.snap(1), d.snap(2)
	if s2 == nil {
		return d2tij
	}

	t0, t1, t2 := d.lighthill(s0), d.lighthill(s1), d.lighthill(s2)
	dt0 := s0.time - s1.time
	dt1 := s1.time - s2.time
	coeff := 2 / (dt0 + dt1)
	for i := range d2tij.Values {
		rate0 := t0.Values[i].Sub(t1.Values[i]).Scale(1 / dt0)
		rate1 := t1.Values[i].Sub(t2.Values[i]).Scale(1 / dt1)
		d2tij.Values[i] = rate0.Sub(rate1).Scale(coeff)
	}
	return d2tij
}

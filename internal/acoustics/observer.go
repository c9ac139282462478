package acoustics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ObserverSample is the predicted acoustic pressure at one observer for one
// simulation time. RetardedTime is the source time whose surface emission
// reaches the observer at Time.
type ObserverSample struct {
	Observer     string
	Time         float64
	RetardedTime float64
	Pressure     float64
}

// ObserverModel applies Curle's analogy to the integrated source terms,
// treating the patch set and the cell zone as compact sources located at
// their centroids.
type ObserverModel struct {
	cRef        float64
	minDistance float64
	nearField   bool
}

// NewObserverModel returns the model for s
func NewObserverModel(s Settings) *ObserverModel {
	return &ObserverModel{
		cRef:        s.CRef,
		minDistance: s.MinDistance,
		nearField:   s.NearField,
	}
}

// Predict returns the acoustic pressure at obs:
//
//	p' = 1/4pi [ l.dF/dt / (c r) + l.F / r^2 ]                                      (surface)
//	   + 1/4pi [ l.Q''.l / (c^2 r) + (3 l.Q'.l - tr Q') / (c r^2) + (3 l.Q.l - tr Q) / r^3 ]  (volume)
//
// with l the unit vector from the source to the observer. The static F and
// Q terms are only included with near-field enabled.
func (m *ObserverModel) Predict(obs Observer, agg Aggregates) (ObserverSample, error) {
	sample := ObserverSample{Observer: obs.Name, Time: agg.Time}
	c := m.cRef

	rs := r3.Sub(obs.Position, agg.Surface.Centroid)
	r := r3.Norm(rs)
	if r < m.minDistance {
		return sample, &SingularGeometryError{Observer: obs.Name, Distance: r, Min: m.minDistance}
	}
	l := r3.Scale(1/r, rs)

	p := r3.Dot(l, agg.Surface.ForceRate) / (c * r)
	if m.nearField {
		p += r3.Dot(l, agg.Surface.Force) / (r * r)
	}
	sample.RetardedTime = agg.Time - r/c

	if v := agg.Volume; v != nil {
		rv := r3.Sub(obs.Position, v.Centroid)
		r := r3.Norm(rv)
		if r < m.minDistance {
			return sample, &SingularGeometryError{Observer: obs.Name, Distance: r, Min: m.minDistance}
		}
		l := r3.Scale(1/r, rv)

		p += v.StressAcceleration.Contract(l, l) / (c * c * r)
		p += (3*v.StressRate.Contract(l, l) - v.StressRate.Trace()) / (c * r * r)
		if m.nearField {
			p += (3*v.Stress.Contract(l, l) - v.Stress.Trace()) / (r * r * r)
		}
	}

	sample.Pressure = p / (4 * math.Pi)
	return sample, nil
}

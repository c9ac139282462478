package acoustics

import (
	"errors"
	"math"
	"testing"

	"github.com/chrissnell/curle/internal/field"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestPredictDipole(t *testing.T) {
	const c = 343.0
	agg := Aggregates{
		Time: 0.5,
		Surface: SurfaceAggregate{
			Centroid:  r3.Vec{X: 1, Y: 1},
			Force:     r3.Vec{X: 3},
			ForceRate: r3.Vec{X: 2},
		},
	}

	tests := []struct {
		name      string
		position  r3.Vec
		nearField bool
		want      float64
	}{
		{"on axis", r3.Vec{X: 3, Y: 1}, false, 2 / (4 * math.Pi * c * 2)},
		{"twice as far", r3.Vec{X: 5, Y: 1}, false, 2 / (4 * math.Pi * c * 4)},
		{"behind the source", r3.Vec{X: -1, Y: 1}, false, -2 / (4 * math.Pi * c * 2)},
		{"perpendicular", r3.Vec{X: 1, Y: 4}, false, 0},
		{"near field", r3.Vec{X: 3, Y: 1}, true, (2/(c*2) + 3/4.0) / (4 * math.Pi)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewObserverModel(Settings{CRef: c, MinDistance: DefaultMinDistance, NearField: tt.nearField})
			got, err := m.Predict(Observer{Name: "mic", Position: tt.position}, agg)
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(got.Pressure-tt.want) > 1e-15 {
				t.Errorf("expected p' = %g, got %g", tt.want, got.Pressure)
			}
			r := r3.Norm(r3.Sub(tt.position, agg.Surface.Centroid))
			if math.Abs(got.RetardedTime-(0.5-r/c)) > 1e-15 {
				t.Errorf("expected retarded time %g, got %g", 0.5-r/c, got.RetardedTime)
			}
			if got.Time != 0.5 || got.Observer != "mic" {
				t.Errorf("unexpected sample header %+v", got)
			}
		})
	}
}

func TestPredictQuadrupole(t *testing.T) {
	const c, r = 343.0, 10.0
	m := NewObserverModel(Settings{CRef: c, MinDistance: DefaultMinDistance})

	var q field.Tensor
	q[0] = 1
	agg := Aggregates{
		Surface: SurfaceAggregate{Centroid: r3.Vec{Y: 50}},
		Volume:  &VolumeAggregate{StressAcceleration: q},
	}

	got, err := m.Predict(Observer{Position: r3.Vec{X: r}}, agg)
	if err != nil {
		t.Fatal(err)
	}
	want := 1 / (4 * math.Pi * c * c * r)
	if math.Abs(got.Pressure-want) > 1e-18 {
		t.Errorf("expected p' = %g, got %g", want, got.Pressure)
	}

	// an isotropic rate contributes 3 l.Q.l - tr Q = 0
	agg.Volume = &VolumeAggregate{StressRate: field.Spherical(5)}
	got, err = m.Predict(Observer{Position: r3.Vec{X: r}}, agg)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got.Pressure) > 1e-15 {
		t.Errorf("expected isotropic stress rate to be silent, got %g", got.Pressure)
	}
}

func TestPredictSingular(t *testing.T) {
	m := NewObserverModel(Settings{CRef: 343, MinDistance: 1e-3})

	agg := Aggregates{Surface: SurfaceAggregate{Centroid: r3.Vec{X: 1}, ForceRate: r3.Vec{X: 1}}}
	_, err := m.Predict(Observer{Name: "on-surface", Position: r3.Vec{X: 1, Y: 5e-4}}, agg)
	var sge *SingularGeometryError
	if !errors.As(err, &sge) {
		t.Fatalf("expected SingularGeometryError, got %v", err)
	}
	if sge.Observer != "on-surface" || sge.Min != 1e-3 {
		t.Errorf("unexpected error fields %+v", sge)
	}

	agg.Volume = &VolumeAggregate{Centroid: r3.Vec{Z: 2}}
	if _, err := m.Predict(Observer{Name: "in-zone", Position: r3.Vec{Z: 2}}, agg); !errors.As(err, &sge) {
		t.Fatalf("expected SingularGeometryError at the zone centroid, got %v", err)
	}
}

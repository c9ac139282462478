package field

import (
	"errors"
	"math"
	"testing"

	"github.com/chrissnell/curle/internal/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestTensorAlgebra(t *testing.T) {
	a := r3.Vec{X: 1, Y: 2, Z: 3}
	b := r3.Vec{X: -1, Y: 0.5, Z: 2}

	o := Outer(a, b)
	if o.At(1, 2) != 4 || o.At(2, 0) != -3 {
		t.Errorf("unexpected outer product %v", o)
	}
	if math.Abs(o.Trace()-r3.Dot(a, b)) > 1e-12 {
		t.Errorf("trace of outer product should equal dot product")
	}

	// a.(a⊗b).b = |a|^2 |b|^2
	want := r3.Dot(a, a) * r3.Dot(b, b)
	if got := o.Contract(a, b); math.Abs(got-want) > 1e-12 {
		t.Errorf("expected contraction %v, got %v", want, got)
	}

	s := Spherical(2)
	if got := s.Dot(a); got != r3.Scale(2, a) {
		t.Errorf("spherical tensor should scale vectors, got %v", got)
	}

	sum := o.Add(s).Sub(o).Scale(0.5)
	if sum != Spherical(1) {
		t.Errorf("expected identity, got %v", sum)
	}
}

func TestObjectRegistry(t *testing.T) {
	m, _ := mesh.NewBox(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, 2, 1, 1)
	r := NewObjectRegistry()
	r.StoreScalar(NewScalarField("p", m))
	r.StoreVector(NewVectorField("U", m))

	if _, err := r.LookupScalar("p"); err != nil {
		t.Errorf("LookupScalar(p): %v", err)
	}
	if _, err := r.LookupVector("U"); err != nil {
		t.Errorf("LookupVector(U): %v", err)
	}

	tests := []struct {
		name   string
		lookup func() error
		reason string
	}{
		{"missing scalar", func() error { _, err := r.LookupScalar("T"); return err }, "not registered"},
		{"vector as scalar", func() error { _, err := r.LookupScalar("U"); return err }, "registered as a vector field"},
		{"scalar as vector", func() error { _, err := r.LookupVector("p"); return err }, "registered as a scalar field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var nf *NotFoundError
			if err := tt.lookup(); !errors.As(err, &nf) {
				t.Fatalf("expected NotFoundError, got %v", err)
			}
			if nf.Reason != tt.reason {
				t.Errorf("expected reason %q, got %q", tt.reason, nf.Reason)
			}
		})
	}
}

func TestRestrictAndCheckSize(t *testing.T) {
	m, _ := mesh.NewBox(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, 4, 2, 1)
	p := NewScalarField("p", m)
	for i := range p.Internal {
		p.Internal[i] = float64(i)
	}
	for patchi := range p.Boundary {
		for i := range p.Boundary[patchi] {
			p.Boundary[patchi][i] = float64(100*patchi + i)
		}
	}
	if err := p.CheckSize(m); err != nil {
		t.Fatalf("CheckSize: %v", err)
	}

	parts, err := mesh.Decompose(m, 2)
	if err != nil {
		t.Fatal(err)
	}
	for _, part := range parts {
		lp := p.Restrict(part)
		if err := lp.CheckSize(part.Mesh); err != nil {
			t.Fatalf("restricted field does not fit partition: %v", err)
		}
		for i, c := range part.CellAddressing {
			if lp.Internal[i] != float64(c) {
				t.Errorf("cell %d: expected %v, got %v", i, float64(c), lp.Internal[i])
			}
		}
	}

	short := p.Clone()
	short.Internal = short.Internal[:3]
	if err := short.CheckSize(m); err == nil {
		t.Error("expected size mismatch error")
	}

	scaled := p.Clone()
	scaled.Scale(2)
	if scaled.Internal[3] != 6 || p.Internal[3] != 3 {
		t.Error("Scale should act on the clone only")
	}
}

// Package field holds cell- and face-centred flow fields and the registry a
// host uses to publish them by name.
package field

import (
	"fmt"

	"github.com/chrissnell/curle/internal/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// ScalarField is a cell-centred scalar with values on every boundary patch face
type ScalarField struct {
	Name string
	// Kinematic marks a pressure stored divided by density, as incompressible
	// solvers do.
	Kinematic bool
	Internal  []float64
	Boundary  [][]float64
}

// VectorField is a cell-centred vector with values on every boundary patch face
type VectorField struct {
	Name     string
	Internal []r3.Vec
	Boundary [][]r3.Vec
}

// TensorField holds tensors over a region of cells. Values[i] belongs to
// cell Cells[i].
type TensorField struct {
	Name   string
	Cells  []int
	Values []Tensor
}

// NewScalarField returns a zero scalar field sized for m
func NewScalarField(name string, m *mesh.Mesh) *ScalarField {
	f := &ScalarField{
		Name:     name,
		Internal: make([]float64, m.NCells()),
		Boundary: make([][]float64, len(m.Patches)),
	}
	for i := range m.Patches {
		f.Boundary[i] = make([]float64, m.Patches[i].Size())
	}
	return f
}

// NewVectorField returns a zero vector field sized for m
func NewVectorField(name string, m *mesh.Mesh) *VectorField {
	f := &VectorField{
		Name:     name,
		Internal: make([]r3.Vec, m.NCells()),
		Boundary: make([][]r3.Vec, len(m.Patches)),
	}
	for i := range m.Patches {
		f.Boundary[i] = make([]r3.Vec, m.Patches[i].Size())
	}
	return f
}

// NewTensorField returns a zero tensor field over the given cells
func NewTensorField(name string, cells []int) *TensorField {
	return &TensorField{
		Name:   name,
		Cells:  cells,
		Values: make([]Tensor, len(cells)),
	}
}

// CheckSize reports whether f matches the layout of m
func (f *ScalarField) CheckSize(m *mesh.Mesh) error {
	if len(f.Internal) != m.NCells() {
		return fmt.Errorf("%d internal values for %d cells", len(f.Internal), m.NCells())
	}
	if len(f.Boundary) != len(m.Patches) {
		return fmt.Errorf("%d boundary patches for %d mesh patches", len(f.Boundary), len(m.Patches))
	}
	for i := range m.Patches {
		if len(f.Boundary[i]) != m.Patches[i].Size() {
			return fmt.Errorf("patch %q: %d values for %d faces", m.Patches[i].Name, len(f.Boundary[i]), m.Patches[i].Size())
		}
	}
	return nil
}

// CheckSize reports whether f matches the layout of m
func (f *VectorField) CheckSize(m *mesh.Mesh) error {
	if len(f.Internal) != m.NCells() {
		return fmt.Errorf("%d internal values for %d cells", len(f.Internal), m.NCells())
	}
	if len(f.Boundary) != len(m.Patches) {
		return fmt.Errorf("%d boundary patches for %d mesh patches", len(f.Boundary), len(m.Patches))
	}
	for i := range m.Patches {
		if len(f.Boundary[i]) != m.Patches[i].Size() {
			return fmt.Errorf("patch %q: %d values for %d faces", m.Patches[i].Name, len(f.Boundary[i]), m.Patches[i].Size())
		}
	}
	return nil
}

// Clone returns a deep copy of f
func (f *ScalarField) Clone() *ScalarField {
	c := &ScalarField{
		Name:      f.Name,
		Kinematic: f.Kinematic,
		Internal:  append([]float64(nil), f.Internal...),
		Boundary:  make([][]float64, len(f.Boundary)),
	}
	for i := range f.Boundary {
		c.Boundary[i] = append([]float64(nil), f.Boundary[i]...)
	}
	return c
}

// Clone returns a deep copy of f
func (f *VectorField) Clone() *VectorField {
	c := &VectorField{
		Name:     f.Name,
		Internal: append([]r3.Vec(nil), f.Internal...),
		Boundary: make([][]r3.Vec, len(f.Boundary)),
	}
	for i := range f.Boundary {
		c.Boundary[i] = append([]r3.Vec(nil), f.Boundary[i]...)
	}
	return c
}

// Scale multiplies every value of f by s in place
func (f *ScalarField) Scale(s float64) {
	for i := range f.Internal {
		f.Internal[i] *= s
	}
	for _, b := range f.Boundary {
		for i := range b {
			b[i] *= s
		}
	}
}

// Restrict returns the part of f that lives on partition p
func (f *ScalarField) Restrict(p mesh.Partition) *ScalarField {
	r := &ScalarField{
		Name:      f.Name,
		Kinematic: f.Kinematic,
		Internal:  make([]float64, len(p.CellAddressing)),
		Boundary:  make([][]float64, len(p.FaceAddressing)),
	}
	for i, c := range p.CellAddressing {
		r.Internal[i] = f.Internal[c]
	}
	for patchi, faces := range p.FaceAddressing {
		r.Boundary[patchi] = make([]float64, len(faces))
		for i, facei := range faces {
			r.Boundary[patchi][i] = f.Boundary[patchi][facei]
		}
	}
	return r
}

// Restrict returns the part of f that lives on partition p
func (f *VectorField) Restrict(p mesh.Partition) *VectorField {
	r := &VectorField{
		Name:     f.Name,
		Internal: make([]r3.Vec, len(p.CellAddressing)),
		Boundary: make([][]r3.Vec, len(p.FaceAddressing)),
	}
	for i, c := range p.CellAddressing {
		r.Internal[i] = f.Internal[c]
	}
	for patchi, faces := range p.FaceAddressing {
		r.Boundary[patchi] = make([]r3.Vec, len(faces))
		for i, facei := range faces {
			r.Boundary[patchi][i] = f.Boundary[patchi][facei]
		}
	}
	return r
}

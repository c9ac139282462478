package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Patch names of a box mesh, in patch ID order
var BoxPatchNames = []string{"xMin", "xMax", "yMin", "yMax", "zMin", "zMax"}

// NewBox builds a structured hexahedral mesh of nx*ny*nz cells filling the
// box [origin, origin+size]. Each of the six box sides becomes a patch.
func NewBox(origin, size r3.Vec, nx, ny, nz int) (*Mesh, error) {
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, fmt.Errorf("box needs at least one cell in each direction, got %dx%dx%d", nx, ny, nz)
	}
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return nil, fmt.Errorf("box size must be positive, got %v", size)
	}

	d := r3.Vec{X: size.X / float64(nx), Y: size.Y / float64(ny), Z: size.Z / float64(nz)}
	vol := d.X * d.Y * d.Z
	cell := func(i, j, k int) int { return i + nx*(j+ny*k) }

	m := &Mesh{
		CellCentres: make([]r3.Vec, 0, nx*ny*nz),
		CellVolumes: make([]float64, 0, nx*ny*nz),
	}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				m.CellCentres = append(m.CellCentres, r3.Vec{
					X: origin.X + (float64(i)+0.5)*d.X,
					Y: origin.Y + (float64(j)+0.5)*d.Y,
					Z: origin.Z + (float64(k)+0.5)*d.Z,
				})
				m.CellVolumes = append(m.CellVolumes, vol)
			}
		}
	}

	far := r3.Add(origin, size)
	m.Patches = make([]Patch, len(BoxPatchNames))
	for p, name := range BoxPatchNames {
		m.Patches[p].Name = name
	}

	// u and v are the half extents of the face
	add := func(p int, centre, sf, u, v r3.Vec, owner int) {
		corners := []r3.Vec{
			r3.Sub(r3.Sub(centre, u), v),
			r3.Sub(r3.Add(centre, u), v),
			r3.Add(r3.Add(centre, u), v),
			r3.Add(r3.Sub(centre, u), v),
		}
		m.Patches[p].FaceCentres = append(m.Patches[p].FaceCentres, centre)
		m.Patches[p].FacePoints = append(m.Patches[p].FacePoints, corners)
		m.Patches[p].FaceAreas = append(m.Patches[p].FaceAreas, sf)
		m.Patches[p].FaceCells = append(m.Patches[p].FaceCells, owner)
	}

	hx := r3.Vec{X: d.X / 2}
	hy := r3.Vec{Y: d.Y / 2}
	hz := r3.Vec{Z: d.Z / 2}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			y := origin.Y + (float64(j)+0.5)*d.Y
			z := origin.Z + (float64(k)+0.5)*d.Z
			add(0, r3.Vec{X: origin.X, Y: y, Z: z}, r3.Vec{X: -d.Y * d.Z}, hy, hz, cell(0, j, k))
			add(1, r3.Vec{X: far.X, Y: y, Z: z}, r3.Vec{X: d.Y * d.Z}, hy, hz, cell(nx-1, j, k))
		}
	}
	for k := 0; k < nz; k++ {
		for i := 0; i < nx; i++ {
			x := origin.X + (float64(i)+0.5)*d.X
			z := origin.Z + (float64(k)+0.5)*d.Z
			add(2, r3.Vec{X: x, Y: origin.Y, Z: z}, r3.Vec{Y: -d.X * d.Z}, hx, hz, cell(i, 0, k))
			add(3, r3.Vec{X: x, Y: far.Y, Z: z}, r3.Vec{Y: d.X * d.Z}, hx, hz, cell(i, ny-1, k))
		}
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			x := origin.X + (float64(i)+0.5)*d.X
			y := origin.Y + (float64(j)+0.5)*d.Y
			add(4, r3.Vec{X: x, Y: y, Z: origin.Z}, r3.Vec{Z: -d.X * d.Y}, hx, hy, cell(i, j, 0))
			add(5, r3.Vec{X: x, Y: y, Z: far.Z}, r3.Vec{Z: d.X * d.Y}, hx, hy, cell(i, j, nz-1))
		}
	}

	return m, nil
}

// AddZone appends a cell zone containing every cell whose centre lies
// inside the axis-aligned box [lo, hi] and returns its ID.
func (m *Mesh) AddZone(name string, lo, hi r3.Vec) (int, error) {
	if m.FindZoneID(name) >= 0 {
		return -1, fmt.Errorf("cell zone %q already exists", name)
	}

	z := CellZone{Name: name}
	for c, x := range m.CellCentres {
		if x.X >= lo.X && x.X <= hi.X && x.Y >= lo.Y && x.Y <= hi.Y && x.Z >= lo.Z && x.Z <= hi.Z {
			z.Cells = append(z.Cells, c)
		}
	}
	if len(z.Cells) == 0 {
		return -1, fmt.Errorf("cell zone %q selects no cells", name)
	}

	m.CellZones = append(m.CellZones, z)
	return len(m.CellZones) - 1, nil
}

// RenamePatch renames a patch in place
func (m *Mesh) RenamePatch(from, to string) error {
	id := m.FindPatchID(from)
	if id < 0 {
		return fmt.Errorf("no patch named %q", from)
	}
	if m.FindPatchID(to) >= 0 {
		return fmt.Errorf("patch %q already exists", to)
	}
	m.Patches[id].Name = to
	return nil
}

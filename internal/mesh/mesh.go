// Package mesh holds the read-only geometry of a finite-volume mesh: cell
// centres and volumes, named boundary patches and named cell zones.
package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is the geometry the acoustic engine integrates over. Patch and zone
// IDs are indexes into Patches and CellZones.
type Mesh struct {
	CellCentres []r3.Vec
	CellVolumes []float64
	Patches     []Patch
	CellZones   []CellZone
}

// Patch is a named portion of the boundary
type Patch struct {
	Name        string
	FaceCentres []r3.Vec
	// FaceAreas are the face area vectors (Sf): unit normal pointing out of
	// the domain times the face area.
	FaceAreas []r3.Vec
	// FaceCells is the owner cell of each face.
	FaceCells []int
	// FacePoints are the vertices of each face in boundary order. Optional.
	FacePoints [][]r3.Vec
}

// Size returns the number of faces on the patch
func (p *Patch) Size() int {
	return len(p.FaceCentres)
}

// CellZone is a named subset of cells
type CellZone struct {
	Name  string
	Cells []int
}

// NCells returns the number of cells
func (m *Mesh) NCells() int {
	return len(m.CellCentres)
}

// FindPatchID returns the ID of the named patch, or -1
func (m *Mesh) FindPatchID(name string) int {
	for i := range m.Patches {
		if m.Patches[i].Name == name {
			return i
		}
	}
	return -1
}

// FindZoneID returns the ID of the named cell zone, or -1
func (m *Mesh) FindZoneID(name string) int {
	for i := range m.CellZones {
		if m.CellZones[i].Name == name {
			return i
		}
	}
	return -1
}

// Validate checks that the addressing of the mesh is self-consistent.
func (m *Mesh) Validate() error {
	if len(m.CellVolumes) != len(m.CellCentres) {
		return fmt.Errorf("mesh has %d cell centres but %d cell volumes", len(m.CellCentres), len(m.CellVolumes))
	}

	seen := make(map[string]bool, len(m.Patches))
	for i, p := range m.Patches {
		if p.Name == "" {
			return fmt.Errorf("patch %d has no name", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate patch name %q", p.Name)
		}
		seen[p.Name] = true

		if len(p.FaceAreas) != len(p.FaceCentres) || len(p.FaceCells) != len(p.FaceCentres) {
			return fmt.Errorf("patch %q: face centres, areas and owner cells differ in length", p.Name)
		}
		if p.FacePoints != nil && len(p.FacePoints) != len(p.FaceCentres) {
			return fmt.Errorf("patch %q: %d faces but %d point lists", p.Name, len(p.FaceCentres), len(p.FacePoints))
		}
		for i, pts := range p.FacePoints {
			if len(pts) < 3 {
				return fmt.Errorf("patch %q: face %d has %d points", p.Name, i, len(pts))
			}
		}
		for _, c := range p.FaceCells {
			if c < 0 || c >= m.NCells() {
				return fmt.Errorf("patch %q: owner cell %d out of range", p.Name, c)
			}
		}
	}

	for _, z := range m.CellZones {
		for _, c := range z.Cells {
			if c < 0 || c >= m.NCells() {
				return fmt.Errorf("cell zone %q: cell %d out of range", z.Name, c)
			}
		}
	}

	return nil
}

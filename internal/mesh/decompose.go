package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Partition is one processor's share of a decomposed mesh. The addressing
// maps local indexes back to the parent mesh so fields can be restricted to
// the partition.
type Partition struct {
	Mesh *Mesh
	// CellAddressing maps local cell -> parent cell
	CellAddressing []int
	// FaceAddressing maps, per patch, local face -> parent face
	FaceAddressing [][]int
}

// Decompose splits m into n partitions of contiguous cell blocks. Boundary
// faces follow their owner cell. Every partition keeps the full list of
// patches and zones, possibly empty, so IDs stay valid on all partitions.
func Decompose(m *Mesh, n int) ([]Partition, error) {
	if n < 1 {
		return nil, fmt.Errorf("cannot decompose into %d partitions", n)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	nCells := m.NCells()
	owner := make([]int, nCells)
	local := make([]int, nCells)

	parts := make([]Partition, n)
	for proc := range parts {
		parts[proc].Mesh = &Mesh{
			Patches:   make([]Patch, len(m.Patches)),
			CellZones: make([]CellZone, len(m.CellZones)),
		}
		parts[proc].FaceAddressing = make([][]int, len(m.Patches))
	}

	for c := 0; c < nCells; c++ {
		proc := c * n / max(nCells, 1)
		owner[c] = proc
		pm := parts[proc].Mesh
		local[c] = len(pm.CellCentres)
		pm.CellCentres = append(pm.CellCentres, m.CellCentres[c])
		pm.CellVolumes = append(pm.CellVolumes, m.CellVolumes[c])
		parts[proc].CellAddressing = append(parts[proc].CellAddressing, c)
	}

	for patchi, p := range m.Patches {
		for proc := range parts {
			parts[proc].Mesh.Patches[patchi] = Patch{
				Name:        p.Name,
				FaceCentres: []r3.Vec{},
				FaceAreas:   []r3.Vec{},
				FaceCells:   []int{},
			}
		}
		for facei, c := range p.FaceCells {
			proc := owner[c]
			lp := &parts[proc].Mesh.Patches[patchi]
			lp.FaceCentres = append(lp.FaceCentres, p.FaceCentres[facei])
			lp.FaceAreas = append(lp.FaceAreas, p.FaceAreas[facei])
			lp.FaceCells = append(lp.FaceCells, local[c])
			if p.FacePoints != nil {
				lp.FacePoints = append(lp.FacePoints, p.FacePoints[facei])
			}
			parts[proc].FaceAddressing[patchi] = append(parts[proc].FaceAddressing[patchi], facei)
		}
	}

	for zonei, z := range m.CellZones {
		for proc := range parts {
			parts[proc].Mesh.CellZones[zonei] = CellZone{Name: z.Name, Cells: []int{}}
		}
		for _, c := range z.Cells {
			lz := &parts[owner[c]].Mesh.CellZones[zonei]
			lz.Cells = append(lz.Cells, local[c])
		}
	}

	return parts, nil
}

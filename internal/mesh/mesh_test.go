package mesh

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestNewBox(t *testing.T) {
	m, err := NewBox(r3.Vec{X: -1, Y: -1, Z: 0}, r3.Vec{X: 2, Y: 1, Z: 0.5}, 4, 2, 1)
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if m.NCells() != 8 {
		t.Fatalf("expected 8 cells, got %d", m.NCells())
	}

	var vol float64
	for _, v := range m.CellVolumes {
		vol += v
	}
	if math.Abs(vol-1.0) > 1e-12 {
		t.Errorf("expected total volume 1, got %v", vol)
	}

	tests := []struct {
		patch string
		faces int
		area  r3.Vec
	}{
		{"xMin", 2, r3.Vec{X: -0.5}},
		{"xMax", 2, r3.Vec{X: 0.5}},
		{"yMin", 4, r3.Vec{Y: -1}},
		{"yMax", 4, r3.Vec{Y: 1}},
		{"zMin", 8, r3.Vec{Z: -2}},
		{"zMax", 8, r3.Vec{Z: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.patch, func(t *testing.T) {
			id := m.FindPatchID(tt.patch)
			if id < 0 {
				t.Fatalf("patch %q not found", tt.patch)
			}
			p := m.Patches[id]
			if p.Size() != tt.faces {
				t.Errorf("expected %d faces, got %d", tt.faces, p.Size())
			}
			var sum r3.Vec
			for _, sf := range p.FaceAreas {
				sum = r3.Add(sum, sf)
			}
			if r3.Norm(r3.Sub(sum, tt.area)) > 1e-12 {
				t.Errorf("expected total area vector %v, got %v", tt.area, sum)
			}
		})
	}

	if m.FindPatchID("cylinder") != -1 {
		t.Error("expected -1 for unknown patch")
	}
}

func TestNewBoxRejectsDegenerate(t *testing.T) {
	if _, err := NewBox(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, 0, 1, 1); err == nil {
		t.Error("expected error for zero cells")
	}
	if _, err := NewBox(r3.Vec{}, r3.Vec{X: 1, Y: -1, Z: 1}, 1, 1, 1); err == nil {
		t.Error("expected error for negative size")
	}
}

func TestAddZone(t *testing.T) {
	m, err := NewBox(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, 4, 4, 1)
	if err != nil {
		t.Fatal(err)
	}

	id, err := m.AddZone("wake", r3.Vec{X: 0.5, Y: 0, Z: 0}, r3.Vec{X: 1, Y: 0.5, Z: 1})
	if err != nil {
		t.Fatalf("AddZone: %v", err)
	}
	if got := len(m.CellZones[id].Cells); got != 4 {
		t.Errorf("expected 4 zone cells, got %d", got)
	}
	if m.FindZoneID("wake") != id {
		t.Error("zone lookup failed")
	}

	if _, err := m.AddZone("wake", r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}); err == nil {
		t.Error("expected duplicate zone error")
	}
	if _, err := m.AddZone("empty", r3.Vec{X: 5}, r3.Vec{X: 6}); err == nil {
		t.Error("expected error for empty zone")
	}
}

func TestRenamePatch(t *testing.T) {
	m, _ := NewBox(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, 1, 1, 1)

	if err := m.RenamePatch("yMin", "plate"); err != nil {
		t.Fatalf("RenamePatch: %v", err)
	}
	if m.FindPatchID("plate") != 2 {
		t.Error("renamed patch should keep its ID")
	}
	if err := m.RenamePatch("yMin", "other"); err == nil {
		t.Error("expected error renaming a missing patch")
	}
	if err := m.RenamePatch("xMin", "plate"); err == nil {
		t.Error("expected error renaming onto an existing name")
	}
}

func TestDecompose(t *testing.T) {
	m, err := NewBox(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, 5, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddZone("core", r3.Vec{X: 0.2, Y: 0.2}, r3.Vec{X: 0.8, Y: 0.8, Z: 1}); err != nil {
		t.Fatal(err)
	}

	for _, n := range []int{1, 2, 3, 7} {
		parts, err := Decompose(m, n)
		if err != nil {
			t.Fatalf("Decompose(%d): %v", n, err)
		}
		if len(parts) != n {
			t.Fatalf("expected %d partitions, got %d", n, len(parts))
		}

		cells, zoneCells := 0, 0
		faces := make([]int, len(m.Patches))
		for _, p := range parts {
			if err := p.Mesh.Validate(); err != nil {
				t.Fatalf("partition invalid: %v", err)
			}
			cells += p.Mesh.NCells()
			zoneCells += len(p.Mesh.CellZones[0].Cells)
			for patchi := range m.Patches {
				faces[patchi] += p.Mesh.Patches[patchi].Size()
				for i, facei := range p.FaceAddressing[patchi] {
					if p.Mesh.Patches[patchi].FaceCentres[i] != m.Patches[patchi].FaceCentres[facei] {
						t.Fatalf("face addressing mismatch on patch %d", patchi)
					}
					if p.Mesh.Patches[patchi].FacePoints[i][0] != m.Patches[patchi].FacePoints[facei][0] {
						t.Fatalf("face points not carried to the partition on patch %d", patchi)
					}
				}
			}
			for i, c := range p.CellAddressing {
				if p.Mesh.CellCentres[i] != m.CellCentres[c] {
					t.Fatal("cell addressing mismatch")
				}
			}
		}

		if cells != m.NCells() {
			t.Errorf("n=%d: expected %d cells, got %d", n, m.NCells(), cells)
		}
		if zoneCells != len(m.CellZones[0].Cells) {
			t.Errorf("n=%d: expected %d zone cells, got %d", n, len(m.CellZones[0].Cells), zoneCells)
		}
		for patchi := range m.Patches {
			if faces[patchi] != m.Patches[patchi].Size() {
				t.Errorf("n=%d patch %d: expected %d faces, got %d", n, patchi, m.Patches[patchi].Size(), faces[patchi])
			}
		}
	}

	if _, err := Decompose(m, 0); err == nil {
		t.Error("expected error for zero partitions")
	}
}

func TestFaceDistance(t *testing.T) {
	m, err := NewBox(r3.Vec{}, r3.Vec{X: 2, Y: 1, Z: 1}, 1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	// the yMin face spans x in [0, 2], z in [0, 1] at y = 0
	p := &m.Patches[m.FindPatchID("yMin")]
	if len(p.FacePoints[0]) != 4 {
		t.Fatalf("expected 4 face points, got %d", len(p.FacePoints[0]))
	}

	tests := []struct {
		name string
		x    r3.Vec
		want float64
	}{
		{"centre", r3.Vec{X: 1, Z: 0.5}, 0},
		{"on the face near a corner", r3.Vec{X: 1.9, Z: 0.05}, 0},
		{"on an edge", r3.Vec{X: 2, Z: 0.3}, 0},
		{"in front", r3.Vec{X: 0.2, Y: -0.7, Z: 0.9}, 0.7},
		{"behind", r3.Vec{X: 1.5, Y: 0.25, Z: 0.5}, 0.25},
		{"beside an edge", r3.Vec{X: 3, Z: 0.5}, 1},
		{"off a corner", r3.Vec{X: -1, Y: -2, Z: 3}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.FaceDistance(0, tt.x); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("expected distance %v, got %v", tt.want, got)
			}
		})
	}

	// without points the face is bounded by a sphere
	bare := Patch{Name: "bare", FaceCentres: p.FaceCentres, FaceAreas: p.FaceAreas, FaceCells: p.FaceCells}
	if got := bare.FaceDistance(0, r3.Vec{X: 1.5, Z: 0.6}); got != 0 {
		t.Errorf("expected zero inside the bounding sphere, got %v", got)
	}
	if got, want := bare.FaceDistance(0, r3.Vec{X: 1, Y: -5, Z: 0.5}), 4.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %v, got %v", want, got)
	}
}

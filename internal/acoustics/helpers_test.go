package acoustics

import (
	"context"
	"errors"
	"testing"

	"github.com/chrissnell/curle/internal/field"
	"github.com/chrissnell/curle/internal/mesh"
	"github.com/chrissnell/curle/internal/storage"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

type testHost struct {
	mesh   *mesh.Mesh
	reg    *field.ObjectRegistry
	time   float64
	deltaT float64
}

func (h *testHost) Mesh() *mesh.Mesh        { return h.mesh }
func (h *testHost) Fields() field.Registry { return h.reg }
func (h *testHost) Time() float64          { return h.time }
func (h *testHost) DeltaT() float64        { return h.deltaT }

// newPlateHost builds a 1 x 1 x 0.1 box whose yMin side is the patch
// "plate" and whose x > 0 half is the cell zone "wake".
func newPlateHost(t *testing.T) *testHost {
	t.Helper()

	m, err := mesh.NewBox(r3.Vec{X: -0.5, Y: -0.5, Z: -0.05}, r3.Vec{X: 1, Y: 1, Z: 0.1}, 4, 4, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.RenamePatch("yMin", "plate"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddZone("wake", r3.Vec{X: 0, Y: -1, Z: -1}, r3.Vec{X: 1, Y: 1, Z: 1}); err != nil {
		t.Fatal(err)
	}

	h := &testHost{mesh: m, reg: field.NewObjectRegistry(), deltaT: 1e-3}
	h.set(func(r3.Vec) float64 { return 0 }, func(r3.Vec) r3.Vec { return r3.Vec{} })
	return h
}

// set publishes p and U evaluated at cell and face centres
func (h *testHost) set(p func(r3.Vec) float64, u func(r3.Vec) r3.Vec) {
	pf := field.NewScalarField("p", h.mesh)
	uf := field.NewVectorField("U", h.mesh)
	for c, x := range h.mesh.CellCentres {
		pf.Internal[c] = p(x)
		uf.Internal[c] = u(x)
	}
	for patchi, patch := range h.mesh.Patches {
		for i, x := range patch.FaceCentres {
			pf.Boundary[patchi][i] = p(x)
			uf.Boundary[patchi][i] = u(x)
		}
	}
	h.reg.StoreScalar(pf)
	h.reg.StoreVector(uf)
}

func (h *testHost) setUniform(p float64, u r3.Vec) {
	h.set(func(r3.Vec) float64 { return p }, func(r3.Vec) r3.Vec { return u })
}

func plateSettings() Settings {
	return Settings{
		Name:    "Curle1",
		Patches: []string{"plate"},
		RhoRef:  1.225,
		CRef:    343,
		Observers: []Observer{
			{Name: "microphone-A", Position: r3.Vec{X: -0.4760595, Y: 1.58962725, Z: 0}},
		},
	}
}

func quietLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

type failingFactory struct {
	openErr   error
	appendErr error
}

func (f *failingFactory) Open(_ context.Context, streams []storage.Stream) ([]storage.Channel, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	channels := make([]storage.Channel, len(streams))
	for i := range streams {
		channels[i] = &failingChannel{err: f.appendErr}
	}
	return channels, nil
}

type failingChannel struct {
	err error
}

func (c *failingChannel) Append(context.Context, storage.Record) error { return c.err }
func (c *failingChannel) Close() error                                 { return nil }

var errDiskFull = errors.New("disk full")

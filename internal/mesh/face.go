package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// FaceDistance returns the distance from x to face i of the patch. Faces
// with points are treated as planar convex polygons. Without points the
// face is bounded by the sphere through the corners of a square of the
// same area, so the result never exceeds the true distance to a square
// face.
func (p *Patch) FaceDistance(i int, x r3.Vec) float64 {
	c := p.FaceCentres[i]
	if i >= len(p.FacePoints) || len(p.FacePoints[i]) < 3 {
		radius := math.Sqrt(r3.Norm(p.FaceAreas[i]) / 2)
		return math.Max(0, r3.Norm(r3.Sub(x, c))-radius)
	}

	pts := p.FacePoints[i]
	n := r3.Unit(p.FaceAreas[i])
	h := r3.Dot(r3.Sub(x, c), n)
	q := r3.Sub(x, r3.Scale(h, n))

	var pos, neg bool
	for j := range pts {
		a, b := pts[j], pts[(j+1)%len(pts)]
		side := r3.Dot(r3.Cross(r3.Sub(b, a), r3.Sub(q, a)), n)
		pos = pos || side > 0
		neg = neg || side < 0
	}
	if !(pos && neg) {
		return math.Abs(h)
	}

	d := math.Inf(1)
	for j := range pts {
		d = math.Min(d, segmentDistance(x, pts[j], pts[(j+1)%len(pts)]))
	}
	return d
}

func segmentDistance(x, a, b r3.Vec) float64 {
	ab := r3.Sub(b, a)
	t := 0.0
	if l2 := r3.Dot(ab, ab); l2 > 0 {
		t = math.Max(0, math.Min(1, r3.Dot(r3.Sub(x, a), ab)/l2))
	}
	return r3.Norm(r3.Sub(x, r3.Add(a, r3.Scale(t, ab))))
}

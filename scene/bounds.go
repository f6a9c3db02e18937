package scene

import "math"

// localExtents is the untransformed half-size of each primitive at its
// default construction parameters.
var localExtents = map[Kind]Vec3{
	KindCube:     {0.5, 0.5, 0.5},
	KindSphere:   {1, 1, 1},
	KindCylinder: {1, 1, 1},
	KindCone:     {1, 1, 1},
	KindPlane:    {0.5, 0, 0.5},
	KindTorus:    {1.5, 0.5, 1.5},
}

// BoundingBox returns the world-space axis aligned box of the object as
// [xmin, ymin, zmin, xmax, ymax, zmax]. Point-like kinds collapse to their
// location.
func (o Object) BoundingBox() [6]float64 {
	ext := localExtents[o.Kind]
	lo := Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}

	for _, sx := range []float64{-1, 1} {
		for _, sy := range []float64{-1, 1} {
			for _, sz := range []float64{-1, 1} {
				p := Vec3{sx * ext[0] * o.Scale[0], sy * ext[1] * o.Scale[1], sz * ext[2] * o.Scale[2]}
				p = rotateXYZ(p, o.Rotation)
				for i := range p {
					p[i] += o.Location[i]
					lo[i] = math.Min(lo[i], p[i])
					hi[i] = math.Max(hi[i], p[i])
				}
			}
		}
	}
	return [6]float64{
		Round(lo[0], 4), Round(lo[1], 4), Round(lo[2], 4),
		Round(hi[0], 4), Round(hi[1], 4), Round(hi[2], 4),
	}
}

// rotateXYZ applies X, then Y, then Z rotations given in degrees.
func rotateXYZ(p, deg Vec3) Vec3 {
	rx, ry, rz := deg[0]*math.Pi/180, deg[1]*math.Pi/180, deg[2]*math.Pi/180

	sin, cos := math.Sincos(rx)
	p = Vec3{p[0], p[1]*cos - p[2]*sin, p[1]*sin + p[2]*cos}

	sin, cos = math.Sincos(ry)
	p = Vec3{p[0]*cos + p[2]*sin, p[1], -p[0]*sin + p[2]*cos}

	sin, cos = math.Sincos(rz)
	return Vec3{p[0]*cos - p[1]*sin, p[0]*sin + p[1]*cos, p[2]}
}

// Round rounds v to the given number of decimal places. Negative zero is
// normalised to zero.
func Round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	r := math.Round(v*pow) / pow
	if r == 0 {
		return 0
	}
	return r
}

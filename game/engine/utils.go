package engine

import "math"

// Add returns v + o
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v - o
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Scale returns v * s
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Len returns the Euclidean length of v
func (v Vec3) Len() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Lerp moves v toward o by fraction t
func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	return Vec3{
		X: v.X + (o.X-v.X)*t,
		Y: v.Y + (o.Y-v.Y)*t,
		Z: v.Z + (o.Z-v.Z)*t,
	}
}

// PlanarDistance is the distance between a and b on the ground plane,
// ignoring height.
func PlanarDistance(a, b Vec3) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// HeadingVector returns the unit ground-plane direction for a heading
func HeadingVector(heading float64) Vec3 {
	return Vec3{X: math.Cos(heading), Y: math.Sin(heading)}
}

// NearestPathPoint returns the index of the path sample closest to p on the
// ground plane and its distance. It returns -1 for an empty path.
func NearestPathPoint(path []Vec3, p Vec3) (int, float64) {
	best := -1
	bestDist := math.MaxFloat64
	for i, pt := range path {
		d := PlanarDistance(pt, p)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best, bestDist
}

// PathTangent returns the heading from path[i] toward the following sample
func PathTangent(path []Vec3, i int) float64 {
	if len(path) < 2 {
		return 0
	}
	a := path[i%len(path)]
	b := path[(i+1)%len(path)]
	return math.Atan2(b.Y-a.Y, b.X-a.X)
}

// WrapAngle normalizes an angle into (-pi, pi]
func WrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

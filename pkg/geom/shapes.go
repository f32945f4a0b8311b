package geom

import "math"

// Centroid returns the arithmetic mean of the points.
// An empty slice yields the zero vector.
func Centroid(points []Vector3) Vector3 {
	if len(points) == 0 {
		return Zero
	}

	var sum Vector3
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Scale(1.0 / float64(len(points)))
}

// CirclePoints samples n points on a horizontal circle of the given radius
// around center, starting on +X and stepping 360/n degrees towards +Z.
func CirclePoints(center Vector3, radius float64, n int) []Vector3 {
	if n <= 0 {
		return []Vector3{}
	}

	points := make([]Vector3, n)
	step := 360.0 / float64(n)
	for i := 0; i < n; i++ {
		rad := DegToRad(float64(i) * step)
		points[i] = Vector3{
			X: center.X + radius*math.Cos(rad),
			Y: center.Y,
			Z: center.Z + radius*math.Sin(rad),
		}
	}
	return points
}

// RotateAround rotates p about the line through center along axis by the
// given angle in degrees (right-hand rule, Rodrigues' formula).
func RotateAround(p, center, axis Vector3, degrees float64) Vector3 {
	k := axis.Normalize()
	if k.IsZero() {
		return p
	}

	rad := DegToRad(degrees)
	cos, sin := math.Cos(rad), math.Sin(rad)
	offset := p.Sub(center)

	rotated := offset.Scale(cos).
		Add(k.Cross(offset).Scale(sin)).
		Add(k.Scale(k.Dot(offset) * (1 - cos)))

	return center.Add(rotated)
}

// DegToRad converts degrees to radians
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// RadToDeg converts radians to degrees
func RadToDeg(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

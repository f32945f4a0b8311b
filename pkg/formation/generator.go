package formation

import (
	"github.com/picogrid/swarm-nav/pkg/geom"
)

// Geometry constants of the parametric shapes
const (
	vWingSpread   = 0.8
	vWingClimb    = 2.5
	arrowTipRise  = 6.0
	arrowTailDrop = 4.0
	arrowWingTop  = 4.0
	arrowWingFall = 8.0
	arrowWingAft  = 1.5
	arrowTailAft  = 2.0
	columnStep    = 0.6

	// CustomFallbackSpacing is used when a custom pattern has no points
	CustomFallbackSpacing = 5.0
)

// Generate derives the slot positions of a parametric shape. It is pure and
// deterministic. A non-positive count yields an empty slice, as does a shape
// that needs extra input (circular staging, custom).
func Generate(shape Shape, agentCount int, altitude, spacing float64) []geom.Vector3 {
	if agentCount <= 0 {
		return []geom.Vector3{}
	}

	switch shape {
	case ShapeV:
		return generateV(agentCount, altitude, spacing)
	case ShapeArrow:
		return generateArrow(agentCount, altitude, spacing)
	case ShapeLine:
		return generateLine(agentCount, altitude, spacing)
	case ShapeVertical:
		return generateVertical(agentCount, altitude, spacing)
	default:
		return []geom.Vector3{}
	}
}

// New is Generate wrapped in a Formation value
func New(shape Shape, agentCount int, altitude, spacing float64) Formation {
	return Formation{Shape: shape, Positions: Generate(shape, agentCount, altitude, spacing)}
}

// splitWings divides count agents into a left and right wing, left gets the
// smaller half
func splitWings(count int) (left, right int) {
	if count <= 0 {
		return 0, 0
	}
	left = count / 2
	return left, count - left
}

func generateV(n int, altitude, spacing float64) []geom.Vector3 {
	positions := make([]geom.Vector3, n)
	positions[0] = geom.V(0, altitude, 0)

	left, right := splitWings(n - 1)
	for i := 1; i <= left; i++ {
		w := float64(i)
		positions[i] = geom.V(-spacing*w*vWingSpread, altitude+w*vWingClimb, 0)
	}
	for i := 1; i <= right; i++ {
		w := float64(i)
		positions[left+i] = geom.V(spacing*w*vWingSpread, altitude+w*vWingClimb, 0)
	}
	return positions
}

func generateArrow(n int, altitude, spacing float64) []geom.Vector3 {
	positions := make([]geom.Vector3, n)
	positions[0] = geom.V(0, altitude+arrowTipRise, 0)
	if n == 1 {
		return positions
	}

	depth := float64(n)
	positions[n-1] = geom.V(0, altitude-arrowTailDrop, -arrowTailAft*depth)

	left, right := splitWings(n - 2)
	wing := func(i, size int, side float64) geom.Vector3 {
		s := float64(i) / float64(size+1)
		return geom.V(
			side*spacing*float64(i),
			altitude+arrowWingTop-arrowWingFall*s,
			-arrowWingAft*s*depth,
		)
	}
	for i := 1; i <= left; i++ {
		positions[i] = wing(i, left, -1)
	}
	for i := 1; i <= right; i++ {
		positions[left+i] = wing(i, right, 1)
	}
	return positions
}

func generateLine(n int, altitude, spacing float64) []geom.Vector3 {
	positions := make([]geom.Vector3, n)
	startX := -float64(n-1) * spacing / 2
	for i := range positions {
		positions[i] = geom.V(startX+float64(i)*spacing, altitude, 0)
	}
	return positions
}

func generateVertical(n int, altitude, spacing float64) []geom.Vector3 {
	positions := make([]geom.Vector3, n)
	for i := range positions {
		positions[i] = geom.V(0, altitude+float64(i)*spacing*columnStep, 0)
	}
	return positions
}

// CircularStaging places agentCount staging points on a horizontal circle of
// radius around the center of target, at the center's altitude.
func CircularStaging(target []geom.Vector3, agentCount int, radius float64) []geom.Vector3 {
	if agentCount <= 0 {
		return []geom.Vector3{}
	}
	return geom.CirclePoints(geom.Centroid(target), radius, agentCount)
}

// Custom maps agentCount agents onto an arbitrary point set. With more agents
// than points, agents are spread across the points by nearest index; otherwise
// points are taken in order, wrapping around. Every Y is forced to altitude.
// An empty point set falls back to a line.
func Custom(points []geom.Vector3, agentCount int, altitude float64) []geom.Vector3 {
	if agentCount <= 0 {
		return []geom.Vector3{}
	}
	if len(points) == 0 {
		return generateLine(agentCount, altitude, CustomFallbackSpacing)
	}

	positions := make([]geom.Vector3, agentCount)
	if agentCount > len(points) {
		last := len(points) - 1
		for i := range positions {
			t := float64(i) / float64(agentCount-1)
			idx := int(t * float64(last))
			if idx > last {
				idx = last
			}
			positions[i] = withAltitude(points[idx], altitude)
		}
		return positions
	}

	for i := range positions {
		positions[i] = withAltitude(points[i%len(points)], altitude)
	}
	return positions
}

func withAltitude(p geom.Vector3, altitude float64) geom.Vector3 {
	p.Y = altitude
	return p
}

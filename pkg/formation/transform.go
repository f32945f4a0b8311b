package formation

import (
	"errors"
	"fmt"

	"github.com/picogrid/swarm-nav/pkg/geom"
)

// QualityErrorCap bounds the per-agent error counted by Quality
const QualityErrorCap = 2.0

// ErrLengthMismatch is returned when two formations have different sizes
var ErrLengthMismatch = errors.New("formation sizes differ")

// Center is the center of mass of a position set
func Center(positions []geom.Vector3) geom.Vector3 {
	return geom.Centroid(positions)
}

// Scale moves every position away from (factor > 1) or towards center
func Scale(positions []geom.Vector3, factor float64, center geom.Vector3) []geom.Vector3 {
	out := make([]geom.Vector3, len(positions))
	for i, p := range positions {
		out[i] = center.Add(p.Sub(center).Scale(factor))
	}
	return out
}

// Rotate turns every position about the axis through center
func Rotate(positions []geom.Vector3, degrees float64, center, axis geom.Vector3) []geom.Vector3 {
	out := make([]geom.Vector3, len(positions))
	for i, p := range positions {
		out[i] = geom.RotateAround(p, center, axis, degrees)
	}
	return out
}

// Morph interpolates slot by slot between two formations of the same size
func Morph(from, to []geom.Vector3, t float64) ([]geom.Vector3, error) {
	if len(from) != len(to) {
		return nil, fmt.Errorf("morph %d -> %d slots: %w", len(from), len(to), ErrLengthMismatch)
	}
	out := make([]geom.Vector3, len(from))
	for i := range from {
		out[i] = geom.Lerp(from[i], to[i], t)
	}
	return out, nil
}

// Quality scores how closely actual matches target on a 0-100 scale. Each
// agent's error is capped at QualityErrorCap before averaging. Mismatched or
// empty inputs score 0.
func Quality(actual, target []geom.Vector3) float64 {
	if len(actual) != len(target) || len(actual) == 0 {
		return 0
	}

	var total float64
	for i := range actual {
		total += min(actual[i].DistanceTo(target[i]), QualityErrorCap)
	}
	avg := total / float64(len(actual))
	return 100 * geom.Clamp01(1-avg/QualityErrorCap)
}

// Violation names a pair of slots closer than the allowed minimum
type Violation struct {
	I, J     int
	Distance float64
}

func (v Violation) Error() string {
	return fmt.Sprintf("slots %d and %d are %.2f apart", v.I, v.J, v.Distance)
}

// Validate checks that every pair of slots is at least minDistance apart and
// returns the first offending pair.
func Validate(positions []geom.Vector3, minDistance float64) error {
	for i := 0; i < len(positions); i++ {
		for j := i + 1; j < len(positions); j++ {
			if d := positions[i].DistanceTo(positions[j]); d < minDistance {
				return Violation{I: i, J: j, Distance: d}
			}
		}
	}
	return nil
}

// MinSeparation returns the smallest pairwise distance, or 0 with fewer than
// two positions
func MinSeparation(positions []geom.Vector3) float64 {
	if len(positions) < 2 {
		return 0
	}
	best := -1.0
	for i := 0; i < len(positions); i++ {
		for j := i + 1; j < len(positions); j++ {
			if d := positions[i].DistanceTo(positions[j]); best < 0 || d < best {
				best = d
			}
		}
	}
	return best
}

// VisitOrder is the order in which slots are handed out during assembly:
// tip, tail then wings for an arrow; center outward for a line; by index
// otherwise.
func VisitOrder(shape Shape, agentCount int) []int {
	if agentCount <= 0 {
		return []int{}
	}

	order := make([]int, 0, agentCount)
	switch shape {
	case ShapeArrow:
		order = append(order, 0)
		if agentCount > 1 {
			order = append(order, agentCount-1)
		}
		for i := 1; i < agentCount-1; i++ {
			order = append(order, i)
		}
	case ShapeLine:
		center := agentCount / 2
		order = append(order, center)
		for i := 1; i <= center; i++ {
			if center-i >= 0 {
				order = append(order, center-i)
			}
			if center+i < agentCount {
				order = append(order, center+i)
			}
		}
	default:
		for i := 0; i < agentCount; i++ {
			order = append(order, i)
		}
	}
	return order
}

package formation

import (
	"fmt"
	"strings"

	"github.com/picogrid/swarm-nav/pkg/geom"
)

// Shape names a formation pattern
type Shape int

const (
	ShapeNone Shape = iota
	ShapeV
	ShapeArrow
	ShapeLine
	ShapeVertical
	ShapeCircularStaging
	ShapeCustom
)

var shapeNames = map[Shape]string{
	ShapeNone:            "none",
	ShapeV:               "v",
	ShapeArrow:           "arrow",
	ShapeLine:            "line",
	ShapeVertical:        "vertical",
	ShapeCircularStaging: "circular-staging",
	ShapeCustom:          "custom",
}

func (s Shape) String() string {
	if name, ok := shapeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// ParseShape accepts the names printed by String, case-insensitively
func ParseShape(name string) (Shape, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	switch normalized {
	case "v", "v-formation", "vformation":
		return ShapeV, nil
	case "arrow":
		return ShapeArrow, nil
	case "line":
		return ShapeLine, nil
	case "vertical", "column", "vertical-column":
		return ShapeVertical, nil
	case "circular-staging", "circle", "staging":
		return ShapeCircularStaging, nil
	case "custom":
		return ShapeCustom, nil
	}
	return ShapeNone, fmt.Errorf("unknown formation shape %q", name)
}

// MarshalText lets shapes appear by name in YAML, TOML and JSON
func (s Shape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Shape) UnmarshalText(text []byte) error {
	if strings.EqualFold(string(text), "none") {
		*s = ShapeNone
		return nil
	}
	parsed, err := ParseShape(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Shapes lists the parametric shapes Generate understands
func Shapes() []Shape {
	return []Shape{ShapeV, ShapeArrow, ShapeLine, ShapeVertical}
}

// Formation is a generated target set. Positions always has one entry per
// agent; a formation for a different agent count must be regenerated.
type Formation struct {
	Shape     Shape          `json:"shape" yaml:"shape"`
	Positions []geom.Vector3 `json:"positions" yaml:"positions"`
}

// Len is the number of slots
func (f Formation) Len() int {
	return len(f.Positions)
}

// Center is the arithmetic mean of the slots
func (f Formation) Center() geom.Vector3 {
	return geom.Centroid(f.Positions)
}

// Clone returns a deep copy so callers can transform without aliasing
func (f Formation) Clone() Formation {
	positions := make([]geom.Vector3, len(f.Positions))
	copy(positions, f.Positions)
	return Formation{Shape: f.Shape, Positions: positions}
}

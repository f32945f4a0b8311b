package waypointtour

import (
	"github.com/picogrid/swarm-nav/pkg/geom"
	"github.com/picogrid/swarm-nav/pkg/mission"
)

// SquareRoute is a closed square of side size at altitude, starting at the
// corner diagonally away from the origin's landing area
func SquareRoute(size, altitude, t1, t2 float64) []mission.Waypoint {
	corners := []geom.Vector3{
		geom.V(size, altitude, 0),
		geom.V(size, altitude, size),
		geom.V(0, altitude, size),
		geom.V(0, altitude, 0),
	}
	route := make([]mission.Waypoint, len(corners))
	for i, c := range corners {
		route[i] = mission.NewWaypoint(c, t1, t2)
	}
	return route
}

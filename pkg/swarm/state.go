package swarm

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/picogrid/swarm-nav/pkg/formation"
	"github.com/picogrid/swarm-nav/pkg/geom"
	"github.com/picogrid/swarm-nav/pkg/link"
)

// DefaultMaxAgents is the registry capacity when none is configured
const DefaultMaxAgents = 50

var (
	ErrCapacity       = errors.New("swarm is at capacity")
	ErrUnknownAgent   = errors.New("unknown agent")
	ErrDuplicateAgent = errors.New("agent already registered")
)

// Agent is the registry's view of one swarm member. Position and Velocity
// mirror the physics host and are refreshed at tick boundaries; Target is
// written by the agent's flight controller.
type Agent struct {
	ID         int
	Position   geom.Vector3
	Velocity   geom.Vector3
	Target     geom.Vector3
	Staging    geom.Vector3
	HasStaging bool
}

// DistanceToTarget is recomputed on every call
func (a Agent) DistanceToTarget() float64 {
	return a.Position.DistanceTo(a.Target)
}

// Neighbor is one entry of a neighbor query
type Neighbor struct {
	ID       int
	Position geom.Vector3
	Velocity geom.Vector3
	Target   geom.Vector3
	Distance float64
}

// State is the shared swarm state: the agent registry in registration
// order, the communication switch and the last generated formation. The
// mission controller is its only writer.
type State struct {
	mu        sync.RWMutex
	maxAgents int
	order     []*Agent
	byID      map[int]*Agent

	comm       link.Switch
	formations formation.Cache
}

// NewState creates an empty registry holding at most maxAgents agents
func NewState(maxAgents int) *State {
	if maxAgents <= 0 {
		maxAgents = DefaultMaxAgents
	}
	return &State{
		maxAgents: maxAgents,
		byID:      make(map[int]*Agent),
	}
}

// MaxAgents is the registry capacity
func (s *State) MaxAgents() int {
	return s.maxAgents
}

// Register adds an agent at a position. It fails with ErrCapacity when the
// registry is full and ErrDuplicateAgent when the id is taken.
func (s *State) Register(id int, position geom.Vector3) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; ok {
		return fmt.Errorf("register agent %d: %w", id, ErrDuplicateAgent)
	}
	if len(s.order) >= s.maxAgents {
		return fmt.Errorf("register agent %d (max %d): %w", id, s.maxAgents, ErrCapacity)
	}

	a := &Agent{ID: id, Position: position, Target: position}
	s.order = append(s.order, a)
	s.byID[id] = a
	return nil
}

// Len is the number of registered agents
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// IDs lists agent ids in registration order
func (s *State) IDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int, len(s.order))
	for i, a := range s.order {
		ids[i] = a.ID
	}
	return ids
}

// Agent returns a copy of one agent
func (s *State) Agent(id int) (Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return Agent{}, fmt.Errorf("agent %d: %w", id, ErrUnknownAgent)
	}
	return *a, nil
}

// Agents returns copies of every agent in registration order
func (s *State) Agents() []Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Agent, len(s.order))
	for i, a := range s.order {
		out[i] = *a
	}
	return out
}

// Positions returns agent positions in registration order
func (s *State) Positions() []geom.Vector3 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]geom.Vector3, len(s.order))
	for i, a := range s.order {
		out[i] = a.Position
	}
	return out
}

// UpdateKinematics records what the physics host reports for an agent
func (s *State) UpdateKinematics(id int, position, velocity geom.Vector3) error {
	return s.update(id, func(a *Agent) {
		a.Position = position
		a.Velocity = velocity
	})
}

// SetTarget records where an agent is heading
func (s *State) SetTarget(id int, target geom.Vector3) error {
	return s.update(id, func(a *Agent) { a.Target = target })
}

// SetStaging records an agent's staging point
func (s *State) SetStaging(id int, staging geom.Vector3) error {
	return s.update(id, func(a *Agent) {
		a.Staging = staging
		a.HasStaging = true
	})
}

// ClearStaging forgets every staging point
func (s *State) ClearStaging() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.order {
		a.Staging = geom.Zero
		a.HasStaging = false
	}
}

func (s *State) update(id int, fn func(*Agent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("agent %d: %w", id, ErrUnknownAgent)
	}
	fn(a)
	return nil
}

// Neighbors returns the agents within radius of ref, excluding one id,
// nearest first. Ties keep registration order.
func (s *State) Neighbors(ref geom.Vector3, radius float64, exclude int) []Neighbor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Neighbor
	for _, a := range s.order {
		if a.ID == exclude {
			continue
		}
		d := ref.DistanceTo(a.Position)
		if d > radius {
			continue
		}
		out = append(out, Neighbor{
			ID:       a.ID,
			Position: a.Position,
			Velocity: a.Velocity,
			Target:   a.Target,
			Distance: d,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Distance < out[j].Distance
	})
	return out
}

// CommActive reports the global communication switch
func (s *State) CommActive() bool {
	return s.comm.Active()
}

// SetCommActive flips the communication switch and reports whether it
// changed
func (s *State) SetCommActive(active bool) bool {
	return s.comm.Set(active)
}

// Formations is the last-generated formation cache
func (s *State) Formations() *formation.Cache {
	return &s.formations
}

// Reset empties the registry, forgets the cached formation and restores the
// link in one step
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = nil
	s.byID = make(map[int]*Agent)
	s.formations.Reset()
	s.comm.Set(true)
}

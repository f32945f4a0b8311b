package kinematics

import (
	"fmt"
	"sort"
	"sync"

	"github.com/picogrid/swarm-nav/pkg/flight"
	"github.com/picogrid/swarm-nav/pkg/geom"
)

// Config describes the point-mass bodies
type Config struct {
	Mass     float64 `yaml:"mass" toml:"mass"`
	Gravity  float64 `yaml:"gravity" toml:"gravity"`
	Drag     float64 `yaml:"drag" toml:"drag"`
	MaxSpeed float64 `yaml:"max_speed" toml:"max_speed"`
	Ground   float64 `yaml:"ground" toml:"ground"`
}

// DefaultConfig balances the default hover thrust against gravity
func DefaultConfig() Config {
	return Config{
		Mass:     1,
		Gravity:  10,
		Drag:     1.5,
		MaxSpeed: 14,
		Ground:   0,
	}
}

// Validate rejects a massless body or negative drag
func (c Config) Validate() error {
	if c.Mass <= 0 {
		return fmt.Errorf("mass must be positive")
	}
	if c.Drag < 0 {
		return fmt.Errorf("drag must not be negative")
	}
	if c.MaxSpeed <= 0 {
		return fmt.Errorf("max_speed must be positive")
	}
	return nil
}

type body struct {
	position geom.Vector3
	velocity geom.Vector3
	force    geom.Vector3
	thrust   float64
	impulse  geom.Vector3
}

// World integrates every agent as a point mass with linear drag. Commands
// are held until the next Step.
type World struct {
	mu     sync.RWMutex
	cfg    Config
	bodies map[int]*body
}

// NewWorld creates an empty world
func NewWorld(cfg Config) *World {
	return &World{cfg: cfg, bodies: make(map[int]*body)}
}

// Reset replaces every body with one resting at each spawn point; ids are
// the spawn indexes
func (w *World) Reset(spawn []geom.Vector3) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.bodies = make(map[int]*body, len(spawn))
	for id, p := range spawn {
		w.bodies[id] = &body{position: p}
	}
}

// Position of a body; unknown ids are at the origin
func (w *World) Position(id int) geom.Vector3 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if b, ok := w.bodies[id]; ok {
		return b.position
	}
	return geom.Zero
}

// Velocity of a body; unknown ids are at rest
func (w *World) Velocity(id int) geom.Vector3 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if b, ok := w.bodies[id]; ok {
		return b.velocity
	}
	return geom.Zero
}

// Apply stores a flight command for the next Step
func (w *World) Apply(id int, cmd flight.Command) {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, ok := w.bodies[id]
	if !ok {
		return
	}
	b.force = cmd.Direction.Scale(cmd.Force)
	b.thrust = cmd.Thrust
	b.impulse = b.impulse.Add(cmd.Impulse)
	if cmd.ZeroVelocity {
		b.velocity = geom.Zero
	}
}

// Step integrates every body by dt seconds with semi-implicit Euler
func (w *World) Step(dt float64) {
	if dt <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	m := w.cfg.Mass
	for _, b := range w.bodies {
		total := b.force.
			Add(geom.Up.Scale(b.thrust)).
			Add(geom.Up.Scale(-w.cfg.Gravity * m)).
			Add(b.velocity.Scale(-w.cfg.Drag * m))

		b.velocity = b.velocity.Add(total.Scale(dt / m)).Add(b.impulse.Scale(1 / m))
		b.velocity = b.velocity.ClampLength(w.cfg.MaxSpeed)
		b.impulse = geom.Zero

		b.position = b.position.Add(b.velocity.Scale(dt))
		if b.position.Y < w.cfg.Ground {
			b.position.Y = w.cfg.Ground
			if b.velocity.Y < 0 {
				b.velocity.Y = 0
			}
		}
	}
}

// IDs lists the bodies in ascending id order
func (w *World) IDs() []int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	ids := make([]int, 0, len(w.bodies))
	for id := range w.bodies {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

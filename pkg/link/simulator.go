package link

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/picogrid/swarm-nav/pkg/geom"
	"github.com/picogrid/swarm-nav/pkg/logger"
)

// Default failure model of the control channel
const (
	DefaultPacketLoss = 0.01
	DefaultCorruption = 0.005
	DefaultJitter     = 0.2
)

// Config sets the per-message failure probabilities. PacketLoss applies to
// each message sent to an agent, Corruption to each message received from
// it. Jitter is the radius of the horizontal perturbation added to the
// fallback heading.
type Config struct {
	PacketLoss float64 `yaml:"packet_loss" toml:"packet_loss"`
	Corruption float64 `yaml:"corruption" toml:"corruption"`
	Jitter     float64 `yaml:"jitter" toml:"jitter"`
}

// DefaultConfig returns the standard lossy channel
func DefaultConfig() Config {
	return Config{
		PacketLoss: DefaultPacketLoss,
		Corruption: DefaultCorruption,
		Jitter:     DefaultJitter,
	}
}

// Validate requires probabilities in [0, 1] and a non-negative jitter
func (c Config) Validate() error {
	if c.PacketLoss < 0 || c.PacketLoss > 1 {
		return fmt.Errorf("packet_loss must be in [0, 1], got %v", c.PacketLoss)
	}
	if c.Corruption < 0 || c.Corruption > 1 {
		return fmt.Errorf("corruption must be in [0, 1], got %v", c.Corruption)
	}
	if c.Jitter < 0 {
		return fmt.Errorf("jitter must not be negative")
	}
	return nil
}

// Cause says which step of a handshake failed
type Cause int

const (
	CauseNone Cause = iota
	CausePacketLoss
	CauseCorruption
)

func (c Cause) String() string {
	switch c {
	case CausePacketLoss:
		return "packet-loss"
	case CauseCorruption:
		return "corruption"
	default:
		return "none"
	}
}

// Stats counts handshake outcomes
type Stats struct {
	Requests   uint64 `json:"requests"`
	Successes  uint64 `json:"successes"`
	PacketLoss uint64 `json:"packet_loss"`
	Corruption uint64 `json:"corruption"`
}

// Failures is the total number of failed handshakes
func (s Stats) Failures() uint64 {
	return s.PacketLoss + s.Corruption
}

// SuccessRate is the fraction of successful handshakes, 1 with no requests
func (s Stats) SuccessRate() float64 {
	if s.Requests == 0 {
		return 1
	}
	return float64(s.Successes) / float64(s.Requests)
}

// Simulator models the lossy channel between the coordinator and each agent.
// It is not a transport: every outcome is drawn from the injected random
// source, so a fixed seed replays the same sequence of failures.
type Simulator struct {
	mu    sync.Mutex
	cfg   Config
	rng   *rand.Rand
	stats Stats
	log   logger.Logger
}

// NewSimulator creates a simulator; a nil rng is seeded with 1
func NewSimulator(cfg Config, rng *rand.Rand, log logger.Logger) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Simulator{
		cfg: cfg,
		rng: rng,
		log: logger.OrDefault(log).WithPrefix("link"),
	}
}

// Handshake runs the three-step synchronization with one agent: a SYN sent
// to it, a SYN-ACK received from it and a final ACK sent to it. The first
// failing step aborts the exchange.
func (s *Simulator) Handshake(agentID int) bool {
	ok, _ := s.HandshakeCause(agentID)
	return ok
}

// HandshakeCause is Handshake with the failure cause
func (s *Simulator) HandshakeCause(agentID int) (bool, Cause) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Requests++

	cause := CauseNone
	switch {
	case !s.send():
		cause = CausePacketLoss
	case !s.receive():
		cause = CauseCorruption
	case !s.send():
		cause = CausePacketLoss
	}

	switch cause {
	case CausePacketLoss:
		s.stats.PacketLoss++
	case CauseCorruption:
		s.stats.Corruption++
	default:
		s.stats.Successes++
		return true, CauseNone
	}

	s.log.WithField("agent", agentID).Debugf("Handshake failed: %s", cause)
	return false, cause
}

func (s *Simulator) send() bool {
	return s.rng.Float64() >= s.cfg.PacketLoss
}

func (s *Simulator) receive() bool {
	return s.rng.Float64() >= s.cfg.Corruption
}

// Fallback is the heading an agent uses when it cannot reach the planner:
// straight at the goal, perturbed horizontally so agents sharing a heading
// drift apart.
func (s *Simulator) Fallback(current, target geom.Vector3) geom.Vector3 {
	s.mu.Lock()
	jitter := s.insideUnitSphere().Scale(s.cfg.Jitter)
	s.mu.Unlock()

	jitter.Y = 0
	return target.Sub(current).Normalize().Add(jitter).Normalize()
}

func (s *Simulator) insideUnitSphere() geom.Vector3 {
	for {
		p := geom.V(s.rng.Float64()*2-1, s.rng.Float64()*2-1, s.rng.Float64()*2-1)
		if p.Length() <= 1 {
			return p
		}
	}
}

// Stats returns a snapshot of the counters
func (s *Simulator) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Reset clears the counters; the random stream continues
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = Stats{}
}

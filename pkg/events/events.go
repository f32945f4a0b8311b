package events

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies what an event reports
type Kind string

const (
	KindFormationChanged    Kind = "formation_changed"
	KindWaypointReached     Kind = "waypoint_reached"
	KindCollisionRisk       Kind = "collision_risk"
	KindCommunicationStatus Kind = "communication_status"
	KindTimingViolation     Kind = "timing_violation"
	KindPhaseChanged        Kind = "phase_changed"
	KindMissionComplete     Kind = "mission_complete"
)

// Severity constants
const (
	SeverityDebug   = "debug"
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// NoAgent marks an event that is not about a single agent
const NoAgent = -1

// Event is a fire-and-forget notification about the mission
type Event struct {
	ID       string                 `json:"id"`
	RunID    string                 `json:"run_id,omitempty"`
	Kind     Kind                   `json:"kind"`
	Severity string                 `json:"severity"`
	AgentID  int                    `json:"agent_id"`
	Elapsed  float64                `json:"elapsed"`
	Time     time.Time              `json:"time"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// New builds an info event not tied to an agent
func New(kind Kind, message string) Event {
	return Event{
		ID:       uuid.NewString(),
		Kind:     kind,
		Severity: SeverityInfo,
		AgentID:  NoAgent,
		Time:     time.Now().UTC(),
		Message:  message,
	}
}

// WithAgent returns a copy of e attributed to an agent
func (e Event) WithAgent(id int) Event {
	e.AgentID = id
	return e
}

// WithSeverity returns a copy of e with the given severity
func (e Event) WithSeverity(severity string) Event {
	e.Severity = severity
	return e
}

// WithDetail returns a copy of e with one more detail set
func (e Event) WithDetail(key string, value interface{}) Event {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	e.Details = details
	return e
}

// Emitter receives events. Implementations must not block the caller.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter
type EmitterFunc func(Event)

func (f EmitterFunc) Emit(e Event) { f(e) }

// Nop discards every event
var Nop Emitter = EmitterFunc(func(Event) {})

// OrNop returns e, or Nop when e is nil
func OrNop(e Emitter) Emitter {
	if e == nil {
		return Nop
	}
	return e
}

// Multi fans an event out to several emitters in order
func Multi(emitters ...Emitter) Emitter {
	targets := make([]Emitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			targets = append(targets, e)
		}
	}
	return EmitterFunc(func(ev Event) {
		for _, e := range targets {
			e.Emit(ev)
		}
	})
}

// Stamped wraps an emitter so every event carries the run id and the
// mission clock reading
func Stamped(next Emitter, runID string, clock func() float64) Emitter {
	next = OrNop(next)
	return EmitterFunc(func(ev Event) {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if ev.RunID == "" {
			ev.RunID = runID
		}
		if clock != nil {
			ev.Elapsed = clock()
		}
		next.Emit(ev)
	})
}

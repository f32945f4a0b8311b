package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/picogrid/swarm-nav/pkg/events"
	"github.com/picogrid/swarm-nav/pkg/mission"
)

// Config configures report generation
type Config struct {
	OutputDir     string
	Format        string // "json" or "markdown"
	IncludeEvents bool
}

// Report is the after-action report of one mission run
type Report struct {
	Metadata        Metadata         `json:"metadata"`
	Summary         Summary          `json:"summary"`
	Navigation      Navigation       `json:"navigation"`
	Communication   Communication    `json:"communication"`
	Agents          []AgentSummary   `json:"agents"`
	Timeline        []TimelineEntry  `json:"timeline"`
	Recommendations []Recommendation `json:"recommendations"`
	EventLog        []events.Event   `json:"event_log,omitempty"`
}

// Metadata identifies the report and the run it covers
type Metadata struct {
	ReportID    string    `json:"report_id"`
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Elapsed     float64   `json:"mission_elapsed"`
	Duration    string    `json:"duration"`
}

// Summary is the high-level outcome
type Summary struct {
	Outcome       string         `json:"outcome"`
	FinalPhase    string         `json:"final_phase"`
	Formation     string         `json:"formation,omitempty"`
	Quality       float64        `json:"formation_quality"`
	EventCounts   map[string]int `json:"event_counts"`
	CollisionRisk int            `json:"collision_risks"`
	Recoveries    int            `json:"stuck_recoveries"`
}

// Navigation summarises the waypoint tour
type Navigation struct {
	Waypoints        int     `json:"waypoints"`
	Reached          int     `json:"reached"`
	TimingViolations int     `json:"timing_violations"`
	ViolatedIndexes  []int   `json:"violated_waypoints,omitempty"`
	CompletionRate   float64 `json:"completion_rate"`
}

// Communication summarises link and planner behaviour
type Communication struct {
	Active          bool    `json:"active_at_end"`
	LostAt          float64 `json:"lost_at"`
	Handshakes      uint64  `json:"handshakes"`
	HandshakeRate   float64 `json:"handshake_success_rate"`
	PacketLoss      uint64  `json:"packet_loss"`
	Corruption      uint64  `json:"corruption"`
	LinkedPlans     uint64  `json:"linked_plans"`
	FallbackPlans   uint64  `json:"fallback_plans"`
	DegradedPlans   uint64  `json:"degraded_plans"`
	AutonomousShare float64 `json:"autonomous_share"`
}

// AgentSummary is the final state of one agent
type AgentSummary struct {
	ID         int     `json:"id"`
	State      string  `json:"state"`
	Distance   float64 `json:"distance_to_target"`
	Autonomous bool    `json:"autonomous"`
	Recoveries int     `json:"stuck_recoveries"`
}

// TimelineEntry is one significant event
type TimelineEntry struct {
	Elapsed     float64     `json:"elapsed"`
	ElapsedTime string      `json:"elapsed_time"`
	Kind        events.Kind `json:"kind"`
	Severity    string      `json:"severity"`
	Description string      `json:"description"`
}

// Recommendation is a tuning hint derived from the run
type Recommendation struct {
	Priority    string `json:"priority"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Build assembles a report from the final telemetry snapshot and the
// recorded events
func Build(t mission.Telemetry, evs []events.Event, cfg Config) *Report {
	r := &Report{
		Metadata: Metadata{
			ReportID:    uuid.NewString(),
			RunID:       t.RunID,
			GeneratedAt: time.Now().UTC(),
			Elapsed:     t.Elapsed,
			Duration:    formatElapsed(t.Elapsed),
		},
	}

	r.Summary = summarize(t, evs)
	r.Navigation = navigation(t)
	r.Communication = communication(t)
	for _, a := range t.Agents {
		r.Agents = append(r.Agents, AgentSummary{
			ID:         a.ID,
			State:      a.State,
			Distance:   a.Distance,
			Autonomous: a.Autonomous,
			Recoveries: a.Recoveries,
		})
	}
	r.Timeline = timeline(evs)
	r.Recommendations = recommend(r)
	if cfg.IncludeEvents {
		r.EventLog = evs
	}
	return r
}

func summarize(t mission.Telemetry, evs []events.Event) Summary {
	s := Summary{
		FinalPhase:  t.Phase,
		Formation:   t.Formation,
		Quality:     t.Quality,
		EventCounts: make(map[string]int),
	}
	completed := false
	for _, e := range evs {
		s.EventCounts[string(e.Kind)]++
		switch e.Kind {
		case events.KindCollisionRisk:
			s.CollisionRisk++
		case events.KindMissionComplete:
			completed = true
		}
	}
	for _, a := range t.Agents {
		s.Recoveries += a.Recoveries
	}

	switch {
	case completed && t.TimingViolations == 0:
		s.Outcome = "COMPLETE"
	case completed:
		s.Outcome = "COMPLETE WITH VIOLATIONS"
	default:
		s.Outcome = "INCOMPLETE"
	}
	return s
}

func navigation(t mission.Telemetry) Navigation {
	n := Navigation{
		Waypoints:        len(t.Waypoints),
		TimingViolations: t.TimingViolations,
		ViolatedIndexes:  t.ViolatedIndexes,
	}
	for _, wp := range t.Waypoints {
		if wp.Reached {
			n.Reached++
		}
	}
	if n.Waypoints > 0 {
		n.CompletionRate = float64(n.Reached) / float64(n.Waypoints)
	}
	return n
}

func communication(t mission.Telemetry) Communication {
	c := Communication{
		Active:        t.CommActive,
		LostAt:        t.CommLostAt,
		Handshakes:    t.Link.Requests,
		HandshakeRate: t.Link.SuccessRate(),
		PacketLoss:    t.Link.PacketLoss,
		Corruption:    t.Link.Corruption,
		LinkedPlans:   t.Planner.Linked,
		FallbackPlans: t.Planner.Fallback,
		DegradedPlans: t.Planner.Degraded,
	}
	if total := c.LinkedPlans + c.FallbackPlans + c.DegradedPlans; total > 0 {
		c.AutonomousShare = float64(c.DegradedPlans) / float64(total)
	}
	return c
}

func timeline(evs []events.Event) []TimelineEntry {
	entries := make([]TimelineEntry, 0)
	for _, e := range evs {
		if !significant(e) {
			continue
		}
		entries = append(entries, TimelineEntry{
			Elapsed:     e.Elapsed,
			ElapsedTime: formatElapsed(e.Elapsed),
			Kind:        e.Kind,
			Severity:    e.Severity,
			Description: e.Message,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Elapsed < entries[j].Elapsed
	})
	return entries
}

// significant drops the per-agent collision chatter from the timeline
func significant(e events.Event) bool {
	return e.Kind != events.KindCollisionRisk || e.Severity == events.SeverityError
}

func recommend(r *Report) []Recommendation {
	recs := make([]Recommendation, 0)

	if r.Navigation.TimingViolations > 0 {
		recs = append(recs, Recommendation{
			Priority:    "High",
			Category:    "Navigation",
			Title:       "Extend Waypoint Arrival Windows",
			Description: fmt.Sprintf("%d waypoint(s) timed out before the swarm arrived. Raise T1 or lower the success threshold.", r.Navigation.TimingViolations),
		})
	}

	if r.Communication.Handshakes > 0 && r.Communication.HandshakeRate < 0.95 {
		recs = append(recs, Recommendation{
			Priority:    "High",
			Category:    "Communications",
			Title:       "Investigate Link Reliability",
			Description: fmt.Sprintf("Only %.1f%% of handshakes succeeded; agents spent time on fallback headings.", r.Communication.HandshakeRate*100),
		})
	}

	if r.Summary.CollisionRisk > 0 {
		recs = append(recs, Recommendation{
			Priority:    "Medium",
			Category:    "Separation",
			Title:       "Increase Formation Spacing",
			Description: fmt.Sprintf("%d collision risk warning(s) were raised. Wider spacing or a larger safety radius reduces crowding.", r.Summary.CollisionRisk),
		})
	}

	if r.Summary.Recoveries > 0 {
		recs = append(recs, Recommendation{
			Priority:    "Low",
			Category:    "Flight",
			Title:       "Review Stuck Recoveries",
			Description: fmt.Sprintf("Agents needed %d recovery impulse(s). Check for opposing avoidance forces near targets.", r.Summary.Recoveries),
		})
	}
	return recs
}

// Save writes the report to the output directory and returns its path
func (r *Report) Save(cfg Config) (string, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	id := r.Metadata.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	name := fmt.Sprintf("AAR_%s_%s", id, r.Metadata.GeneratedAt.Format("20060102_150405"))

	var (
		data []byte
		ext  string
		err  error
	)
	switch cfg.Format {
	case "", "json":
		ext = ".json"
		data, err = json.MarshalIndent(r, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal report: %w", err)
		}
	case "markdown", "md":
		ext = ".md"
		data = []byte(r.Markdown())
	default:
		return "", fmt.Errorf("unsupported format: %s", cfg.Format)
	}

	path := filepath.Join(cfg.OutputDir, name+ext)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// Markdown renders the report as a markdown document
func (r *Report) Markdown() string {
	var sb strings.Builder

	sb.WriteString("# After Action Report\n\n")
	sb.WriteString(fmt.Sprintf("**Run ID:** %s\n", r.Metadata.RunID))
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n", r.Metadata.GeneratedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("**Duration:** %s\n\n", r.Metadata.Duration))

	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Outcome:** %s\n", r.Summary.Outcome))
	sb.WriteString(fmt.Sprintf("- **Final Phase:** %s\n", r.Summary.FinalPhase))
	if r.Summary.Formation != "" {
		sb.WriteString(fmt.Sprintf("- **Formation:** %s (quality %.2f)\n", r.Summary.Formation, r.Summary.Quality))
	}
	sb.WriteString(fmt.Sprintf("- **Collision Risks:** %d\n\n", r.Summary.CollisionRisk))

	sb.WriteString("## Navigation\n\n")
	sb.WriteString(fmt.Sprintf("- **Waypoints Reached:** %d/%d\n", r.Navigation.Reached, r.Navigation.Waypoints))
	sb.WriteString(fmt.Sprintf("- **Timing Violations:** %d\n\n", r.Navigation.TimingViolations))

	sb.WriteString("## Communication\n\n")
	sb.WriteString(fmt.Sprintf("- **Handshakes:** %d (%.1f%% success)\n", r.Communication.Handshakes, r.Communication.HandshakeRate*100))
	if r.Communication.LostAt >= 0 {
		sb.WriteString(fmt.Sprintf("- **Link Lost At:** %s\n", formatElapsed(r.Communication.LostAt)))
	}
	sb.WriteString(fmt.Sprintf("- **Plans:** %d linked, %d fallback, %d degraded\n\n",
		r.Communication.LinkedPlans, r.Communication.FallbackPlans, r.Communication.DegradedPlans))

	if len(r.Timeline) > 0 {
		sb.WriteString("## Timeline\n\n")
		for _, e := range r.Timeline {
			sb.WriteString(fmt.Sprintf("- `%s` %s\n", e.ElapsedTime, e.Description))
		}
		sb.WriteString("\n")
	}

	if len(r.Recommendations) > 0 {
		sb.WriteString("## Recommendations\n\n")
		for _, rec := range r.Recommendations {
			sb.WriteString(fmt.Sprintf("### %s (%s Priority)\n", rec.Title, rec.Priority))
			sb.WriteString(fmt.Sprintf("%s\n\n", rec.Description))
		}
	}
	return sb.String()
}

func formatElapsed(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	minutes := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

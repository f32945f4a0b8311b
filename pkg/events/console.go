package events

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Color definitions
var (
	colorDebug   = color.New(color.FgHiBlack)
	colorInfo    = color.New(color.FgCyan)
	colorWarning = color.New(color.FgYellow)
	colorError   = color.New(color.FgRed, color.Bold)
	colorSuccess = color.New(color.FgGreen)
	colorElapsed = color.New(color.FgHiBlack)
)

var kindIcons = map[Kind]string{
	KindFormationChanged:    "📐",
	KindWaypointReached:     "🎯",
	KindCollisionRisk:       "🚨",
	KindCommunicationStatus: "📡",
	KindTimingViolation:     "⏱️",
	KindPhaseChanged:        "🔁",
	KindMissionComplete:     "🏁",
}

// ConsoleSink prints events as colored one-line summaries
type ConsoleSink struct {
	mu       sync.Mutex
	w        io.Writer
	minLevel int
}

// NewConsoleSink writes to w (stdout when nil), skipping events below
// minSeverity
func NewConsoleSink(w io.Writer, minSeverity string) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleSink{w: w, minLevel: severityRank(minSeverity)}
}

func (c *ConsoleSink) Handle(e Event) error {
	if severityRank(e.Severity) < c.minLevel {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := fmt.Fprintln(c.w, Format(e))
	return err
}

// Format renders an event the way the console sink prints it
func Format(e Event) string {
	var b strings.Builder

	b.WriteString(colorElapsed.Sprintf("[%7.2fs]", e.Elapsed))
	b.WriteString(" ")
	if icon, ok := kindIcons[e.Kind]; ok {
		b.WriteString(icon)
		b.WriteString(" ")
	}
	b.WriteString(severityColor(e).Sprint(e.Message))

	if e.AgentID != NoAgent {
		b.WriteString(colorDebug.Sprintf(" agent=%d", e.AgentID))
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(colorDebug.Sprintf(" %s=%v", k, e.Details[k]))
		}
	}
	return b.String()
}

func severityColor(e Event) *color.Color {
	if e.Kind == KindMissionComplete || e.Kind == KindWaypointReached {
		return colorSuccess
	}
	switch e.Severity {
	case SeverityDebug:
		return colorDebug
	case SeverityWarning:
		return colorWarning
	case SeverityError:
		return colorError
	default:
		return colorInfo
	}
}

func severityRank(s string) int {
	switch s {
	case SeverityDebug:
		return 0
	case SeverityWarning:
		return 2
	case SeverityError:
		return 3
	default:
		return 1
	}
}

package logger

import (
	"bytes"
	"strings"
	"testing"
)

func newBuffered(level Level) (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewWithConfig(Config{Level: level, Writer: &buf, NoColor: true}), &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"debug", DebugLevel},
		{" INFO ", InfoLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"fatal", FatalLevel},
		{"chatty", InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	log, buf := newBuffered(WarnLevel)
	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "WARN  shown") {
		t.Errorf("Expected warn line, got %q", out)
	}
}

func TestFieldsAndPrefix(t *testing.T) {
	log, buf := newBuffered(DebugLevel)
	child := log.WithPrefix("flight").WithFields(map[string]interface{}{"state": "hovering", "agent": 3})
	child.Debugf("Target %s", "reached")

	line := strings.TrimSpace(buf.String())
	want := "DEBUG [flight] Target reached agent=3 state=hovering"
	if line != want {
		t.Errorf("Expected %q, got %q", want, line)
	}

	// children do not leak fields into the parent
	buf.Reset()
	log.Info("plain")
	if got := strings.TrimSpace(buf.String()); got != "INFO  plain" {
		t.Errorf("Expected parent without fields, got %q", got)
	}
}

func TestNopAndOrDefault(t *testing.T) {
	Nop().Error("nothing")
	if OrDefault(nil) != Default() {
		t.Error("Expected OrDefault(nil) to return the default logger")
	}
	log, _ := newBuffered(InfoLevel)
	if OrDefault(log) != log {
		t.Error("Expected OrDefault to keep a given logger")
	}
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable("ID", "STATE")
	table.AddRow("0", "formation-hold")
	table.AddRow("12", "hovering")
	table.Print(&buf)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected 4 lines, got %d: %q", len(lines), buf.String())
	}
	if lines[0] != "ID  STATE" {
		t.Errorf("Unexpected header %q", lines[0])
	}
	if lines[1] != "--  --------------" {
		t.Errorf("Unexpected separator %q", lines[1])
	}
}

func TestProgressBar(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	var buf bytes.Buffer
	bar := NewProgressBarTo(&buf, 4, "Waypoints")
	bar.Increment()
	bar.Increment()
	if !strings.HasSuffix(buf.String(), "2/4") {
		t.Errorf("Expected 2/4, got %q", buf.String())
	}
	bar.Finish()
	if !strings.Contains(buf.String(), "["+strings.Repeat("█", 30)+"] 4/4") {
		t.Errorf("Expected full bar, got %q", buf.String())
	}
}

func TestSpinnerStopsCleanly(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinnerTo(&buf, "Taking off")
	s.Start()
	s.Start()
	s.UpdateMessage("Climbing")
	s.Stop()
	s.Stop()

	if !strings.Contains(buf.String(), "Taking off") && !strings.Contains(buf.String(), "Climbing") {
		t.Errorf("Expected a spinner frame, got %q", buf.String())
	}
}

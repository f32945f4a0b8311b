package link

import "sync/atomic"

// Switch is the process-wide communication flag. When it is off every agent
// plans without the coordinator.
type Switch struct {
	lost atomic.Bool
}

// Active reports whether the link is up
func (s *Switch) Active() bool {
	return !s.lost.Load()
}

// Set changes the flag and reports whether it changed
func (s *Switch) Set(active bool) bool {
	return s.lost.Swap(!active) != !active
}

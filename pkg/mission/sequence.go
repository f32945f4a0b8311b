package mission

// step runs once its wait has elapsed after the previous step
type step struct {
	wait  float64
	label string
	run   func()
}

// sequence is an ordered list of time-gated steps advanced by the mission
// tick. It replaces blocking sleeps: the whole sequence lives in the
// controller and moves forward only when Tick is called.
type sequence struct {
	name    string
	steps   []step
	next    int
	elapsed float64
}

func newSequence(name string) *sequence {
	return &sequence{name: name}
}

// then appends a step that runs wait seconds after the previous one
func (s *sequence) then(wait float64, label string, run func()) *sequence {
	s.steps = append(s.steps, step{wait: wait, label: label, run: run})
	return s
}

// pause appends a step that only waits
func (s *sequence) pause(wait float64, label string) *sequence {
	return s.then(wait, label, nil)
}

// advance moves the clock forward and runs every step that became due.
// Several steps may run in one call when dt spans their waits.
func (s *sequence) advance(dt float64) {
	s.elapsed += dt
	for s.next < len(s.steps) && s.elapsed >= s.steps[s.next].wait {
		st := s.steps[s.next]
		s.elapsed -= st.wait
		s.next++
		if st.run != nil {
			st.run()
		}
	}
}

func (s *sequence) done() bool {
	return s.next >= len(s.steps)
}

// current is the label of the step being waited on
func (s *sequence) current() string {
	if s.done() {
		return ""
	}
	return s.steps[s.next].label
}

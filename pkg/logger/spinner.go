package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// SpinnerFrames are the default animation frames
var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a status line on a terminal while a phase of the mission
// is in progress
type Spinner struct {
	mu       sync.Mutex
	w        io.Writer
	active   bool
	message  string
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewSpinner creates a spinner writing to stderr
func NewSpinner(message string) *Spinner {
	return NewSpinnerTo(os.Stderr, message)
}

// NewSpinnerTo creates a spinner writing to w
func NewSpinnerTo(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:        w,
		message:  message,
		interval: 100 * time.Millisecond,
	}
}

// Start starts the animation. Starting a running spinner is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
}

func (s *Spinner) run(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		s.mu.Lock()
		message := s.message
		s.mu.Unlock()

		frame := SpinnerFrames[i%len(SpinnerFrames)]
		if noColor() {
			_, _ = fmt.Fprintf(s.w, "\r%s %s", frame, message)
		} else {
			_, _ = fmt.Fprintf(s.w, "\r%s%s%s %s", colorCyan, frame, colorReset, message)
		}

		select {
		case <-stop:
			_, _ = fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", len(message)+4))
			return
		case <-ticker.C:
		}
	}
}

// Stop ends the animation and clears the line
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()
	<-done
}

// Success stops the spinner and logs a success message
func (s *Spinner) Success(message string) {
	s.Stop()
	Success(message)
}

// Error stops the spinner and logs an error message
func (s *Spinner) Error(message string) {
	s.Stop()
	Error(IconError + " " + message)
}

// UpdateMessage changes the status text
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// WithSpinner runs fn while a spinner is shown
func WithSpinner(message string, fn func() error) error {
	spinner := NewSpinner(message)
	spinner.Start()

	err := fn()
	if err != nil {
		spinner.Error(fmt.Sprintf("%s failed: %v", message, err))
	} else {
		spinner.Success(fmt.Sprintf("%s completed", message))
	}
	return err
}

// ProgressBar draws a single-line bar, used for waypoint progress
type ProgressBar struct {
	w       io.Writer
	total   int
	current int
	width   int
	message string
}

// NewProgressBar creates a progress bar writing to stderr
func NewProgressBar(total int, message string) *ProgressBar {
	return NewProgressBarTo(os.Stderr, total, message)
}

// NewProgressBarTo creates a progress bar writing to w
func NewProgressBarTo(w io.Writer, total int, message string) *ProgressBar {
	return &ProgressBar{
		w:       w,
		total:   total,
		width:   30,
		message: message,
	}
}

// Update sets the current count and redraws
func (p *ProgressBar) Update(current int) {
	p.current = current
	p.draw()
}

// Increment advances the bar by one
func (p *ProgressBar) Increment() {
	p.Update(p.current + 1)
}

// Finish fills the bar and ends the line
func (p *ProgressBar) Finish() {
	p.Update(p.total)
	_, _ = fmt.Fprintln(p.w)
}

func (p *ProgressBar) draw() {
	percent := 1.0
	if p.total > 0 {
		percent = float64(p.current) / float64(p.total)
	}
	if percent > 1 {
		percent = 1
	}
	filled := int(percent * float64(p.width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.width-filled)

	if noColor() {
		_, _ = fmt.Fprintf(p.w, "\r%s: [%s] %d/%d", p.message, bar, p.current, p.total)
		return
	}
	_, _ = fmt.Fprintf(p.w, "\r%s: %s%s%s %d/%d", p.message, colorGreen, bar, colorReset, p.current, p.total)
}

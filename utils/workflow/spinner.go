package workflow

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Spinner animates on a terminal while a persona is working. It doubles as a
// ProgressWriter so the CLI can hand it straight to the engine.
type Spinner struct {
	chars    []string
	index    int
	message  string
	out      io.Writer
	stop     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	disabled bool
}

// NewSpinner creates a spinner writing to out
func NewSpinner(out io.Writer) *Spinner {
	return &Spinner{
		chars: []string{"|", "/", "-", "\\"},
		out:   out,
	}
}

// Disable prevents the spinner from showing any output
func (s *Spinner) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled = true
}

// Start shows message with an animated suffix until Stop is called
func (s *Spinner) Start(message string) {
	s.mu.Lock()
	if s.disabled || s.running {
		s.mu.Unlock()
		return
	}
	s.message = message
	s.stop = make(chan struct{})
	s.running = true
	stop := s.stop
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				fmt.Fprintf(s.out, "\r%s... %s", s.message, s.chars[s.index])
				s.index = (s.index + 1) % len(s.chars)
				s.mu.Unlock()
			}
		}
	}()
}

// Stop ends the animation and prints the final status line
func (s *Spinner) Stop(status string) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stop)
	s.running = false
	s.mu.Unlock()
	s.wg.Wait()

	s.mu.Lock()
	fmt.Fprintf(s.out, "\r%s... %s     \n", s.message, status)
	s.mu.Unlock()
}

// WriteProgress starts the spinner on a step and stops it on completion or error
func (s *Spinner) WriteProgress(update ProgressUpdate) error {
	switch update.Type {
	case ProgressStep:
		s.Start(update.Message)
	case ProgressComplete:
		s.Stop("Done!")
	case ProgressError:
		s.Stop("Failed!")
	}
	return nil
}

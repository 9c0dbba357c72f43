package workflow

import "time"

// ProgressType represents different types of progress updates
type ProgressType int

const (
	ProgressStep ProgressType = iota
	ProgressComplete
	ProgressError
)

func (t ProgressType) String() string {
	switch t {
	case ProgressStep:
		return "step"
	case ProgressComplete:
		return "complete"
	case ProgressError:
		return "error"
	}
	return "unknown"
}

// ProgressUpdate reports one persona call or stage transition
type ProgressUpdate struct {
	Type     ProgressType
	Message  string
	Error    error
	Persona  string
	Stage    string
	Duration time.Duration // set on completion
}

// ProgressWriter is an interface for handling progress updates
type ProgressWriter interface {
	WriteProgress(update ProgressUpdate) error
}

// channelProgressWriter implements ProgressWriter by sending updates to a channel
type channelProgressWriter struct {
	ch chan<- ProgressUpdate
}

// NewChannelProgressWriter forwards updates to ch. Sends block, so the reader
// must keep draining until the operation returns.
func NewChannelProgressWriter(ch chan<- ProgressUpdate) ProgressWriter {
	return &channelProgressWriter{ch: ch}
}

func (w *channelProgressWriter) WriteProgress(update ProgressUpdate) error {
	w.ch <- update
	return nil
}

// ProgressFunc adapts a function to ProgressWriter
type ProgressFunc func(update ProgressUpdate) error

func (f ProgressFunc) WriteProgress(update ProgressUpdate) error {
	return f(update)
}

// Package monitoring defines the error-reporting hook used by the planner and
// its transports.
package monitoring

import (
	"sync"
	"time"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	CaptureMessage(msg string, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) CaptureMessage(string, map[string]string)  {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

// OrNop returns m, or a NopMonitor when m is nil.
func OrNop(m Monitor) Monitor {
	if m == nil {
		return NopMonitor{}
	}
	return m
}

// Capture is one recorded report.
type Capture struct {
	Err     error
	Message string
	Tags    map[string]string
}

// Recorder keeps reports in memory.
type Recorder struct {
	mu       sync.Mutex
	captures []Capture
}

func (r *Recorder) CaptureException(err error, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captures = append(r.captures, Capture{Err: err, Tags: tags})
}

func (r *Recorder) CaptureMessage(msg string, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captures = append(r.captures, Capture{Message: msg, Tags: tags})
}

func (r *Recorder) Recover() {}

func (r *Recorder) Flush(time.Duration) {}

// Captures returns a copy of the recorded reports.
func (r *Recorder) Captures() []Capture {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Capture(nil), r.captures...)
}

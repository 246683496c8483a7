package sound

import (
	"fmt"
	"sync"
)

// Call is one recorded Output call.
type Call struct {
	Op       string // "on", "off", "all_off"
	Note     uint8
	Velocity uint8
}

func (c Call) String() string {
	switch c.Op {
	case "on":
		return fmt.Sprintf("on(%d,%d)", c.Note, c.Velocity)
	case "off":
		return fmt.Sprintf("off(%d)", c.Note)
	}
	return c.Op
}

// Recorder is an in-memory Output. It remembers every call and which
// notes are sounding. Safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	calls    []Call
	sounding map[uint8]bool
	closed   bool
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{sounding: make(map[uint8]bool)}
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("%w: recorder closed", ErrDevice)
	}
	r.calls = append(r.calls, c)
	switch c.Op {
	case "on":
		r.sounding[c.Note] = true
	case "off":
		delete(r.sounding, c.Note)
	case "all_off":
		clear(r.sounding)
	}
	return nil
}

// NoteOn implements Output.
func (r *Recorder) NoteOn(note, velocity uint8) error {
	return r.record(Call{Op: "on", Note: note, Velocity: velocity})
}

// NoteOff implements Output.
func (r *Recorder) NoteOff(note uint8) error {
	return r.record(Call{Op: "off", Note: note})
}

// AllNotesOff implements Output.
func (r *Recorder) AllNotesOff() error {
	return r.record(Call{Op: "all_off"})
}

// Close implements Output.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Calls returns a copy of every call so far.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Sounding reports whether note is currently on.
func (r *Recorder) Sounding(note uint8) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sounding[note]
}

// Silent reports whether no note is on.
func (r *Recorder) Silent() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sounding) == 0
}

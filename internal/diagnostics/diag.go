package diagnostics

import (
	"sync"
	"time"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

// Codes raised by the node and the render loop.
const (
	CodeDecodeFailed  = "LINK.DECODE_FAILED"
	CodeUnknownType   = "LINK.UNKNOWN_TYPE"
	CodeWrongRole     = "CFG2.OTHER_ROLE"
	CodeConfigApplied = "CFG2.APPLIED"
	CodeSyncLost      = "SYNC.STALE"
	CodeDriverWrite   = "LED.WRITE_FAILED"
	CodeTestRunning   = "TEST.RUNNING"
	CodeTestDone      = "TEST.DONE"
	CodeTestUnknown   = "TEST.UNKNOWN"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
	At             time.Time      `json:"at"`
}

// Sink receives diagnostics.
type Sink func(Diagnostic)

// Ring keeps the most recent diagnostics and fans them out to subscribers.
type Ring struct {
	mu   sync.Mutex
	buf  []Diagnostic
	next int
	full bool
	subs map[int]Sink
	id   int
}

func NewRing(size int) *Ring {
	if size <= 0 {
		size = 64
	}
	return &Ring{buf: make([]Diagnostic, size), subs: map[int]Sink{}}
}

// Push records d, stamping it if needed, and notifies subscribers.
func (r *Ring) Push(d Diagnostic) {
	if d.At.IsZero() {
		d.At = time.Now()
	}
	r.mu.Lock()
	r.buf[r.next] = d
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
	subs := make([]Sink, 0, len(r.subs))
	for _, s := range r.subs {
		subs = append(subs, s)
	}
	r.mu.Unlock()
	for _, s := range subs {
		s(d)
	}
}

// Recent returns the stored diagnostics, oldest first.
func (r *Ring) Recent() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]Diagnostic(nil), r.buf[:r.next]...)
	}
	out := make([]Diagnostic, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

// Subscribe registers s and returns a func that removes it.
func (r *Ring) Subscribe(s Sink) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.id++
	id := r.id
	r.subs[id] = s
	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

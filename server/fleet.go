package ringfleet

import (
	"fmt"
	"strings"
	"time"

	Rt "github.com/maroda/ringfleet/types"
)

// Ringfleet is the control and query surface shared by
// the terminal view, the HTTP API and the pattern engine
type Ringfleet interface {
	Tick(now time.Time)
	RequestStart(now time.Time, index int, spec Rt.CallSpec)
	RequestStop(now time.Time, index int)
	StopAll(now time.Time)
	ActiveCount() int
	RingingCount() int
	CanStart() bool
}

// FleetConfig sizes and wires a Fleet.
// Lines is capped at Rt.MaxLines, zero means all of them.
type FleetConfig struct {
	Lines         int
	MaxConcurrent int
	Relay         Relay
	Policy        Policy
	Rand          Rand
	Reporter      EventReporter
}

// Fleet owns every Line in a fixed array and enforces the admission cap.
// Lines at or above the enabled count are never ticked and kept silent.
type Fleet struct {
	lines         [Rt.MaxLines]Line
	total         int
	enabled       int
	maxConcurrent int
	policy        Policy
	relay         *mutableRelay
}

// NewFleet builds the fleet with every line Idle and its first wait drawn
func NewFleet(now time.Time, cfg FleetConfig) *Fleet {
	total := cfg.Lines
	if total <= 0 || total > Rt.MaxLines {
		total = Rt.MaxLines
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.Policy == (Policy{}) {
		cfg.Policy = DefaultPolicy()
	}
	if cfg.Rand == nil {
		cfg.Rand = NewNoiseSeededRand()
	}

	f := &Fleet{
		total:         total,
		enabled:       total,
		maxConcurrent: clampInt(cfg.MaxConcurrent, MinMaxConcurrent, total),
		policy:        cfg.Policy.Clamp(),
		relay:         &mutableRelay{out: cfg.Relay},
	}

	for i := 0; i < total; i++ {
		f.lines[i].init(i, now, LineConfig{
			Relay:     f.relay,
			Admission: f,
			Policy:    f,
			Rand:      cfg.Rand,
			Reporter:  cfg.Reporter,
		})
	}
	return f
}

// Policy satisfies PolicySource for every line
func (f *Fleet) Policy() Policy { return f.policy }

// SetPolicy replaces the tuning values, clamped.
// Running calls keep the timing they started with.
func (f *Fleet) SetPolicy(p Policy) {
	f.policy = p.Clamp()
}

// Tick advances enabled lines in index order.
// A start by one line is already counted by the next line's gate.
func (f *Fleet) Tick(now time.Time) {
	for i := 0; i < f.enabled; i++ {
		f.lines[i].Tick(now)
	}
}

// CanStart is the admission predicate handed to every line
func (f *Fleet) CanStart() bool {
	return f.enabled > 0 && f.ActiveCount() < f.maxConcurrent
}

// SetAdmission re-injects a gate into every line, nil restores the fleet's own
func (f *Fleet) SetAdmission(a Admission) {
	if a == nil {
		a = f
	}
	for i := 0; i < f.total; i++ {
		f.lines[i].SetAdmission(a)
	}
}

// SetReporter re-injects the event sink into every line
func (f *Fleet) SetReporter(r EventReporter) {
	for i := 0; i < f.total; i++ {
		f.lines[i].SetReporter(r)
	}
}

// SetEnabledLineCount clamps n and silences every line it disables
func (f *Fleet) SetEnabledLineCount(now time.Time, n int) {
	f.enabled = clampInt(n, 0, f.total)
	for i := f.enabled; i < f.total; i++ {
		f.lines[i].ForceStop(now)
	}
}

// SetMaxConcurrentActive clamps n, running calls are left alone
func (f *Fleet) SetMaxConcurrentActive(n int) {
	f.maxConcurrent = clampInt(n, MinMaxConcurrent, f.total)
}

// RequestStart forces a call on an enabled line, disabled lines stay silent
func (f *Fleet) RequestStart(now time.Time, index int, spec Rt.CallSpec) {
	if index >= f.enabled {
		return
	}
	if l := f.line(index); l != nil {
		l.ForceStart(now, spec)
	}
}

func (f *Fleet) RequestStop(now time.Time, index int) {
	if l := f.line(index); l != nil {
		l.ForceStop(now)
	}
}

// StopAll silences every line, enabled or not
func (f *Fleet) StopAll(now time.Time) {
	for i := 0; i < f.total; i++ {
		f.lines[i].ForceStop(now)
	}
}

// Hold drops every relay at once and freezes every line timer
func (f *Fleet) Hold(now time.Time) {
	f.relay.mute()
	for i := 0; i < f.total; i++ {
		f.lines[i].Hold(now)
	}
}

// Release restores the relays and lets the timers run on where they were
func (f *Fleet) Release(now time.Time) {
	for i := 0; i < f.total; i++ {
		f.lines[i].Release(now)
	}
	f.relay.unmute()
}

// SetAux drives a channel outside the line range, e.g. the power rail
func (f *Fleet) SetAux(channel int, on bool) {
	if channel < f.total {
		return
	}
	f.relay.Set(channel, on)
}

func (f *Fleet) ActiveCount() int {
	count := 0
	for i := 0; i < f.total; i++ {
		if f.lines[i].IsActive() {
			count++
		}
	}
	return count
}

func (f *Fleet) RingingCount() int {
	count := 0
	for i := 0; i < f.total; i++ {
		if f.lines[i].Asserted() {
			count++
		}
	}
	return count
}

func (f *Fleet) TotalLines() int          { return f.total }
func (f *Fleet) EnabledLineCount() int    { return f.enabled }
func (f *Fleet) MaxConcurrentActive() int { return f.maxConcurrent }

func (f *Fleet) IsActive(index int) bool {
	if l := f.line(index); l != nil {
		return l.IsActive()
	}
	return false
}

func (f *Fleet) IsRinging(index int) bool {
	if l := f.line(index); l != nil {
		return l.IsRinging()
	}
	return false
}

func (f *Fleet) LineState(index int) Rt.LineState {
	if l := f.line(index); l != nil {
		return l.State()
	}
	return Rt.Idle
}

// Remaining is the time left in a line's current phase
func (f *Fleet) Remaining(now time.Time, index int) time.Duration {
	if l := f.line(index); l != nil {
		return l.Remaining(now)
	}
	return 0
}

// Snapshot copies out the status of every line
func (f *Fleet) Snapshot(now time.Time) []Rt.LineStatus {
	out := make([]Rt.LineStatus, 0, f.total)
	for i := 0; i < f.total; i++ {
		l := &f.lines[i]
		out = append(out, Rt.LineStatus{
			Index:     i,
			State:     l.String(),
			Enabled:   i < f.enabled,
			Active:    l.IsActive(),
			Ringing:   l.Asserted(),
			Held:      l.Held(),
			Ring:      l.RingsCompleted(),
			Rings:     l.RingsTarget(),
			Remaining: l.Remaining(now),
		})
	}
	return out
}

// StatusLine1 is the first row of a character display
func (f *Fleet) StatusLine1() string {
	return fmt.Sprintf("Calls: %d/%d", f.ActiveCount(), f.total)
}

// StatusLine2 is the second row of a character display
func (f *Fleet) StatusLine2() string {
	return fmt.Sprintf("Ring: %d Active: %d", f.RingingCount(), f.ActiveCount())
}

// Glyphs is one character per line: R ringing, A active, . idle
func (f *Fleet) Glyphs() string {
	var sb strings.Builder
	for i := 0; i < f.total; i++ {
		switch {
		case f.lines[i].IsRinging():
			sb.WriteByte('R')
		case f.lines[i].IsActive():
			sb.WriteByte('A')
		default:
			sb.WriteByte('.')
		}
	}
	return sb.String()
}

// line returns nil for anything out of range
func (f *Fleet) line(index int) *Line {
	if index < 0 || index >= f.total {
		return nil
	}
	return &f.lines[index]
}

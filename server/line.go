package ringfleet

import (
	"time"

	"github.com/google/uuid"
	Rt "github.com/maroda/ringfleet/types"
)

// Admission decides whether a line may begin a new call right now.
// It must only read fleet state.
type Admission interface {
	CanStart() bool
}

// AdmissionFunc adapts a function to Admission
type AdmissionFunc func() bool

func (f AdmissionFunc) CanStart() bool { return f() }

// staticPolicy lets a line run without a fleet
type staticPolicy Policy

func (sp staticPolicy) Policy() Policy { return Policy(sp) }

// LineConfig carries the collaborators of a Line.
// Everything but Relay may be left nil.
type LineConfig struct {
	Relay     Relay
	Admission Admission // nil: always allowed (standalone)
	Policy    PolicySource
	Rand      Rand
	Reporter  EventReporter
}

// Line is one simulated phone line and its ring cycle.
// It only moves when Tick is called, it never reads the clock.
type Line struct {
	Index int

	relay     Relay
	admission Admission
	policy    PolicySource
	rng       Rand
	reporter  EventReporter

	state          Rt.LineState
	output         bool
	ringsCompleted int
	ringsTarget    int
	cutShort       bool
	alternate      bool
	callID         string

	lastTransition time.Time
	waitDuration   time.Duration
	ringOn         time.Duration
	ringOff        time.Duration
	finalOn        time.Duration // truncated on-time of a cut short final ring

	stopped bool // Idle reached through ForceStop, nothing since
	held    bool
	heldAt  time.Time
}

// NewLine builds a standalone line, Idle with a wait already drawn
func NewLine(index int, now time.Time, cfg LineConfig) *Line {
	l := &Line{}
	l.init(index, now, cfg)
	return l
}

func (l *Line) init(index int, now time.Time, cfg LineConfig) {
	if cfg.Policy == nil {
		cfg.Policy = staticPolicy(DefaultPolicy())
	}
	if cfg.Rand == nil {
		cfg.Rand = NewNoiseSeededRand()
	}
	if cfg.Reporter == nil {
		cfg.Reporter = NopReporter{}
	}

	*l = Line{
		Index:     index,
		relay:     cfg.Relay,
		admission: cfg.Admission,
		policy:    cfg.Policy,
		rng:       cfg.Rand,
		reporter:  cfg.Reporter,
		state:     Rt.Idle,
	}

	pol := l.policy.Policy()
	l.ringOn, l.ringOff = pol.RingTiming(false)
	l.lastTransition = now
	l.waitDuration = l.drawWait()
	l.setRelay(false)
}

// SetAdmission swaps the admission gate, nil allows every start
func (l *Line) SetAdmission(a Admission) {
	l.admission = a
}

// SetReporter swaps the event sink, nil silences the line
func (l *Line) SetReporter(r EventReporter) {
	if r == nil {
		r = NopReporter{}
	}
	l.reporter = r
}

// Tick advances the state machine to now
func (l *Line) Tick(now time.Time) {
	if l.held {
		return
	}
	elapsed := now.Sub(l.lastTransition)

	switch l.state {
	case Rt.Idle:
		if elapsed < l.waitDuration {
			return
		}
		if l.admission == nil || l.admission.CanStart() {
			l.startCall(now, l.randomCall())
			return
		}
		// denied, try again sooner than a full wait
		l.waitDuration = l.drawWait() / retryDivisor
		l.lastTransition = now
		l.report(Rt.EventAdmissionDenied, l.waitDuration)

	case Rt.RingOn:
		if elapsed < l.onDuration() {
			return
		}
		l.setRelay(false)
		l.lastTransition = now
		if l.ringsCompleted >= l.ringsTarget {
			l.state = Rt.Answered
			l.report(Rt.EventAnswered, AnsweredSettle)
			return
		}
		l.state = Rt.RingOff
		l.report(Rt.EventRingOff, l.ringOff)

	case Rt.RingOff:
		if elapsed < l.ringOff {
			return
		}
		l.ringsCompleted++
		l.enterRingOn(now)

	case Rt.Answered:
		if elapsed < AnsweredSettle {
			return
		}
		l.state = Rt.Waiting
		l.waitDuration = l.drawWait()
		l.lastTransition = now
		l.report(Rt.EventWaiting, l.waitDuration)

	case Rt.Waiting:
		if elapsed < l.waitDuration {
			return
		}
		l.state = Rt.Idle
		l.waitDuration = l.drawWait()
		l.lastTransition = now
		l.report(Rt.EventReady, l.waitDuration)
	}
}

// ForceStart begins a call immediately from any state
func (l *Line) ForceStart(now time.Time, spec Rt.CallSpec) {
	l.startCall(now, spec)
}

// ForceStop drops the relay and returns to Idle with a fresh wait.
// Stopping a line that was just stopped changes nothing.
func (l *Line) ForceStop(now time.Time) {
	if l.state == Rt.Idle && l.stopped {
		l.setRelay(false)
		return
	}
	l.setRelay(false)
	l.state = Rt.Idle
	l.ringsCompleted = 0
	l.ringsTarget = 0
	l.cutShort = false
	l.waitDuration = l.drawWait()
	l.lastTransition = now
	if l.held {
		l.heldAt = now
	}
	l.report(Rt.EventStopped, l.waitDuration)
	l.callID = ""
	l.stopped = true
}

// Hold freezes every timer of the line
func (l *Line) Hold(now time.Time) {
	if l.held {
		return
	}
	l.held = true
	l.heldAt = now
}

// Release resumes a held line with its remaining time untouched
func (l *Line) Release(now time.Time) {
	if !l.held {
		return
	}
	l.lastTransition = l.lastTransition.Add(now.Sub(l.heldAt))
	l.held = false
}

// Remaining is the time left in the current phase
func (l *Line) Remaining(now time.Time) time.Duration {
	if l.held {
		now = l.heldAt
	}
	var phase time.Duration
	switch l.state {
	case Rt.Idle, Rt.Waiting:
		phase = l.waitDuration
	case Rt.RingOn:
		phase = l.onDuration()
	case Rt.RingOff:
		phase = l.ringOff
	case Rt.Answered:
		phase = AnsweredSettle
	}
	left := phase - now.Sub(l.lastTransition)
	if left < 0 {
		return 0
	}
	return left
}

func (l *Line) State() Rt.LineState         { return l.state }
func (l *Line) IsRinging() bool             { return l.state == Rt.RingOn }
func (l *Line) Held() bool                  { return l.held }
func (l *Line) RingsCompleted() int         { return l.ringsCompleted }
func (l *Line) RingsTarget() int            { return l.ringsTarget }
func (l *Line) CutShort() bool              { return l.cutShort }
func (l *Line) Alternate() bool             { return l.alternate }
func (l *Line) WaitDuration() time.Duration { return l.waitDuration }
func (l *Line) CallID() string              { return l.callID }
func (l *Line) String() string              { return StateName(l.state) }

// Asserted is what the relay sees, a held line is silent
func (l *Line) Asserted() bool {
	return l.output && !l.held
}

// IsActive is true for the whole call, from the first ring to the settle
func (l *Line) IsActive() bool {
	return l.state != Rt.Idle && l.state != Rt.Waiting
}

// randomCall draws the shape of an organic call
func (l *Line) randomCall() Rt.CallSpec {
	return drawCall(l.rng, l.policy.Policy())
}

// drawCall picks ring count, cut short and profile for one call
func drawCall(r Rand, pol Policy) Rt.CallSpec {
	spec := Rt.CallSpec{Rings: drawInt(r, pol.RingsMin, pol.RingsMax)}
	if spec.Rings > 1 {
		spec.CutShort = chance(r, pol.AnswerProbability)
	}
	switch pol.Style {
	case Rt.StyleAlternate:
		spec.Alternate = true
	case Rt.StyleMixed:
		spec.Alternate = r.IntN(2) == 1
	}
	return spec
}

func (l *Line) startCall(now time.Time, spec Rt.CallSpec) {
	rings := spec.Rings
	if rings < 1 {
		rings = 1
	}
	if rings > MaxRingsPerCall {
		rings = MaxRingsPerCall
	}

	pol := l.policy.Policy()
	l.ringsTarget = rings
	l.ringsCompleted = 1
	l.cutShort = spec.CutShort
	l.alternate = spec.Alternate
	l.ringOn, l.ringOff = pol.RingTiming(spec.Alternate)
	l.callID = uuid.NewString()
	l.lastTransition = now
	if l.held {
		l.heldAt = now
	}

	l.report(Rt.EventCallStarted, 0)
	l.enterRingOn(now)
}

func (l *Line) enterRingOn(now time.Time) {
	l.stopped = false
	l.state = Rt.RingOn
	l.lastTransition = now
	if l.cutShort && l.ringsCompleted == l.ringsTarget {
		pol := l.policy.Policy()
		pct := drawInt(l.rng, pol.CutShortMinPct, pol.CutShortMaxPct)
		l.finalOn = l.ringOn * time.Duration(pct) / 100
	}
	l.setRelay(true)
	l.report(Rt.EventRingOn, l.onDuration())
}

func (l *Line) onDuration() time.Duration {
	if l.cutShort && l.ringsCompleted == l.ringsTarget {
		return l.finalOn
	}
	return l.ringOn
}

// drawWait asks the policy for the current ceiling at every draw
func (l *Line) drawWait() time.Duration {
	lo, hi := l.policy.Policy().WaitRange()
	return drawDuration(l.rng, lo, hi)
}

func (l *Line) setRelay(on bool) {
	l.output = on
	if l.relay != nil {
		l.relay.Set(l.Index, on)
	}
}

func (l *Line) report(kind Rt.EventKind, d time.Duration) {
	l.reporter.Report(Rt.LineEvent{
		Line:      l.Index,
		Kind:      kind,
		State:     l.state,
		CallID:    l.callID,
		Ring:      l.ringsCompleted,
		Rings:     l.ringsTarget,
		CutShort:  l.cutShort,
		Duration:  d,
		Timestamp: l.lastTransition,
	})
}

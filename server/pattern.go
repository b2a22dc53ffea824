package ringfleet

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	Rp "github.com/maroda/ringfleet/plugin"
	Rt "github.com/maroda/ringfleet/types"
)

// PatternTarget is what the pattern engine needs from the fleet.
// It never touches a Line directly.
type PatternTarget interface {
	Rp.FleetView
	ActiveCount() int
	MaxConcurrentActive() int
	CanStart() bool
	RequestStart(now time.Time, index int, spec Rt.CallSpec)
	RequestStop(now time.Time, index int)
	Policy() Policy
}

var modeNames = map[Rt.PatternMode]string{
	Rt.PatternRandom:     "RANDOM",
	Rt.PatternSequential: "SEQUENTIAL",
	Rt.PatternWave:       "WAVE",
	Rt.PatternMayhem:     "MAYHEM",
	Rt.PatternBurst:      "BURST",
	Rt.PatternCustom:     "CUSTOM",
}

// ModeName is the display name of a pattern mode
func ModeName(m Rt.PatternMode) string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseMode reads a mode name, case insensitive
func ParseMode(s string) (Rt.PatternMode, bool) {
	for m, name := range modeNames {
		if strings.EqualFold(name, s) {
			return m, true
		}
	}
	return Rt.PatternRandom, false
}

// ValidMode falls back to Random for anything unknown
func ValidMode(m Rt.PatternMode) Rt.PatternMode {
	if _, ok := modeNames[m]; !ok {
		return Rt.PatternRandom
	}
	return m
}

// Pattern force-starts idle lines following the selected mode.
// Stepping is gated by the same admission cap as organic starts,
// except Mayhem, which ignores the cap on purpose.
type Pattern struct {
	fleet  PatternTarget
	rng    Rand
	custom Rp.PatternStrategy

	mode     Rt.PatternMode
	active   bool
	paused   bool
	pausedAt time.Time
	fresh    bool // no step taken since Start
	lastStep time.Time

	seqIndex    int
	wavePos     int
	waveForward bool
	inBurst     bool
	windowStart time.Time

	marked [Rt.MaxLines]bool // lines this pattern started
}

func NewPattern(fleet PatternTarget, rng Rand) *Pattern {
	if rng == nil {
		rng = NewNoiseSeededRand()
	}
	return &Pattern{
		fleet: fleet,
		rng:   rng,
		mode:  Rt.PatternRandom,
	}
}

// SetStrategy fills the Custom slot, nil leaves Custom as a no-op
func (p *Pattern) SetStrategy(s Rp.PatternStrategy) {
	p.custom = s
	if s != nil {
		s.Reset()
	}
}

// SetMode switches mode and resets every cursor.
// A running pattern keeps running in the new mode.
func (p *Pattern) SetMode(now time.Time, m Rt.PatternMode) {
	valid := ValidMode(m)
	if valid != m {
		slog.Warn("Unknown pattern mode, using RANDOM", slog.Int("mode", int(m)))
	}
	p.mode = valid
	p.reset(now)
}

// Start resets the cursors and begins stepping
func (p *Pattern) Start(now time.Time) {
	p.reset(now)
	p.active = true
	p.paused = false
	slog.Info("Pattern started", slog.String("mode", ModeName(p.mode)))
}

// Stop silences every line this pattern started
func (p *Pattern) Stop(now time.Time) {
	for i, on := range p.marked {
		if on && p.fleet.IsActive(i) {
			p.fleet.RequestStop(now, i)
		}
		p.marked[i] = false
	}
	p.active = false
	p.paused = false
	slog.Info("Pattern stopped", slog.String("mode", ModeName(p.mode)))
}

// Pause suspends stepping, cursors are kept
func (p *Pattern) Pause(now time.Time) {
	if !p.active || p.paused {
		return
	}
	p.paused = true
	p.pausedAt = now
}

// Resume continues stepping with timing shifted past the pause
func (p *Pattern) Resume(now time.Time) {
	if !p.paused {
		return
	}
	held := now.Sub(p.pausedAt)
	p.lastStep = p.lastStep.Add(held)
	p.windowStart = p.windowStart.Add(held)
	p.paused = false
}

func (p *Pattern) Mode() Rt.PatternMode { return p.mode }
func (p *Pattern) Active() bool         { return p.active }
func (p *Pattern) Paused() bool         { return p.paused }

// Status is a short line for displays
func (p *Pattern) Status() string {
	switch {
	case !p.active:
		return fmt.Sprintf("%s stopped", ModeName(p.mode))
	case p.paused:
		return fmt.Sprintf("%s paused", ModeName(p.mode))
	default:
		return fmt.Sprintf("%s running", ModeName(p.mode))
	}
}

// Tick runs one step of the active mode
func (p *Pattern) Tick(now time.Time) {
	p.forgetFinished()
	if !p.active || p.paused {
		return
	}

	switch p.mode {
	case Rt.PatternMayhem:
		p.stepMayhem(now)
	case Rt.PatternBurst:
		p.stepBurst(now)
	default:
		if p.limited() {
			return
		}
		switch p.mode {
		case Rt.PatternSequential:
			p.stepSequential(now)
		case Rt.PatternWave:
			p.stepWave(now)
		case Rt.PatternCustom:
			p.stepCustom(now)
		default:
			p.stepRandom(now)
		}
	}
	p.fresh = false
}

func (p *Pattern) reset(now time.Time) {
	p.seqIndex = 0
	p.wavePos = 0
	p.waveForward = true
	p.inBurst = false
	p.windowStart = now
	p.lastStep = now
	p.fresh = true
	if p.custom != nil {
		p.custom.Reset()
	}
}

// limited is true once the cap is reached
func (p *Pattern) limited() bool {
	return p.fleet.ActiveCount() >= p.fleet.MaxConcurrentActive()
}

// activate starts one enabled, inactive line and remembers it
func (p *Pattern) activate(now time.Time, index int, gated bool) bool {
	if index < 0 || index >= p.fleet.EnabledLineCount() || p.fleet.IsActive(index) {
		return false
	}
	if gated && !p.fleet.CanStart() {
		return false
	}
	p.fleet.RequestStart(now, index, drawCall(p.rng, p.fleet.Policy()))
	p.marked[index] = true
	return true
}

// forgetFinished drops marks on lines whose call has ended,
// a later organic call on that line is not ours to stop
func (p *Pattern) forgetFinished() {
	for i, on := range p.marked {
		if on && !p.fleet.IsActive(i) {
			p.marked[i] = false
		}
	}
}

func (p *Pattern) stepRandom(now time.Time) {
	if !p.fresh && now.Sub(p.lastStep) < p.fleet.Policy().RandomInterval {
		return
	}
	p.lastStep = now

	var idle [Rt.MaxLines]int
	n := 0
	for i := 0; i < p.fleet.EnabledLineCount(); i++ {
		if !p.fleet.IsActive(i) {
			idle[n] = i
			n++
		}
	}
	if n == 0 {
		return
	}
	p.activate(now, idle[p.rng.IntN(n)], true)
}

func (p *Pattern) stepSequential(now time.Time) {
	n := p.fleet.EnabledLineCount()
	if n == 0 {
		return
	}
	if p.seqIndex >= n {
		p.seqIndex = 0
	}
	switch {
	case p.fresh:
		p.lastStep = now
	case now.Sub(p.lastStep) >= p.fleet.Policy().SequentialDelay:
		p.seqIndex = (p.seqIndex + 1) % n
		p.lastStep = now
	}
	p.activate(now, p.seqIndex, true)
}

func (p *Pattern) stepWave(now time.Time) {
	n := p.fleet.EnabledLineCount()
	if n == 0 {
		return
	}
	if p.wavePos >= n {
		p.wavePos = n - 1
	}
	// the first step starts the line under the cursor
	switch {
	case p.fresh:
		p.lastStep = now
	case now.Sub(p.lastStep) >= p.fleet.Policy().WaveInterval():
		p.lastStep = now
		p.wavePos, p.waveForward = nextWave(p.wavePos, n, p.waveForward)
	}
	p.activate(now, p.wavePos, true)
}

// nextWave bounces the cursor between both ends
func nextWave(pos, n int, forward bool) (int, bool) {
	if n <= 1 {
		return 0, forward
	}
	if forward {
		if pos >= n-1 {
			return pos - 1, false
		}
		return pos + 1, true
	}
	if pos <= 0 {
		return pos + 1, true
	}
	return pos - 1, false
}

func (p *Pattern) stepMayhem(now time.Time) {
	for i := 0; i < p.fleet.EnabledLineCount(); i++ {
		p.activate(now, i, false)
	}
}

// stepBurst keeps its windows turning even while the cap is reached
func (p *Pattern) stepBurst(now time.Time) {
	pol := p.fleet.Policy()
	elapsed := now.Sub(p.windowStart)

	switch {
	case !p.inBurst && (p.fresh || elapsed >= pol.QuietWindow):
		p.inBurst = true
		p.windowStart = now
	case p.inBurst && elapsed >= pol.BurstWindow:
		p.inBurst = false
		p.windowStart = now
	}

	if !p.inBurst || p.limited() {
		return
	}
	for i := 0; i < p.fleet.EnabledLineCount(); i++ {
		if !p.fleet.CanStart() {
			return
		}
		p.activate(now, i, true)
	}
}

func (p *Pattern) stepCustom(now time.Time) {
	if p.custom == nil {
		return
	}
	for _, i := range p.custom.Pick(now, p.fleet) {
		p.activate(now, i, true)
	}
}

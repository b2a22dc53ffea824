package ringfleet

import (
	"time"

	Rt "github.com/maroda/ringfleet/types"
)

// Bounds for the persisted settings record
const (
	MinMaxConcurrent = 1
	MaxMaxConcurrent = Rt.MaxLines
	MinCallDelaySecs = 10
	MaxCallDelaySecs = 1000
	MaxHangTimeSecs  = 60
	MaxRingsPerCall  = 15
)

// Fixed timings that are not user adjustable
const (
	MinCallDelay    = 5 * time.Second // floor of the random wait
	AnsweredSettle  = 1 * time.Second // pause after the last ring
	AlternateOn     = 400 * time.Millisecond
	AlternateOff    = 2000 * time.Millisecond
	retryDivisor    = 4 // admission denied: retry after a quarter wait
	defaultCallSecs = 30
)

// Policy holds every tuning value the core consumes.
// Lines never keep a copy, they ask their PolicySource at each draw.
type Policy struct {
	MaxCallDelay      time.Duration
	RingsMin          int
	RingsMax          int
	AnswerProbability int // percent chance the final ring is cut short
	CutShortMinPct    int
	CutShortMaxPct    int
	Style             Rt.RingStyle
	RingOn            time.Duration // standard profile
	RingOff           time.Duration
	SequentialDelay   time.Duration
	WaveSpeed         int // steps per second
	RandomInterval    time.Duration
	BurstWindow       time.Duration
	QuietWindow       time.Duration
	RingerHangTime    time.Duration
}

// PolicySource hands out the current policy snapshot
type PolicySource interface {
	Policy() Policy
}

// DefaultPolicy matches the values the board ships with
func DefaultPolicy() Policy {
	return Policy{
		MaxCallDelay:      defaultCallSecs * time.Second,
		RingsMin:          1,
		RingsMax:          8,
		AnswerProbability: 50,
		CutShortMinPct:    25,
		CutShortMaxPct:    75,
		Style:             Rt.StyleStandard,
		RingOn:            2000 * time.Millisecond,
		RingOff:           4000 * time.Millisecond,
		SequentialDelay:   1 * time.Second,
		WaveSpeed:         5,
		RandomInterval:    1 * time.Second,
		BurstWindow:       5 * time.Second,
		QuietWindow:       15 * time.Second,
		RingerHangTime:    5 * time.Second,
	}
}

// Clamp pulls every field back inside its documented bounds
func (p Policy) Clamp() Policy {
	p.MaxCallDelay = clampDuration(p.MaxCallDelay, MinCallDelaySecs*time.Second, MaxCallDelaySecs*time.Second)
	p.RingsMin = clampInt(p.RingsMin, 1, MaxRingsPerCall)
	p.RingsMax = clampInt(p.RingsMax, p.RingsMin, MaxRingsPerCall)
	p.AnswerProbability = clampInt(p.AnswerProbability, 0, 100)
	p.CutShortMinPct = clampInt(p.CutShortMinPct, 1, 100)
	p.CutShortMaxPct = clampInt(p.CutShortMaxPct, p.CutShortMinPct, 100)
	if p.Style < Rt.StyleStandard || p.Style > Rt.StyleMixed {
		p.Style = Rt.StyleStandard
	}
	p.RingOn = clampDuration(p.RingOn, 100*time.Millisecond, 10*time.Second)
	p.RingOff = clampDuration(p.RingOff, 100*time.Millisecond, 20*time.Second)
	p.SequentialDelay = clampDuration(p.SequentialDelay, 100*time.Millisecond, 5*time.Second)
	p.WaveSpeed = clampInt(p.WaveSpeed, 1, 10)
	p.RandomInterval = clampDuration(p.RandomInterval, 100*time.Millisecond, 60*time.Second)
	p.BurstWindow = clampDuration(p.BurstWindow, 1*time.Second, 120*time.Second)
	p.QuietWindow = clampDuration(p.QuietWindow, 1*time.Second, 120*time.Second)
	p.RingerHangTime = clampDuration(p.RingerHangTime, 0, MaxHangTimeSecs*time.Second)
	return p
}

// RingTiming returns the on/off durations for a call
func (p Policy) RingTiming(alternate bool) (time.Duration, time.Duration) {
	if alternate {
		return AlternateOn, AlternateOff
	}
	return p.RingOn, p.RingOff
}

// WaitRange is the inclusive range a wait is drawn from.
// If the floor would meet the ceiling it drops to half the ceiling.
func (p Policy) WaitRange() (time.Duration, time.Duration) {
	lo, hi := MinCallDelay, p.MaxCallDelay
	if lo >= hi {
		lo = hi / 2
	}
	return lo, hi
}

// WaveInterval converts the wave speed into a step interval
func (p Policy) WaveInterval() time.Duration {
	speed := clampInt(p.WaveSpeed, 1, 10)
	return time.Second / time.Duration(speed)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

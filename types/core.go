package types

/*

	These are the "immutable" core types of Ringfleet,
	provided for cross-package use (e.g. Plugins) and testing.

	There are no functions defined here.
	Struct constructors are housed in their own packages.

*/

import "time"

// MaxLines is the fixed capacity of the line array.
// The physical board has eight relays.
const MaxLines = 8

// LineState is where a single line sits in its ring cycle
type LineState int

const (
	Idle     LineState = iota // silent, counting down to the next attempt
	RingOn                    // relay asserted, bell ringing
	RingOff                   // silence between rings
	Answered                  // short settle after the last ring
	Waiting                   // cool-down before going Idle again
)

// PatternMode selects how the pattern engine force-starts lines
type PatternMode int

const (
	PatternRandom     PatternMode = iota // random inactive line each interval
	PatternSequential                    // 0 -> 1 -> 2 ...
	PatternWave                          // sweep up and back down
	PatternMayhem                        // everything at once, cap ignored
	PatternBurst                         // busy window, quiet window
	PatternCustom                        // pluggable strategy
)

// RingStyle selects the on/off timing profile of a call
type RingStyle int

const (
	StyleStandard  RingStyle = iota // long on, long off
	StyleAlternate                  // short double pulse, longer silence
	StyleMixed                      // chosen per call
)

// CallSpec describes a forced call.
type CallSpec struct {
	Rings     int  // how many rings this call will make
	CutShort  bool // final ring gets truncated, as if answered
	Alternate bool // use the alternate timing profile
}

// EventKind names a line transition
type EventKind string

const (
	EventCallStarted     EventKind = "call_started"
	EventRingOn          EventKind = "ring_on"
	EventRingOff         EventKind = "ring_off"
	EventAnswered        EventKind = "answered"
	EventWaiting         EventKind = "waiting"
	EventReady           EventKind = "ready"
	EventAdmissionDenied EventKind = "admission_denied"
	EventStopped         EventKind = "stopped"
)

// LineEvent is emitted by a line on every transition.
// CallID ties together every event belonging to one call.
type LineEvent struct {
	Line      int
	Kind      EventKind
	State     LineState
	CallID    string
	Ring      int           // rings begun so far in this call
	Rings     int           // rings targeted for this call
	CutShort  bool          // final ring will be truncated
	Duration  time.Duration // duration of the phase just entered, when known
	Timestamp time.Time
}

// ConfigRecord is the persisted settings record.
// Version and Checksum are stamped by the settings store.
type ConfigRecord struct {
	Version               uint8
	MaxConcurrentActive   uint8  // 1-8
	EnabledLineCount      uint8  // 0-8
	MaxCallDelaySeconds   uint16 // 10-1000
	RingerHangTimeSeconds uint8  // 0-60
	Checksum              uint8
}

// LineStatus is a read-only view of one line
type LineStatus struct {
	Index     int           `json:"index"`
	State     string        `json:"state"`
	Enabled   bool          `json:"enabled"`
	Active    bool          `json:"active"`
	Ringing   bool          `json:"ringing"` // relay on, false while held
	Held      bool          `json:"held"`
	Ring      int           `json:"ring"`
	Rings     int           `json:"rings"`
	Remaining time.Duration `json:"remaining"`
}

// FleetStatus is the snapshot polled by displays and the API
type FleetStatus struct {
	Total         int          `json:"total"`
	Enabled       int          `json:"enabled"`
	MaxConcurrent int          `json:"maxConcurrent"`
	Active        int          `json:"active"`
	Ringing       int          `json:"ringing"`
	Paused        bool         `json:"paused"`
	PowerOn       bool         `json:"powerOn"`
	Pattern       string       `json:"pattern"`
	PatternActive bool         `json:"patternActive"`
	CallDelay     int          `json:"callDelaySeconds"`
	HangTime      int          `json:"hangTimeSeconds"`
	Lines         []LineStatus `json:"lines"`
}

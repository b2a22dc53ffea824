package plugin

/*

	The Adapter sits aside /ringfleet/
	Contains core interfaces for Plugin

*/

import (
	"time"

	Rt "github.com/maroda/ringfleet/types"
)

// SettingsStore persists the small settings record.
// Load returns ok=false for anything missing, stale or corrupted,
// and the caller is expected to fall back to defaults.
type SettingsStore interface {
	Load() (Rt.ConfigRecord, bool)
	Save(rec Rt.ConfigRecord) bool
}

// FleetView is the read-only slice of the fleet a strategy may look at
type FleetView interface {
	EnabledLineCount() int
	IsActive(index int) bool
}

// PatternStrategy backs the Custom pattern mode.
// Pick returns the line indexes it would like started this step,
// the pattern engine still applies admission and skips active lines.
type PatternStrategy interface {
	Pick(now time.Time, fleet FleetView) []int
	Reset()       // called whenever the pattern (re)starts
	Type() string // Unique ID for the strategy
}

// EventOutput can be used to define a place for line events to go,
// event-by-event or in batches if supported by the output type.
type EventOutput interface {
	WriteEvent(ev *Rt.LineEvent) error                        // Write singleton event
	WriteBatch(evs []*Rt.LineEvent) error                     // Write batches of events
	QueryRange(start, end time.Time) ([]*Rt.LineEvent, error) // Time range query tool
	Flush() error                                             // Flush any buffered data
	Close() error                                             // Close the adapter and release resources
	Type() string                                             // ID for output
}

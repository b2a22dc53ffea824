package ringfleet

import (
	"log/slog"

	Rt "github.com/maroda/ringfleet/types"
)

// EventReporter receives every line transition.
// Report must not call back into the fleet.
type EventReporter interface {
	Report(ev Rt.LineEvent)
}

// NopReporter drops everything, it is the default
type NopReporter struct{}

func (NopReporter) Report(Rt.LineEvent) {}

// SlogReporter writes line events as debug logs
type SlogReporter struct {
	Logger *slog.Logger
}

func (sr SlogReporter) Report(ev Rt.LineEvent) {
	logger := sr.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("line event",
		slog.Int("line", ev.Line),
		slog.String("kind", string(ev.Kind)),
		slog.String("state", StateName(ev.State)),
		slog.String("call", ev.CallID),
		slog.Int("ring", ev.Ring),
		slog.Int("rings", ev.Rings),
		slog.Duration("duration", ev.Duration))
}

// MultiReporter fans an event out to several reporters in order
type MultiReporter []EventReporter

func (mr MultiReporter) Report(ev Rt.LineEvent) {
	for _, r := range mr {
		if r != nil {
			r.Report(ev)
		}
	}
}

// StateName is the display name of a line state
func StateName(s Rt.LineState) string {
	switch s {
	case Rt.Idle:
		return "IDLE"
	case Rt.RingOn:
		return "RING"
	case Rt.RingOff:
		return "PAUSE"
	case Rt.Answered:
		return "ANSWERED"
	case Rt.Waiting:
		return "WAITING"
	default:
		return "UNKNOWN"
	}
}

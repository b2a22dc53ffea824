package ringfleet

import (
	"log/slog"
	"time"
)

// PowerRail is the shared ringer supply.
// It comes on with the first active line and drops after the
// hang time has passed with nothing active.
type PowerRail struct {
	relay    Relay
	channel  int
	on       bool
	lastBusy time.Time
}

func NewPowerRail(relay Relay, channel int) *PowerRail {
	return &PowerRail{relay: relay, channel: channel}
}

// Tick takes the active line count sampled this iteration
func (pr *PowerRail) Tick(now time.Time, active int, hang time.Duration) {
	if active > 0 {
		pr.lastBusy = now
		pr.set(true)
		return
	}
	if pr.on && now.Sub(pr.lastBusy) >= hang {
		pr.set(false)
	}
}

// Off drops the rail immediately
func (pr *PowerRail) Off() {
	pr.set(false)
}

func (pr *PowerRail) On() bool { return pr.on }

func (pr *PowerRail) set(on bool) {
	if pr.on == on {
		return
	}
	pr.on = on
	slog.Debug("Ringer power", slog.Bool("on", on))
	if pr.relay != nil {
		pr.relay.Set(pr.channel, on)
	}
}

package ringfleet

import (
	Rt "github.com/maroda/ringfleet/types"
)

// AuxChannel is the relay channel of the shared ringer power rail
const AuxChannel = Rt.MaxLines

// Relay drives one discrete output per channel.
// The core only speaks asserted/deasserted, polarity belongs to the adapter.
type Relay interface {
	Set(channel int, asserted bool)
}

// RelayFunc adapts a function to Relay
type RelayFunc func(channel int, asserted bool)

func (f RelayFunc) Set(channel int, asserted bool) { f(channel, asserted) }

// RelayBank is an in-memory relay board with optional active-low levels.
// It can forward every change to a downstream Relay (e.g. MIDI).
type RelayBank struct {
	ActiveLow bool
	Next      Relay
	asserted  [Rt.MaxLines + 1]bool
}

func NewRelayBank(activeLow bool, next Relay) *RelayBank {
	return &RelayBank{ActiveLow: activeLow, Next: next}
}

func (rb *RelayBank) Set(channel int, asserted bool) {
	if channel < 0 || channel >= len(rb.asserted) {
		return
	}
	rb.asserted[channel] = asserted
	if rb.Next != nil {
		rb.Next.Set(channel, asserted)
	}
}

// Asserted reports the logical state of a channel
func (rb *RelayBank) Asserted(channel int) bool {
	if channel < 0 || channel >= len(rb.asserted) {
		return false
	}
	return rb.asserted[channel]
}

// Level is the electrical level of a channel, true is HIGH
func (rb *RelayBank) Level(channel int) bool {
	return rb.Asserted(channel) != rb.ActiveLow
}

// mutableRelay sits between the lines and the board so pause can
// drop every output without the lines losing their own state
type mutableRelay struct {
	out     Relay
	muted   bool
	desired [Rt.MaxLines + 1]bool
}

func (m *mutableRelay) Set(channel int, asserted bool) {
	if channel >= 0 && channel < len(m.desired) {
		m.desired[channel] = asserted
	}
	if m.out == nil {
		return
	}
	if m.muted {
		m.out.Set(channel, false)
		return
	}
	m.out.Set(channel, asserted)
}

func (m *mutableRelay) mute() {
	m.muted = true
	if m.out == nil {
		return
	}
	for ch := range m.desired {
		m.out.Set(ch, false)
	}
}

func (m *mutableRelay) unmute() {
	m.muted = false
	if m.out == nil {
		return
	}
	for ch, on := range m.desired {
		m.out.Set(ch, on)
	}
}

//go:build nomidi

package plugin

import "fmt"

type MIDIRelay struct {
	Channel uint8
	Root    uint8
}

func NewMIDIRelay(port int, channel, root uint8) (*MIDIRelay, error) {
	return nil, fmt.Errorf("MIDI support not compiled in this build")
}

func (mr *MIDIRelay) Note(channel int) uint8 { return mr.Root + uint8(channel) }
func (mr *MIDIRelay) Set(channel int, asserted bool) {}
func (mr *MIDIRelay) Flush() error { return nil }
func (mr *MIDIRelay) Close() error { return nil }
func (mr *MIDIRelay) Type() string { return "midi-disabled" }

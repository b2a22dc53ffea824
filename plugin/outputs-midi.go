//go:build !nomidi

package plugin

import (
	"fmt"
	"log/slog"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// MIDIRelay drives relay channels as notes, one note per channel.
// A relay interface board (or a synth, for testing by ear) holds
// the note for as long as the channel is asserted.
type MIDIRelay struct {
	MU       sync.Mutex
	Port     drivers.Out
	Send     func(msg midi.Message) error
	Channel  uint8
	Root     uint8
	Velocity uint8
	held     map[int]bool
}

func NewMIDIRelay(port int, channel, root uint8) (*MIDIRelay, error) {
	out, err := midi.OutPort(port)
	if err != nil {
		slog.Error("Error opening MIDI port", slog.Int("port", port))
		return nil, fmt.Errorf("error opening MIDI port: %w", err)
	}

	send, err := midi.SendTo(out)
	if err != nil {
		slog.Error("Error sending to MIDI port", slog.Int("port", port))
		return nil, fmt.Errorf("error sending to MIDI port: %w", err)
	}

	return &MIDIRelay{
		Port:     out,
		Send:     send,
		Channel:  channel,
		Root:     root,
		Velocity: 100,
		held:     make(map[int]bool),
	}, nil
}

// Note is the MIDI note number for a relay channel
func (mr *MIDIRelay) Note(channel int) uint8 {
	return mr.Root + uint8(channel)
}

// Set sends NoteOn when a channel asserts and NoteOff when it drops.
// Repeats of the current level are not resent.
func (mr *MIDIRelay) Set(channel int, asserted bool) {
	mr.MU.Lock()
	defer mr.MU.Unlock()

	if mr.held == nil {
		mr.held = make(map[int]bool)
	}
	if mr.held[channel] == asserted {
		return
	}
	mr.held[channel] = asserted

	var err error
	if asserted {
		err = mr.Send(midi.NoteOn(mr.Channel, mr.Note(channel), mr.Velocity))
	} else {
		err = mr.Send(midi.NoteOff(mr.Channel, mr.Note(channel)))
	}
	if err != nil {
		slog.Error("MIDI relay send failed",
			slog.Int("channel", channel),
			slog.Bool("asserted", asserted),
			slog.Any("error", err))
	}
}

// Flush silences every note
func (mr *MIDIRelay) Flush() error {
	mr.MU.Lock()
	defer mr.MU.Unlock()

	clear(mr.held)
	return mr.Send(midi.ControlChange(mr.Channel, midi.AllNotesOff, midi.Off))
}

func (mr *MIDIRelay) Close() error {
	if err := mr.Flush(); err != nil {
		slog.Error("MIDI flush on close failed", slog.Any("error", err))
	}
	if mr.Port != nil {
		mr.Port.Close()
		midi.CloseDriver()
	}
	return nil
}

func (mr *MIDIRelay) Type() string { return "MIDI" }

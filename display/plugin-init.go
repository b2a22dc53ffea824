//go:build !nomidi

package ringfleet

import (
	"log/slog"

	Rp "github.com/maroda/ringfleet/plugin"
	Ms "github.com/maroda/ringfleet/server"
)

// InitMIDIRelay opens the MIDI relay described by RINGFLEET_MIDI_* variables
func InitMIDIRelay() (*Rp.MIDIRelay, error) {
	midiPort := Ms.FillEnvVarInt("RINGFLEET_MIDI_PORT", 0)
	midiChannel := uint8(Ms.FillEnvVarInt("RINGFLEET_MIDI_CHANNEL", 0))
	midiRoot := uint8(Ms.FillEnvVarInt("RINGFLEET_MIDI_ROOT", 60))

	slog.Info("Configuration found:",
		slog.Int("Port", midiPort),
		slog.Any("Channel", midiChannel),
		slog.Any("Root", midiRoot),
	)

	relay, err := Rp.NewMIDIRelay(midiPort, midiChannel, midiRoot)
	if err != nil {
		slog.Error("Failed to create MIDI relay", slog.Any("error", err))
		return nil, err
	}
	slog.Info("MIDI Relay Enabled", slog.Int("port", midiPort))
	return relay, nil
}

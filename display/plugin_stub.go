//go:build nomidi

package ringfleet

import (
	"fmt"
	"log/slog"

	Rp "github.com/maroda/ringfleet/plugin"
)

func InitMIDIRelay() (*Rp.MIDIRelay, error) {
	slog.Warn("MIDI support not compiled in this build")
	return nil, fmt.Errorf("MIDI support not available")
}

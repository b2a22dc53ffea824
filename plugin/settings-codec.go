package plugin

import (
	"encoding/binary"
	"errors"
	"fmt"

	Rt "github.com/maroda/ringfleet/types"
)

// SettingsVersion is bumped whenever the record layout changes.
// Version 3 added the ringer hang time.
const SettingsVersion uint8 = 3

// settingsSize is version, maxConcurrent, enabled, delay (2), hang, checksum
const settingsSize = 7

var (
	ErrSettingsSize     = errors.New("settings record has the wrong size")
	ErrSettingsVersion  = errors.New("settings record version mismatch")
	ErrSettingsChecksum = errors.New("settings record checksum mismatch")
	ErrSettingsRange    = errors.New("settings record value out of range")
)

// SettingsChecksum is the XOR of every byte before the checksum
func SettingsChecksum(rec Rt.ConfigRecord) uint8 {
	var delay [2]byte
	binary.LittleEndian.PutUint16(delay[:], rec.MaxCallDelaySeconds)

	sum := rec.Version
	sum ^= rec.MaxConcurrentActive
	sum ^= rec.EnabledLineCount
	sum ^= delay[0]
	sum ^= delay[1]
	sum ^= rec.RingerHangTimeSeconds
	return sum
}

// EncodeSettings stamps version and checksum, then packs the record
func EncodeSettings(rec Rt.ConfigRecord) []byte {
	rec.Version = SettingsVersion
	rec.Checksum = SettingsChecksum(rec)

	buf := make([]byte, settingsSize)
	buf[0] = rec.Version
	buf[1] = rec.MaxConcurrentActive
	buf[2] = rec.EnabledLineCount
	binary.LittleEndian.PutUint16(buf[3:5], rec.MaxCallDelaySeconds)
	buf[5] = rec.RingerHangTimeSeconds
	buf[6] = rec.Checksum
	return buf
}

// DecodeSettings unpacks and validates a stored record
func DecodeSettings(data []byte) (Rt.ConfigRecord, error) {
	var rec Rt.ConfigRecord
	if len(data) != settingsSize {
		return rec, fmt.Errorf("%w: %d bytes", ErrSettingsSize, len(data))
	}

	rec.Version = data[0]
	rec.MaxConcurrentActive = data[1]
	rec.EnabledLineCount = data[2]
	rec.MaxCallDelaySeconds = binary.LittleEndian.Uint16(data[3:5])
	rec.RingerHangTimeSeconds = data[5]
	rec.Checksum = data[6]

	if rec.Version != SettingsVersion {
		return rec, fmt.Errorf("%w: got %d want %d", ErrSettingsVersion, rec.Version, SettingsVersion)
	}
	if sum := SettingsChecksum(rec); sum != rec.Checksum {
		return rec, fmt.Errorf("%w: got %#x want %#x", ErrSettingsChecksum, rec.Checksum, sum)
	}
	if err := ValidateSettings(rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// ValidateSettings checks the ranges a stored record must respect
func ValidateSettings(rec Rt.ConfigRecord) error {
	switch {
	case rec.MaxConcurrentActive < 1 || rec.MaxConcurrentActive > Rt.MaxLines:
		return fmt.Errorf("%w: maxConcurrentActive %d", ErrSettingsRange, rec.MaxConcurrentActive)
	case rec.EnabledLineCount > Rt.MaxLines:
		return fmt.Errorf("%w: enabledLineCount %d", ErrSettingsRange, rec.EnabledLineCount)
	case rec.MaxCallDelaySeconds < 10 || rec.MaxCallDelaySeconds > 1000:
		return fmt.Errorf("%w: maxCallDelaySeconds %d", ErrSettingsRange, rec.MaxCallDelaySeconds)
	case rec.RingerHangTimeSeconds > 60:
		return fmt.Errorf("%w: ringerHangTimeSeconds %d", ErrSettingsRange, rec.RingerHangTimeSeconds)
	}
	return nil
}

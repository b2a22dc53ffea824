package plugin_test

import (
	"errors"
	"strings"
	"testing"

	Mp "github.com/maroda/ringfleet/plugin"
	Rt "github.com/maroda/ringfleet/types"
)

func TestEncodeSettings(t *testing.T) {
	rec := Rt.ConfigRecord{MaxConcurrentActive: 4, EnabledLineCount: 8, MaxCallDelaySeconds: 300, RingerHangTimeSeconds: 5}

	t.Run("Stamps version and checksum", func(t *testing.T) {
		got := Mp.EncodeSettings(rec)
		assertInt(t, len(got), 7)
		assertInt(t, int(got[0]), int(Mp.SettingsVersion))

		// 300 is 0x012c little endian
		want := Mp.SettingsVersion ^ 4 ^ 8 ^ 0x2c ^ 0x01 ^ 5
		assertInt(t, int(got[6]), int(want))
	})

	t.Run("Decodes what it encodes", func(t *testing.T) {
		got, err := Mp.DecodeSettings(Mp.EncodeSettings(rec))
		assertError(t, err, nil)
		assertInt(t, int(got.MaxCallDelaySeconds), 300)
		assertInt(t, int(got.Checksum), int(Mp.SettingsChecksum(got)))
	})
}

func TestDecodeSettings(t *testing.T) {
	good := Mp.EncodeSettings(Rt.ConfigRecord{MaxConcurrentActive: 4, EnabledLineCount: 8, MaxCallDelaySeconds: 30})

	tests := []struct {
		name   string
		mangle func([]byte) []byte
		want   error
	}{
		{"short record", func(b []byte) []byte { return b[:5] }, Mp.ErrSettingsSize},
		{"older version", func(b []byte) []byte { b[0] = 2; return b }, Mp.ErrSettingsVersion},
		{"flipped bit", func(b []byte) []byte { b[1] ^= 0x01; return b }, Mp.ErrSettingsChecksum},
		{"bad range with good checksum", func(b []byte) []byte {
			b[1] = 0
			b[6] = b[0] ^ b[1] ^ b[2] ^ b[3] ^ b[4] ^ b[5]
			return b
		}, Mp.ErrSettingsRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append([]byte(nil), good...)
			_, err := Mp.DecodeSettings(tt.mangle(data))
			if !errors.Is(err, tt.want) {
				t.Errorf("got error %v, want %v", err, tt.want)
			}
		})
	}
}

func assertError(t testing.TB, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Errorf("got error %q want %q", got, want)
	}
}

func assertGotError(t testing.TB, got error) {
	t.Helper()
	if got == nil {
		t.Errorf("Expected an error but got %q", got)
	}
}

func assertInt(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("did not get correct value, got %d, want %d", got, want)
	}
}

func assertStringContains(t *testing.T, full, want string) {
	t.Helper()
	if !strings.Contains(full, want) {
		t.Errorf("Did not find %q, expected string contains %q", want, full)
	}
}

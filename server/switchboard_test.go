package ringfleet_test

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	Rp "github.com/maroda/ringfleet/plugin"
	Ms "github.com/maroda/ringfleet/server"
	Rt "github.com/maroda/ringfleet/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSwitchboard(t *testing.T) {
	sb := Ms.NewSwitchboard(t0, Ms.SwitchboardConfig{Rand: zeroRand{}, Mode: Rt.PatternWave})

	assert.Equal(t, Ms.DefaultRecord(), sb.Record())
	assert.Equal(t, Rt.MaxLines, sb.Fleet.TotalLines())
	assert.Equal(t, 4, sb.Fleet.MaxConcurrentActive())
	assert.Equal(t, Rt.PatternWave, sb.Pattern.Mode())
	assert.False(t, sb.Pattern.Active())
	assert.False(t, sb.Paused())

	t.Run("Small boards clamp the record", func(t *testing.T) {
		small := Ms.NewSwitchboard(t0, Ms.SwitchboardConfig{Lines: 3, Rand: zeroRand{}})
		assert.Equal(t, uint8(3), small.Record().EnabledLineCount)
		assert.Equal(t, uint8(3), small.Record().MaxConcurrentActive)
	})

	t.Run("Tuning delay and hang seed the record", func(t *testing.T) {
		p := Ms.DefaultPolicy()
		p.MaxCallDelay = 90 * time.Second
		p.RingerHangTime = 12 * time.Second
		tuned := Ms.NewSwitchboard(t0, Ms.SwitchboardConfig{Policy: p, Rand: zeroRand{}})
		assert.Equal(t, uint16(90), tuned.Record().MaxCallDelaySeconds)
		assert.Equal(t, uint8(12), tuned.Record().RingerHangTimeSeconds)
	})
}

func TestSwitchboard_LoadSettings(t *testing.T) {
	ctx := context.Background()

	t.Run("No store keeps the defaults", func(t *testing.T) {
		sb := Ms.NewSwitchboard(t0, Ms.SwitchboardConfig{Rand: zeroRand{}})
		assert.False(t, sb.LoadSettings(ctx, t0))
		assert.Equal(t, Ms.DefaultRecord(), sb.Record())
	})

	t.Run("Missing record writes the defaults back", func(t *testing.T) {
		store := &memStore{}
		sb := Ms.NewSwitchboard(t0, Ms.SwitchboardConfig{Rand: zeroRand{}, Store: store})

		assert.False(t, sb.LoadSettings(ctx, t0))
		assert.Equal(t, Ms.DefaultRecord(), sb.Record())
		assert.Equal(t, 1, store.saves)
		assert.Equal(t, Ms.DefaultRecord(), store.saved)
	})

	t.Run("Stored record is applied", func(t *testing.T) {
		store := &memStore{ok: true, saved: Rt.ConfigRecord{
			MaxConcurrentActive:   2,
			EnabledLineCount:      5,
			MaxCallDelaySeconds:   120,
			RingerHangTimeSeconds: 10,
		}}
		sb := Ms.NewSwitchboard(t0, Ms.SwitchboardConfig{Rand: zeroRand{}, Store: store})

		assert.True(t, sb.LoadSettings(ctx, t0))
		assert.Equal(t, 2, sb.Fleet.MaxConcurrentActive())
		assert.Equal(t, 5, sb.Fleet.EnabledLineCount())
		assert.Equal(t, 120*time.Second, sb.Fleet.Policy().MaxCallDelay)
		assert.Equal(t, 10*time.Second, sb.Fleet.Policy().RingerHangTime)
		assert.Zero(t, store.saves, "a good record is not rewritten")
	})

	t.Run("Out of range values are clamped", func(t *testing.T) {
		store := &memStore{ok: true, saved: Rt.ConfigRecord{
			MaxConcurrentActive:   0,
			EnabledLineCount:      12,
			MaxCallDelaySeconds:   2,
			RingerHangTimeSeconds: 200,
		}}
		sb := Ms.NewSwitchboard(t0, Ms.SwitchboardConfig{Rand: zeroRand{}, Store: store})
		sb.LoadSettings(ctx, t0)

		assert.Equal(t, Rt.ConfigRecord{
			MaxConcurrentActive:   1,
			EnabledLineCount:      8,
			MaxCallDelaySeconds:   10,
			RingerHangTimeSeconds: 60,
		}, sb.Record())
	})
}

func TestSwitchboard_SettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := Rp.NewBadgerSettings(db)

	first := Ms.NewSwitchboard(t0, Ms.SwitchboardConfig{Rand: zeroRand{}, Store: store})
	first.LoadSettings(ctx, t0)
	first.SetEnabledLineCount(ctx, t0, 6)
	first.SetMaxConcurrentActive(ctx, t0, 3)
	first.SetMaxCallDelaySeconds(ctx, t0, 240)
	first.SetRingerHangTimeSeconds(ctx, t0, 0)

	second := Ms.NewSwitchboard(t0, Ms.SwitchboardConfig{Rand: zeroRand{}, Store: store})
	require.True(t, second.LoadSettings(ctx, t0))

	got := second.Record()
	assert.Equal(t, uint8(6), got.EnabledLineCount)
	assert.Equal(t, uint8(3), got.MaxConcurrentActive)
	assert.Equal(t, uint16(240), got.MaxCallDelaySeconds)
	assert.Zero(t, got.RingerHangTimeSeconds)
	assert.Equal(t, Rp.SettingsVersion, got.Version)
}

func TestSwitchboard_Setters(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	sb := Ms.NewSwitchboard(t0, Ms.SwitchboardConfig{Lines: 4, Rand: zeroRand{}, Store: store})

	sb.SetEnabledLineCount(ctx, t0, 10)
	assert.Equal(t, 4, sb.Fleet.EnabledLineCount())

	sb.SetMaxConcurrentActive(ctx, t0, 0)
	assert.Equal(t, 1, sb.Fleet.MaxConcurrentActive())

	sb.SetMaxCallDelaySeconds(ctx, t0, 5000)
	assert.Equal(t, uint16(Ms.MaxCallDelaySecs), sb.Record().MaxCallDelaySeconds)
	assert.Equal(t, Ms.MaxCallDelaySecs*time.Second, sb.Fleet.Policy().MaxCallDelay)

	sb.SetRingerHangTimeSeconds(ctx, t0, -3)
	assert.Zero(t, sb.Record().RingerHangTimeSeconds)

	assert.Equal(t, 4, store.saves, "every change is persisted")
	assert.Equal(t, sb.Record(), store.saved)
}

func TestSwitchboard_ApplyTuning(t *testing.T) {
	sb := Ms.NewSwitchboard(t0, Ms.SwitchboardConfig{Rand: zeroRand{}})

	p := Ms.DefaultPolicy()
	p.RingsMax = 3
	p.MaxCallDelay = 500 * time.Second
	sb.ApplyTuning(p)

	assert.Equal(t, 3, sb.Fleet.Policy().RingsMax)
	assert.Equal(t, 30*time.Second, sb.Fleet.Policy().MaxCallDelay, "call delay stays with the record")
}

func TestSwitchboard_PauseResume(t *testing.T) {
	bank := Ms.NewRelayBank(false, nil)
	sb := Ms.NewSwitchboard(t0, Ms.SwitchboardConfig{Lines: 4, Relay: bank, Rand: zeroRand{}})
	sb.StartLine(t0, 0, &Rt.CallSpec{Rings: 2})
	sb.Tick(t0)
	require.True(t, bank.Asserted(0))
	require.True(t, bank.Asserted(Ms.AuxChannel))

	sb.Pause(at(time.Second))
	assert.True(t, sb.Paused())
	assert.False(t, bank.Asserted(0), "every output drops at once")
	assert.False(t, bank.Asserted(Ms.AuxChannel))
	assert.False(t, sb.Power.On())

	sb.Tick(at(30 * time.Second))
	assert.Equal(t, Rt.RingOn, sb.Fleet.LineState(0), "timers are frozen")

	sb.Resume(at(30 * time.Second))
	assert.False(t, sb.Paused())
	assert.True(t, bank.Asserted(0))
	assert.Equal(t, time.Second, sb.Fleet.Remaining(at(30*time.Second), 0))

	sb.Tick(at(31 * time.Second))
	assert.Equal(t, Rt.RingOff, sb.Fleet.LineState(0))
	assert.True(t, sb.Power.On())

	t.Run("Toggle flips both ways", func(t *testing.T) {
		sb.TogglePause(at(32 * time.Second))
		assert.True(t, sb.Paused())
		sb.TogglePause(at(33 * time.Second))
		assert.False(t, sb.Paused())
	})
}

func TestSwitchboard_HangTime(t *testing.T) {
	sb := Ms.NewSwitchboard(t0, Ms.SwitchboardConfig{Lines: 2, Rand: zeroRand{}})
	sb.Fleet.SetAdmission(Ms.AdmissionFunc(func() bool { return false }))

	sb.StartLine(t0, 0, &Rt.CallSpec{Rings: 1})
	sb.Tick(t0)
	assert.True(t, sb.Power.On())

	sb.Tick(at(2 * time.Second)) // answered, still active
	sb.Tick(at(3 * time.Second)) // waiting
	require.Zero(t, sb.Fleet.ActiveCount())

	sb.Tick(at(6 * time.Second))
	assert.True(t, sb.Power.On(), "power hangs on after the last call")

	sb.Tick(at(7 * time.Second))
	assert.False(t, sb.Power.On())
}

func TestSwitchboard_Pattern(t *testing.T) {
	sb := Ms.NewSwitchboard(t0, Ms.SwitchboardConfig{Lines: 4, Rand: zeroRand{}})

	sb.TogglePattern(t0)
	assert.True(t, sb.Pattern.Active())
	sb.Tick(t0)
	assert.Equal(t, 1, sb.Fleet.ActiveCount())

	sb.TogglePattern(at(time.Second))
	assert.False(t, sb.Pattern.Active())
	assert.Zero(t, sb.Fleet.ActiveCount())

	t.Run("Mode cycles and wraps", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			sb.CyclePatternMode(t0)
		}
		assert.Equal(t, Rt.PatternCustom, sb.Pattern.Mode())
		sb.CyclePatternMode(t0)
		assert.Equal(t, Rt.PatternRandom, sb.Pattern.Mode())
	})

	t.Run("Custom slot uses the strategy", func(t *testing.T) {
		custom := Ms.NewSwitchboard(t0, Ms.SwitchboardConfig{
			Lines:    4,
			Rand:     zeroRand{},
			Strategy: &Rp.LadderStrategy{Interval: time.Second},
			Mode:     Rt.PatternCustom,
		})
		custom.StartPattern(t0)
		custom.Tick(t0)
		assert.True(t, custom.Fleet.IsActive(0))

		custom.StopPattern(t0)
		assert.False(t, custom.Fleet.IsActive(0))
	})
}

func TestSwitchboard_StartLine(t *testing.T) {
	ctx := context.Background()
	sb := Ms.NewSwitchboard(t0, Ms.SwitchboardConfig{Lines: 4, Rand: zeroRand{}})

	sb.StartLine(t0, 1, nil)
	assert.True(t, sb.Fleet.IsActive(1), "a nil call is drawn from the policy")

	sb.StopLine(t0, 1)
	assert.False(t, sb.Fleet.IsActive(1))

	sb.SetEnabledLineCount(ctx, t0, 2)
	sb.StartLine(t0, 3, &Rt.CallSpec{Rings: 2})
	assert.False(t, sb.Fleet.IsActive(3))
}

func TestSwitchboard_Status(t *testing.T) {
	sb := Ms.NewSwitchboard(t0, Ms.SwitchboardConfig{Lines: 4, Rand: zeroRand{}})
	sb.StartLine(t0, 2, &Rt.CallSpec{Rings: 3})
	sb.Tick(t0)

	st := sb.Status(t0)
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 4, st.Enabled)
	assert.Equal(t, 4, st.MaxConcurrent)
	assert.Equal(t, 1, st.Active)
	assert.Equal(t, 1, st.Ringing)
	assert.True(t, st.PowerOn)
	assert.Equal(t, "RANDOM", st.Pattern)
	assert.Equal(t, 30, st.CallDelay)
	assert.Equal(t, 5, st.HangTime)
	require.Len(t, st.Lines, 4)
	assert.Equal(t, "RING", st.Lines[2].State)
}

type memStore struct {
	saved Rt.ConfigRecord
	ok    bool
	saves int
}

func (ms *memStore) Load() (Rt.ConfigRecord, bool) { return ms.saved, ms.ok }

func (ms *memStore) Save(rec Rt.ConfigRecord) bool {
	ms.saved = rec
	ms.ok = true
	ms.saves++
	return true
}

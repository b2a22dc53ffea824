package ringfleet

import (
	"context"
	"log/slog"
	"time"

	Rp "github.com/maroda/ringfleet/plugin"
	Rt "github.com/maroda/ringfleet/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/maroda/ringfleet/server")

// SwitchboardConfig wires the whole core together
type SwitchboardConfig struct {
	Lines    int
	Relay    Relay
	Policy   Policy
	Rand     Rand
	Reporter EventReporter
	Store    Rp.SettingsStore   // nil keeps settings in memory only
	Strategy Rp.PatternStrategy // fills the Custom pattern slot
	Mode     Rt.PatternMode
}

// Switchboard is the top of the core: one Tick per loop iteration
// advances the fleet, then the pattern engine, then the power rail.
// It is not safe for concurrent use, callers serialize.
type Switchboard struct {
	Fleet   *Fleet
	Pattern *Pattern
	Power   *PowerRail

	store  Rp.SettingsStore
	rng    Rand
	record Rt.ConfigRecord
	paused bool
}

// DefaultRecord is used whenever no valid settings are stored
func DefaultRecord() Rt.ConfigRecord {
	return Rt.ConfigRecord{
		MaxConcurrentActive:   4,
		EnabledLineCount:      Rt.MaxLines,
		MaxCallDelaySeconds:   defaultCallSecs,
		RingerHangTimeSeconds: 5,
	}
}

// ClampRecord pulls every settings field back inside its bounds
func ClampRecord(rec Rt.ConfigRecord) Rt.ConfigRecord {
	rec.MaxConcurrentActive = uint8(clampInt(int(rec.MaxConcurrentActive), MinMaxConcurrent, MaxMaxConcurrent))
	rec.EnabledLineCount = uint8(clampInt(int(rec.EnabledLineCount), 0, Rt.MaxLines))
	rec.MaxCallDelaySeconds = uint16(clampInt(int(rec.MaxCallDelaySeconds), MinCallDelaySecs, MaxCallDelaySecs))
	rec.RingerHangTimeSeconds = uint8(clampInt(int(rec.RingerHangTimeSeconds), 0, MaxHangTimeSecs))
	return rec
}

func NewSwitchboard(now time.Time, cfg SwitchboardConfig) *Switchboard {
	if cfg.Rand == nil {
		cfg.Rand = NewNoiseSeededRand()
	}
	if cfg.Policy == (Policy{}) {
		cfg.Policy = DefaultPolicy()
	}

	rec := DefaultRecord()
	fleet := NewFleet(now, FleetConfig{
		Lines:         cfg.Lines,
		MaxConcurrent: int(rec.MaxConcurrentActive),
		Relay:         cfg.Relay,
		Policy:        cfg.Policy,
		Rand:          cfg.Rand,
		Reporter:      cfg.Reporter,
	})

	sb := &Switchboard{
		Fleet:   fleet,
		Pattern: NewPattern(fleet, cfg.Rand),
		Power:   NewPowerRail(RelayFunc(fleet.SetAux), AuxChannel),
		store:   cfg.Store,
		rng:     cfg.Rand,
	}
	sb.Pattern.SetStrategy(cfg.Strategy)
	sb.Pattern.SetMode(now, cfg.Mode)

	// policy values that live in the record win over the tuning defaults
	rec.MaxCallDelaySeconds = uint16(fleet.Policy().MaxCallDelay / time.Second)
	rec.RingerHangTimeSeconds = uint8(fleet.Policy().RingerHangTime / time.Second)
	sb.apply(now, ClampRecord(rec))
	return sb
}

// LoadSettings reads the store once. Anything unusable is replaced
// with defaults, which are written back straight away.
func (sb *Switchboard) LoadSettings(ctx context.Context, now time.Time) bool {
	_, span := tracer.Start(ctx, "LoadSettings")
	defer span.End()

	if sb.store == nil {
		return false
	}

	rec, ok := sb.store.Load()
	span.SetAttributes(attribute.Bool("settings.valid", ok))
	if !ok {
		slog.Warn("No valid settings stored, applying defaults")
		rec = DefaultRecord()
		sb.apply(now, rec)
		sb.persist(ctx)
		return false
	}

	sb.apply(now, ClampRecord(rec))
	slog.Info("Settings loaded",
		slog.Int("maxConcurrent", int(sb.record.MaxConcurrentActive)),
		slog.Int("enabledLines", int(sb.record.EnabledLineCount)),
		slog.Int("maxCallDelay", int(sb.record.MaxCallDelaySeconds)),
		slog.Int("hangTime", int(sb.record.RingerHangTimeSeconds)))
	return true
}

// ApplySettings replaces the whole record, clamped, and persists it
func (sb *Switchboard) ApplySettings(ctx context.Context, now time.Time, rec Rt.ConfigRecord) {
	sb.apply(now, ClampRecord(rec))
	sb.persist(ctx)
}

// ApplyTuning swaps the finer policy values.
// Call delay and hang time stay with the settings record.
func (sb *Switchboard) ApplyTuning(p Policy) {
	p.MaxCallDelay = time.Duration(sb.record.MaxCallDelaySeconds) * time.Second
	p.RingerHangTime = time.Duration(sb.record.RingerHangTimeSeconds) * time.Second
	sb.Fleet.SetPolicy(p)
}

func (sb *Switchboard) SetEnabledLineCount(ctx context.Context, now time.Time, n int) {
	rec := sb.record
	rec.EnabledLineCount = uint8(clampInt(n, 0, Rt.MaxLines))
	sb.ApplySettings(ctx, now, rec)
}

func (sb *Switchboard) SetMaxConcurrentActive(ctx context.Context, now time.Time, n int) {
	rec := sb.record
	rec.MaxConcurrentActive = uint8(clampInt(n, MinMaxConcurrent, MaxMaxConcurrent))
	sb.ApplySettings(ctx, now, rec)
}

func (sb *Switchboard) SetMaxCallDelaySeconds(ctx context.Context, now time.Time, secs int) {
	rec := sb.record
	rec.MaxCallDelaySeconds = uint16(clampInt(secs, MinCallDelaySecs, MaxCallDelaySecs))
	sb.ApplySettings(ctx, now, rec)
}

func (sb *Switchboard) SetRingerHangTimeSeconds(ctx context.Context, now time.Time, secs int) {
	rec := sb.record
	rec.RingerHangTimeSeconds = uint8(clampInt(secs, 0, MaxHangTimeSecs))
	sb.ApplySettings(ctx, now, rec)
}

// Record is the settings currently in force
func (sb *Switchboard) Record() Rt.ConfigRecord { return sb.record }

// Tick is one iteration of the control loop
func (sb *Switchboard) Tick(now time.Time) {
	if sb.paused {
		return
	}
	sb.Fleet.Tick(now)
	sb.Pattern.Tick(now)
	sb.Power.Tick(now, sb.Fleet.ActiveCount(), sb.Fleet.Policy().RingerHangTime)
}

// Pause drops every output now and freezes every timer
func (sb *Switchboard) Pause(now time.Time) {
	if sb.paused {
		return
	}
	sb.paused = true
	sb.Power.Off()
	sb.Fleet.Hold(now)
	sb.Pattern.Pause(now)
	slog.Info("System paused")
}

// Resume lets every line pick up where it was
func (sb *Switchboard) Resume(now time.Time) {
	if !sb.paused {
		return
	}
	sb.Fleet.Release(now)
	sb.Pattern.Resume(now)
	sb.paused = false
	slog.Info("System resumed")
}

func (sb *Switchboard) TogglePause(now time.Time) {
	if sb.paused {
		sb.Resume(now)
		return
	}
	sb.Pause(now)
}

func (sb *Switchboard) Paused() bool { return sb.paused }

func (sb *Switchboard) StartPattern(now time.Time) { sb.Pattern.Start(now) }
func (sb *Switchboard) StopPattern(now time.Time)  { sb.Pattern.Stop(now) }

func (sb *Switchboard) TogglePattern(now time.Time) {
	if sb.Pattern.Active() {
		sb.Pattern.Stop(now)
		return
	}
	sb.Pattern.Start(now)
}

// StartLine forces a call on one line, a nil spec draws a random call
func (sb *Switchboard) StartLine(now time.Time, index int, spec *Rt.CallSpec) {
	if spec == nil {
		drawn := drawCall(sb.rng, sb.Fleet.Policy())
		spec = &drawn
	}
	sb.Fleet.RequestStart(now, index, *spec)
}

func (sb *Switchboard) StopLine(now time.Time, index int) {
	sb.Fleet.RequestStop(now, index)
}

func (sb *Switchboard) SetPatternMode(now time.Time, m Rt.PatternMode) {
	sb.Pattern.SetMode(now, m)
}

// CyclePatternMode steps to the next mode, wrapping after Custom
func (sb *Switchboard) CyclePatternMode(now time.Time) {
	next := (sb.Pattern.Mode() + 1) % (Rt.PatternCustom + 1)
	sb.Pattern.SetMode(now, next)
}

// Status is the snapshot polled by displays, it changes nothing
func (sb *Switchboard) Status(now time.Time) Rt.FleetStatus {
	return Rt.FleetStatus{
		Total:         sb.Fleet.TotalLines(),
		Enabled:       sb.Fleet.EnabledLineCount(),
		MaxConcurrent: sb.Fleet.MaxConcurrentActive(),
		Active:        sb.Fleet.ActiveCount(),
		Ringing:       sb.Fleet.RingingCount(),
		Paused:        sb.paused,
		PowerOn:       sb.Power.On(),
		Pattern:       ModeName(sb.Pattern.Mode()),
		PatternActive: sb.Pattern.Active(),
		CallDelay:     int(sb.record.MaxCallDelaySeconds),
		HangTime:      int(sb.record.RingerHangTimeSeconds),
		Lines:         sb.Fleet.Snapshot(now),
	}
}

// apply also limits the record to the lines this board actually has
func (sb *Switchboard) apply(now time.Time, rec Rt.ConfigRecord) {
	total := sb.Fleet.TotalLines()
	rec.EnabledLineCount = uint8(min(int(rec.EnabledLineCount), total))
	rec.MaxConcurrentActive = uint8(min(int(rec.MaxConcurrentActive), total))
	sb.record = rec
	sb.Fleet.SetMaxConcurrentActive(int(rec.MaxConcurrentActive))
	sb.Fleet.SetEnabledLineCount(now, int(rec.EnabledLineCount))

	pol := sb.Fleet.Policy()
	pol.MaxCallDelay = time.Duration(rec.MaxCallDelaySeconds) * time.Second
	pol.RingerHangTime = time.Duration(rec.RingerHangTimeSeconds) * time.Second
	sb.Fleet.SetPolicy(pol)
}

func (sb *Switchboard) persist(ctx context.Context) {
	_, span := tracer.Start(ctx, "SaveSettings")
	defer span.End()

	if sb.store == nil {
		return
	}
	if !sb.store.Save(sb.record) {
		span.SetAttributes(attribute.Bool("settings.saved", false))
		slog.Error("Settings were not saved",
			slog.Int("maxConcurrent", int(sb.record.MaxConcurrentActive)),
			slog.Int("enabledLines", int(sb.record.EnabledLineCount)))
	}
}

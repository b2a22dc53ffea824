package plugin_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	Mp "github.com/maroda/ringfleet/plugin"
	Rt "github.com/maroda/ringfleet/types"
)

func TestNewBadgerOutput(t *testing.T) {
	t.Run("Creates new struct for output", func(t *testing.T) {
		got, err := Mp.NewBadgerOutput(t.TempDir(), 10)
		assertError(t, err, nil)
		defer got.Close()
		assertInt(t, got.BatchSize, 10)
	})

	t.Run("Batch size is at least one", func(t *testing.T) {
		db := makeTestDB(t)
		got := Mp.NewBadgerOutputDB(db, 0)
		assertInt(t, got.BatchSize, 1)
	})

	t.Run("Returns Type", func(t *testing.T) {
		adapter := makeTestBadgerOutput(t)
		assertStringContains(t, adapter.Type(), "BadgerDB")
	})
}

func TestBadgerOutput_WriteEvent(t *testing.T) {
	adapter := makeTestBadgerOutput(t)

	t.Run("Buffers until the batch is full", func(t *testing.T) {
		start := time.Now()
		for i := 0; i < 4; i++ {
			err := adapter.WriteEvent(&Rt.LineEvent{Line: i, Kind: Rt.EventRingOn, Timestamp: start.Add(time.Duration(i) * time.Second)})
			assertError(t, err, nil)
		}
		assertInt(t, len(adapter.Buffer), 4)

		got, err := adapter.QueryRange(start.Add(-time.Second), start.Add(10*time.Second))
		assertError(t, err, nil)
		assertInt(t, len(got), 0)
	})

	t.Run("Writes the batch when full", func(t *testing.T) {
		start := time.Now().Add(time.Hour)
		events := []*Rt.LineEvent{
			{Line: 0, Kind: Rt.EventCallStarted, CallID: "a", Timestamp: start},
			{Line: 0, Kind: Rt.EventRingOn, CallID: "a", Timestamp: start.Add(1 * time.Millisecond)},
			{Line: 1, Kind: Rt.EventCallStarted, CallID: "b", Timestamp: start.Add(1 * time.Second)},
			{Line: 1, Kind: Rt.EventRingOn, CallID: "b", Timestamp: start.Add(2 * time.Second)},
			{Line: 0, Kind: Rt.EventAnswered, CallID: "a", Timestamp: start.Add(3 * time.Second)},
		}

		// four are already buffered from the previous run
		assertError(t, adapter.WriteEvent(events[0]), nil)
		assertInt(t, len(adapter.Buffer), 0)

		for _, ev := range events[1:] {
			assertError(t, adapter.WriteEvent(ev), nil)
		}
		assertError(t, adapter.Flush(), nil)

		got, err := adapter.QueryRange(start, start.Add(5*time.Second))
		assertError(t, err, nil)
		if len(got) != len(events) {
			t.Fatalf("Expected %d events, got %d", len(events), len(got))
		}
		for i, ev := range got {
			if ev.CallID != events[i].CallID || ev.Kind != events[i].Kind {
				t.Errorf("event %d mismatch: got %s/%s, want %s/%s", i, ev.CallID, ev.Kind, events[i].CallID, events[i].Kind)
			}
		}
	})
}

func TestBadgerOutput_Report(t *testing.T) {
	adapter := makeTestBadgerOutput(t)
	now := time.Now()

	adapter.Report(Rt.LineEvent{Line: 3, Kind: Rt.EventStopped, Timestamp: now})
	assertError(t, adapter.Flush(), nil)

	got, err := adapter.QueryRange(now, now)
	assertError(t, err, nil)
	assertInt(t, len(got), 1)
	assertInt(t, got[0].Line, 3)
}

func TestBadgerOutput_EventKey(t *testing.T) {
	ev := &Rt.LineEvent{Line: 2, Kind: Rt.EventAdmissionDenied, Timestamp: time.Now()}

	t.Run("Ends with line and kind", func(t *testing.T) {
		key := Mp.EventKey(ev)
		got := key[len(key)-9:]
		want := append([]byte{2}, []byte("admissio")...)
		if !bytes.Equal(got, want) {
			t.Errorf("EventKey = %v, want %v", got, want)
		}
	})

	t.Run("Sorts by time", func(t *testing.T) {
		later := &Rt.LineEvent{Line: 0, Kind: Rt.EventRingOn, Timestamp: ev.Timestamp.Add(time.Nanosecond)}
		if bytes.Compare(Mp.EventKey(ev), Mp.EventKey(later)) >= 0 {
			t.Errorf("later event does not sort after the earlier one")
		}
	})
}

func TestBadgerOutput_WriteBatch(t *testing.T) {
	tests := []struct {
		name    string
		events  []*Rt.LineEvent
		wantErr bool
	}{
		{
			name:    "empty batch",
			events:  []*Rt.LineEvent{},
			wantErr: false,
		},
		{
			name: "single event",
			events: []*Rt.LineEvent{
				{Line: 1, Kind: Rt.EventRingOn, Timestamp: time.Now()},
			},
			wantErr: false,
		},
		{
			name: "multiple events",
			events: []*Rt.LineEvent{
				{Line: 1, Kind: Rt.EventRingOn, Timestamp: time.Now()},
				{Line: 1, Kind: Rt.EventRingOff, Timestamp: time.Now().Add(1 * time.Second)},
				{Line: 1, Kind: Rt.EventRingOn, Timestamp: time.Now().Add(2 * time.Second)},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := makeTestBadgerOutput(t)
			err := adapter.WriteBatch(tt.events)
			if (err != nil) != tt.wantErr {
				t.Errorf("WriteBatch() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBadgerSettings(t *testing.T) {
	t.Run("Missing record is not ok", func(t *testing.T) {
		store := Mp.NewBadgerSettings(makeTestDB(t))
		_, ok := store.Load()
		if ok {
			t.Errorf("expected ok=false on an empty database")
		}
	})

	t.Run("Save then load round trips", func(t *testing.T) {
		store := Mp.NewBadgerSettings(makeTestDB(t))
		rec := Rt.ConfigRecord{MaxConcurrentActive: 3, EnabledLineCount: 6, MaxCallDelaySeconds: 600, RingerHangTimeSeconds: 9}
		if !store.Save(rec) {
			t.Fatal("save failed")
		}

		got, ok := store.Load()
		if !ok {
			t.Fatal("load failed")
		}
		assertInt(t, int(got.MaxConcurrentActive), 3)
		assertInt(t, int(got.EnabledLineCount), 6)
		assertInt(t, int(got.MaxCallDelaySeconds), 600)
		assertInt(t, int(got.RingerHangTimeSeconds), 9)
		assertInt(t, int(got.Version), int(Mp.SettingsVersion))
	})

	t.Run("Corrupted record is not ok", func(t *testing.T) {
		db := makeTestDB(t)
		store := Mp.NewBadgerSettings(db)
		store.Save(Rt.ConfigRecord{MaxConcurrentActive: 4, EnabledLineCount: 8, MaxCallDelaySeconds: 30})

		raw := Mp.EncodeSettings(Rt.ConfigRecord{MaxConcurrentActive: 4, EnabledLineCount: 8, MaxCallDelaySeconds: 30})
		raw[2] = 7 // checksum no longer matches
		err := db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte("settings"), raw)
		})
		assertError(t, err, nil)

		_, ok := store.Load()
		if ok {
			t.Errorf("expected ok=false for a corrupted record")
		}
	})

	t.Run("Reset removes the record", func(t *testing.T) {
		store := Mp.NewBadgerSettings(makeTestDB(t))
		store.Save(Rt.ConfigRecord{MaxConcurrentActive: 4, EnabledLineCount: 8, MaxCallDelaySeconds: 30})
		assertError(t, store.Reset(), nil)

		_, ok := store.Load()
		if ok {
			t.Errorf("expected ok=false after reset")
		}
	})
}

func makeTestDB(t *testing.T) *badger.DB {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	assertError(t, err, nil)
	t.Cleanup(func() { db.Close() })
	return db
}

func makeTestBadgerOutput(t *testing.T) *Mp.BadgerOutput {
	t.Helper()
	return Mp.NewBadgerOutputDB(makeTestDB(t), 5)
}

package plugin

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	Rt "github.com/maroda/ringfleet/types"
)

var (
	eventPrefix = []byte("e/")
	settingsKey = []byte("settings")
)

// OpenBadger opens the on-disk database shared by the call log
// and the settings store
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithCompression(options.ZSTD).
		WithNumVersionsToKeep(1).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		slog.Error("Failed to open BadgerDB", slog.String("path", path), slog.Any("error", err))
		return nil, fmt.Errorf("database error: %w", err)
	}

	slog.Info("BadgerDB opened", slog.String("path", path))
	return db, nil
}

// BadgerSettings keeps the settings record under a single key
type BadgerSettings struct {
	DB *badger.DB
}

func NewBadgerSettings(db *badger.DB) *BadgerSettings {
	return &BadgerSettings{DB: db}
}

// Load returns ok=false for a missing, stale or corrupted record
func (bs *BadgerSettings) Load() (Rt.ConfigRecord, bool) {
	var rec Rt.ConfigRecord

	err := bs.DB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(settingsKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := DecodeSettings(val)
			if err != nil {
				return err
			}
			rec = decoded
			return nil
		})
	})

	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		slog.Info("No settings stored yet")
		return Rt.ConfigRecord{}, false
	case err != nil:
		slog.Error("Stored settings are unusable", slog.Any("error", err))
		return Rt.ConfigRecord{}, false
	}
	return rec, true
}

// Save stamps and writes the record
func (bs *BadgerSettings) Save(rec Rt.ConfigRecord) bool {
	err := bs.DB.Update(func(txn *badger.Txn) error {
		return txn.Set(settingsKey, EncodeSettings(rec))
	})
	if err != nil {
		slog.Error("Failed to save settings", slog.Any("error", err))
		return false
	}
	return true
}

// Reset removes the stored record, the next Load falls back to defaults
func (bs *BadgerSettings) Reset() error {
	err := bs.DB.Update(func(txn *badger.Txn) error {
		return txn.Delete(settingsKey)
	})
	if err != nil {
		return fmt.Errorf("settings reset: %w", err)
	}
	return nil
}

func (bs *BadgerSettings) Type() string { return "BadgerDB" }

// BadgerOutput is the call log, line events written in batches
type BadgerOutput struct {
	MU        sync.Mutex
	DB        *badger.DB
	BatchSize int
	Buffer    []*Rt.LineEvent
	ownsDB    bool
}

// NewBadgerOutput opens its own database at path
func NewBadgerOutput(path string, batchSize int) (*BadgerOutput, error) {
	db, err := OpenBadger(path)
	if err != nil {
		return nil, err
	}
	bo := NewBadgerOutputDB(db, batchSize)
	bo.ownsDB = true
	return bo, nil
}

// NewBadgerOutputDB logs into a database that is already open,
// closing the output leaves the database open
func NewBadgerOutputDB(db *badger.DB, batchSize int) *BadgerOutput {
	if batchSize < 1 {
		batchSize = 1
	}
	slog.Info("BadgerOutput ready", slog.Int("batchSize", batchSize))
	return &BadgerOutput{
		DB:        db,
		BatchSize: batchSize,
		Buffer:    make([]*Rt.LineEvent, 0, batchSize),
	}
}

// Report lets the call log sit directly on the line event path
func (bo *BadgerOutput) Report(ev Rt.LineEvent) {
	if err := bo.WriteEvent(&ev); err != nil {
		slog.Error("BadgerOutput failed to log event",
			slog.Int("line", ev.Line),
			slog.String("kind", string(ev.Kind)),
			slog.Any("error", err))
	}
}

// WriteEvent queues up a batch of events,
// when batchsize is reached it writes the whole batch
func (bo *BadgerOutput) WriteEvent(ev *Rt.LineEvent) error {
	bo.MU.Lock()
	defer bo.MU.Unlock()

	bo.Buffer = append(bo.Buffer, ev)
	if len(bo.Buffer) >= bo.BatchSize {
		return bo.flushLocked()
	}
	return nil
}

// WriteBatch performs the key/value creation to be stored
// and actually calls BadgerDB to write the data
func (bo *BadgerOutput) WriteBatch(evs []*Rt.LineEvent) error {
	wb := bo.DB.NewWriteBatch()
	defer wb.Cancel()

	for _, ev := range evs {
		v, err := EventEncode(ev)
		if err != nil {
			return fmt.Errorf("event encode error: %w", err)
		}
		if err := wb.Set(EventKey(ev), v); err != nil {
			slog.Error("BadgerOutput failed to set key in batch",
				slog.Any("error", err),
				slog.Time("eventTime", ev.Timestamp),
				slog.Int("line", ev.Line))
			return fmt.Errorf("write batch error: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		slog.Error("BadgerOutput failed to flush batch", slog.Any("error", err))
		return fmt.Errorf("batch flush error: %w", err)
	}
	return nil
}

// Flush writes whatever is buffered
func (bo *BadgerOutput) Flush() error {
	bo.MU.Lock()
	defer bo.MU.Unlock()

	if len(bo.Buffer) == 0 {
		return nil
	}
	return bo.flushLocked()
}

func (bo *BadgerOutput) flushLocked() error {
	err := bo.WriteBatch(bo.Buffer)
	bo.Buffer = bo.Buffer[:0]
	return err
}

// Close returns a Flush error but still attempts to close
func (bo *BadgerOutput) Close() error {
	slog.Info("BadgerOutput closing, flushing buffer",
		slog.Int("bufferSize", len(bo.Buffer)))
	flushErr := bo.Flush()

	var closeErr error
	if bo.ownsDB {
		closeErr = bo.DB.Close()
	}

	if flushErr != nil {
		slog.Error("BadgerOutput failed to flush on close", slog.Any("error", flushErr))
		return fmt.Errorf("flush failed: %w", flushErr)
	}
	if closeErr != nil {
		slog.Error("BadgerOutput failed to close database", slog.Any("error", closeErr))
		return fmt.Errorf("close failed: %w", closeErr)
	}
	return nil
}

func (bo *BadgerOutput) Type() string { return "BadgerDB" }

// EventKey sorts chronologically:
// prefix + timestamp + line + first eight letters of the kind
func EventKey(ev *Rt.LineEvent) []byte {
	key := make([]byte, len(eventPrefix)+8+1+8)
	n := copy(key, eventPrefix)

	binary.BigEndian.PutUint64(key[n:n+8], uint64(ev.Timestamp.UnixNano()))
	key[n+8] = byte(ev.Line)
	copy(key[n+9:], ev.Kind)
	return key
}

// EventEncode serializes a line event for storage
func EventEncode(ev *Rt.LineEvent) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ev); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EventDecode deserializes a stored line event
func EventDecode(data []byte) (*Rt.LineEvent, error) {
	var ev Rt.LineEvent
	err := gob.NewDecoder(bytes.NewBuffer(data)).Decode(&ev)
	return &ev, err
}

// QueryRange retrieves events with start <= timestamp <= end
func (bo *BadgerOutput) QueryRange(start, end time.Time) ([]*Rt.LineEvent, error) {
	var events []*Rt.LineEvent

	seek := make([]byte, len(eventPrefix)+8)
	n := copy(seek, eventPrefix)
	binary.BigEndian.PutUint64(seek[n:], uint64(start.UnixNano()))

	err := bo.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = eventPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(eventPrefix); it.Next() {
			var done bool
			err := it.Item().Value(func(val []byte) error {
				ev, err := EventDecode(val)
				if err != nil {
					slog.Error("BadgerOutput failed to decode event", slog.Any("error", err))
					return fmt.Errorf("event decode error: %w", err)
				}
				if ev.Timestamp.After(end) {
					done = true
					return nil
				}
				events = append(events, ev)
				return nil
			})
			if err != nil {
				return fmt.Errorf("item data error: %w", err)
			}
			if done {
				break
			}
		}
		return nil
	})

	slog.Debug("BadgerOutput QueryRange", slog.Int("count", len(events)))
	return events, err
}

package ringfleet

import (
	crand "crypto/rand"
	"encoding/binary"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Rand is the slice of *rand.Rand the core draws from.
// One source is shared by every line so they drift apart over time.
type Rand interface {
	IntN(n int) int
	Int64N(n int64) int64
}

// NewNoiseSeededRand seeds a PCG source once from the OS entropy pool,
// which is fed by hardware noise. Falls back to the clock if that fails.
func NewNoiseSeededRand() *rand.Rand {
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		slog.Error("Could not read entropy, seeding from clock", slog.Any("error", err))
		binary.LittleEndian.PutUint64(seed[:8], uint64(time.Now().UnixNano()))
	}
	hi := binary.LittleEndian.Uint64(seed[:8])
	lo := binary.LittleEndian.Uint64(seed[8:])
	return rand.New(rand.NewPCG(hi, lo))
}

// drawDuration is uniform over [lo, hi]
func drawDuration(r Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(r.Int64N(int64(hi-lo)+1))
}

// drawInt is uniform over [lo, hi]
func drawInt(r Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo+1)
}

// chance returns true pct percent of the time
func chance(r Rand, pct int) bool {
	return r.IntN(100) < pct
}

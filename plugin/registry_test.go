package plugin_test

import (
	"testing"
	"time"

	Mp "github.com/maroda/ringfleet/plugin"
)

type fakeFleet struct {
	enabled int
	active  map[int]bool
}

func (ff *fakeFleet) EnabledLineCount() int { return ff.enabled }
func (ff *fakeFleet) IsActive(index int) bool { return ff.active[index] }

func TestStrategyLookup(t *testing.T) {
	t.Run("Returns known strategy", func(t *testing.T) {
		for _, known := range Mp.StrategyNames() {
			got, err := Mp.StrategyLookup(known)
			assertError(t, err, nil)
			assertStringContains(t, got.Type(), known)
		}
	})

	t.Run("Returns error if strategy doesn't exist", func(t *testing.T) {
		_, err := Mp.StrategyLookup("craquemattic")
		assertGotError(t, err)
	})
}

func TestAlternateStrategy(t *testing.T) {
	now := time.Now()
	fleet := &fakeFleet{enabled: 6, active: map[int]bool{2: true}}
	strat := &Mp.AlternateStrategy{Interval: 2 * time.Second}

	t.Run("Starts on the even side, skipping active lines", func(t *testing.T) {
		got := strat.Pick(now, fleet)
		assertInts(t, got, []int{0, 4})
	})

	t.Run("Waits out the interval", func(t *testing.T) {
		got := strat.Pick(now.Add(time.Second), fleet)
		assertInt(t, len(got), 0)
	})

	t.Run("Switches to the odd side", func(t *testing.T) {
		got := strat.Pick(now.Add(2*time.Second), fleet)
		assertInts(t, got, []int{1, 3, 5})
	})

	t.Run("Reset goes back to even", func(t *testing.T) {
		strat.Reset()
		got := strat.Pick(now.Add(2500*time.Millisecond), fleet)
		assertInts(t, got, []int{0, 4})
	})
}

func TestLadderStrategy(t *testing.T) {
	now := time.Now()
	fleet := &fakeFleet{enabled: 3, active: map[int]bool{0: true}}
	strat := &Mp.LadderStrategy{Interval: time.Second}

	assertInts(t, strat.Pick(now, fleet), []int{1})
	assertInt(t, len(strat.Pick(now.Add(500*time.Millisecond), fleet)), 0)

	fleet.active[1] = true
	fleet.active[2] = true
	assertInt(t, len(strat.Pick(now.Add(time.Second), fleet)), 0)
}

func assertInts(t *testing.T, got, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			return
		}
	}
}

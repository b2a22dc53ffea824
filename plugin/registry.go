package plugin

import (
	"fmt"
	"sort"
	"time"
)

// Strategies is a global map of PatternStrategy plugins.
var Strategies = map[string]func() PatternStrategy{
	"alternate": func() PatternStrategy {
		return &AlternateStrategy{Interval: 2 * time.Second}
	},
	"ladder": func() PatternStrategy {
		return &LadderStrategy{Interval: 1 * time.Second}
	},
}

func StrategyLookup(name string) (PatternStrategy, error) {
	factory, ok := Strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy: %s", name)
	}
	return factory(), nil
}

// StrategyNames lists the registry, sorted
func StrategyNames() []string {
	names := make([]string, 0, len(Strategies))
	for name := range Strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AlternateStrategy rings the even lines, then the odd lines,
// switching side every Interval
type AlternateStrategy struct {
	Interval time.Duration
	odd      bool
	last     time.Time
	started  bool
}

func (as *AlternateStrategy) Pick(now time.Time, fleet FleetView) []int {
	if as.started && now.Sub(as.last) < as.Interval {
		return nil
	}
	if as.started {
		as.odd = !as.odd
	}
	as.started = true
	as.last = now

	var picks []int
	first := 0
	if as.odd {
		first = 1
	}
	for i := first; i < fleet.EnabledLineCount(); i += 2 {
		if !fleet.IsActive(i) {
			picks = append(picks, i)
		}
	}
	return picks
}

func (as *AlternateStrategy) Reset() {
	as.odd = false
	as.started = false
	as.last = time.Time{}
}

func (as *AlternateStrategy) Type() string { return "alternate" }

// LadderStrategy asks for the lowest idle line every Interval
type LadderStrategy struct {
	Interval time.Duration
	last     time.Time
	started  bool
}

func (ls *LadderStrategy) Pick(now time.Time, fleet FleetView) []int {
	if ls.started && now.Sub(ls.last) < ls.Interval {
		return nil
	}
	ls.started = true
	ls.last = now

	for i := 0; i < fleet.EnabledLineCount(); i++ {
		if !fleet.IsActive(i) {
			return []int{i}
		}
	}
	return nil
}

func (ls *LadderStrategy) Reset() {
	ls.started = false
	ls.last = time.Time{}
}

func (ls *LadderStrategy) Type() string { return "ladder" }

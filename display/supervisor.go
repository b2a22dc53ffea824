package ringfleet

import (
	"sync"
	"time"
)

const (
	DefaultTickInterval = 10 * time.Millisecond
	DefaultDrawInterval = 100 * time.Millisecond
)

// TickSupervisor drives the control loop on its own goroutine
type TickSupervisor struct {
	View     *View
	Interval time.Duration
	Ticker   *time.Ticker
	StopChan chan struct{}
	WG       sync.WaitGroup
	running  bool
}

// NewTickSupervisor is a wrapper around the View that manages the tick goroutine
// They are strongly coupled, one knows about the other
func (v *View) NewTickSupervisor(interval time.Duration) *TickSupervisor {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ts := &TickSupervisor{
		View:     v,
		Interval: interval,
	}
	v.Supervisor = ts
	return ts
}

// Start the TickSupervisor, a second Start is ignored
func (ts *TickSupervisor) Start() {
	if ts.running {
		return
	}
	ts.running = true
	ts.StopChan = make(chan struct{})
	ts.Ticker = time.NewTicker(ts.Interval)

	ts.WG.Add(1)
	go func(stop chan struct{}, ticker *time.Ticker) {
		defer ts.WG.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ts.View.Tick()
			case <-stop:
				return
			}
		}
	}(ts.StopChan, ts.Ticker)
}

// Stop the TickSupervisor and wait for the last tick to finish
func (ts *TickSupervisor) Stop() {
	if !ts.running {
		return
	}
	close(ts.StopChan)
	ts.WG.Wait()
	ts.running = false
}

// Restart the TickSupervisor
func (ts *TickSupervisor) Restart() {
	ts.Stop()
	ts.Start()
}

func (ts *TickSupervisor) Running() bool { return ts.running }

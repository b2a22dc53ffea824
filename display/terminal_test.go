package ringfleet_test

import (
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	Md "github.com/maroda/ringfleet/display"
	Mo "github.com/maroda/ringfleet/obvy"
	Rt "github.com/maroda/ringfleet/types"
)

func TestScreen(t *testing.T) {
	s := mkTestScreen(t, "")
	defer s.Fini()
	s.Clear()

	t.Run("Check test screen", func(t *testing.T) {
		b, x, y := s.GetContents()
		if len(b) != x*y || x != 80 || y != 25 {
			t.Fatalf("Contents (%v, %v, %v) wrong", len(b), x, y)
		}
		for i := 0; i < x*y; i++ {
			if len(b[i].Runes) == 1 && b[i].Runes[0] != ' ' {
				t.Errorf("Incorrect contents at %v: %v", i, b[i].Runes)
			}
		}
	})
}

func TestNewView(t *testing.T) {
	t.Run("Needs a switchboard", func(t *testing.T) {
		_, err := Md.NewView(nil, nil, Mo.NewStatsInternal())
		assertGotError(t, err)
	})

	t.Run("Draws the board on a screen", func(t *testing.T) {
		view, s := makeTestViewWithScreen(t)

		assertStringContains(t, screenRow(s, 1), "Calls: 0/4")
		assertStringContains(t, screenRow(s, 1), "Ring: 0 Active: 0")
		assertStringContains(t, screenRow(s, 3), "RANDOM stopped")
		assertStringContains(t, screenRow(s, 6), "L1  IDLE")
		assertStringContains(t, screenRow(s, 24), "RINGFLEET")

		if view.Supervisor == nil {
			t.Errorf("view should come with a tick supervisor")
		}
	})
}

func TestView_DrawBoard(t *testing.T) {
	view, s := makeTestViewWithScreen(t)

	view.MU.Lock()
	view.Board.StartLine(view.Clock(), 0, &Rt.CallSpec{Rings: 2})
	view.Board.Pause(view.Clock())
	view.MU.Unlock()
	view.UpdateScreen()

	assertStringContains(t, screenRow(s, 1), "Calls: 1/4")
	assertStringContains(t, screenRow(s, 3), "PAUSED")
	assertStringContains(t, screenRow(s, 6), "ring 1/2")

	// meter cells are drawn with the background color
	_, _, style, _ := s.GetContent(2, 4)
	_, bg, _ := style.Decompose()
	if bg != tcell.ColorOrangeRed {
		t.Errorf("activity meter not drawn, background %v", bg)
	}
}

func TestLineRow(t *testing.T) {
	tests := []struct {
		name string
		ls   Rt.LineStatus
		want string
	}{
		{"disabled", Rt.LineStatus{Index: 5}, "L6  OFF"},
		{"idle", Rt.LineStatus{Index: 0, Enabled: true, State: "IDLE", Remaining: 2500 * time.Millisecond}, "L1  IDLE        2.5s"},
		{"ringing", Rt.LineStatus{Index: 1, Enabled: true, Active: true, Ringing: true, State: "RING", Ring: 2, Rings: 4}, "ring 2/4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertStringContains(t, Md.LineRow(tt.ls), tt.want)
		})
	}
}

func TestView_HandleKey(t *testing.T) {
	view, _, store := makeTestView(t)

	press := func(r rune) bool {
		return view.HandleKey(tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone))
	}

	t.Run("Space toggles pause", func(t *testing.T) {
		press(' ')
		if !view.Board.Paused() {
			t.Errorf("expected paused")
		}
		press(' ')
		if view.Board.Paused() {
			t.Errorf("expected running")
		}
	})

	t.Run("s toggles the pattern", func(t *testing.T) {
		press('s')
		if !view.Board.Pattern.Active() {
			t.Errorf("expected pattern running")
		}
		press('s')
		if view.Board.Pattern.Active() {
			t.Errorf("expected pattern stopped")
		}
	})

	t.Run("m cycles the mode", func(t *testing.T) {
		press('m')
		assertInt(t, int(view.Board.Pattern.Mode()), int(Rt.PatternSequential))
	})

	t.Run("Settings keys are clamped and saved", func(t *testing.T) {
		press('+') // already at the four line maximum
		assertInt(t, int(view.Board.Record().EnabledLineCount), 4)
		press('-')
		assertInt(t, int(view.Board.Record().EnabledLineCount), 3)

		press('[')
		assertInt(t, int(view.Board.Record().MaxConcurrentActive), 3)
		press(']')
		assertInt(t, int(view.Board.Record().MaxConcurrentActive), 4)

		press('>')
		assertInt(t, int(view.Board.Record().MaxCallDelaySeconds), 40)
		press('<')
		press('<')
		press('<')
		assertInt(t, int(view.Board.Record().MaxCallDelaySeconds), 10)

		press('H')
		assertInt(t, int(view.Board.Record().RingerHangTimeSeconds), 6)
		press('h')
		assertInt(t, int(view.Board.Record().RingerHangTimeSeconds), 5)

		assertInt(t, int(store.saved.MaxCallDelaySeconds), 10)
	})

	t.Run("ESC asks to quit", func(t *testing.T) {
		if view.HandleKey(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) {
			t.Errorf("ESC should return false")
		}
	})
}

func TestView_Tick(t *testing.T) {
	view, clock, _ := makeTestView(t)

	view.MU.Lock()
	view.Board.StartLine(clock.Now(), 0, &Rt.CallSpec{Rings: 2})
	view.MU.Unlock()

	clock.Advance(2 * time.Second)
	view.Tick()

	if got := view.Board.Fleet.LineState(0); got != Rt.RingOff {
		t.Errorf("line 0 state = %v, want RingOff", got)
	}
	if !view.Board.Power.On() {
		t.Errorf("ringer power should be on while a call is active")
	}
}

func mkTestScreen(t *testing.T, charset string) tcell.SimulationScreen {
	s := tcell.NewSimulationScreen(charset)
	if s == nil {
		t.Fatalf("Failed to get SimulationScreen")
	}
	if err := s.Init(); err != nil {
		t.Fatalf("Failed to init screen: %v", err)
	}
	return s
}

func makeTestViewWithScreen(t *testing.T) (*Md.View, tcell.SimulationScreen) {
	t.Helper()

	view, _, _ := makeTestView(t)
	s := mkTestScreen(t, "")
	t.Cleanup(s.Fini)
	view.Screen = s
	view.UpdateScreen()
	return view, s
}

// screenRow reads one row of the simulation screen back as text
func screenRow(s tcell.SimulationScreen, y int) string {
	width, _ := s.Size()
	var sb strings.Builder
	for x := 0; x < width; x++ {
		r, _, _, _ := s.GetContent(x, y)
		sb.WriteRune(r)
	}
	return sb.String()
}

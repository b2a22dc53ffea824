package ringfleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	Mo "github.com/maroda/ringfleet/obvy"
	Rp "github.com/maroda/ringfleet/plugin"
	Ms "github.com/maroda/ringfleet/server"
	Rt "github.com/maroda/ringfleet/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	screenGutter = 6 // first line row
	delayStep    = 10
)

// View owns the Switchboard and serializes every call into it.
// The supervisor, the keyboard loop and the HTTP handlers all go through MU.
type View struct {
	MU         sync.Mutex        // State locks around the core
	Board      *Ms.Switchboard   // the core
	Screen     tcell.Screen      // nil when running headless
	Stats      *Mo.StatsInternal // Internal status for prometheus
	CallLog    Rp.EventOutput    // optional, backs /api/calls
	Supervisor *TickSupervisor   // drives Board.Tick
	Clock      func() time.Time  // time.Now unless testing
	server     *http.Server      // API, metrics and websocket
	quit       chan struct{}     // closed on ESC
	quitOnce   sync.Once
}

// NewView wires a view around a switchboard, screen may be nil
func NewView(sb *Ms.Switchboard, screen tcell.Screen, stats *Mo.StatsInternal) (*View, error) {
	if sb == nil {
		slog.Error("Could not get a Switchboard for display")
		return nil, errors.New("switchboard not found")
	}
	if stats == nil {
		stats = Mo.NewStatsInternal()
	}

	view := &View{
		Board:  sb,
		Screen: screen,
		Stats:  stats,
		Clock:  time.Now,
		quit:   make(chan struct{}),
	}
	view.NewTickSupervisor(DefaultTickInterval)

	if screen != nil {
		defStyle := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorPink)
		screen.SetStyle(defStyle)
		view.UpdateScreen()
	}
	return view, nil
}

func (v *View) now() time.Time {
	if v.Clock == nil {
		return time.Now()
	}
	return v.Clock()
}

// Tick advances the core once and records how long it took
func (v *View) Tick() {
	start := time.Now()

	v.MU.Lock()
	v.Board.Tick(v.now())
	fleet := v.Board.Fleet
	active, ringing := fleet.ActiveCount(), fleet.RingingCount()
	paused, power := v.Board.Paused(), v.Board.Power.On()
	v.MU.Unlock()

	v.Stats.RecTickTimer(time.Since(start).Seconds())
	v.Stats.RecFleet(active, ringing, paused, power)
}

// DrawText displays the text string at the given (x1, y1) with box size (x2, y2)
func (v *View) DrawText(x1, y1, x2, y2 int, text string) {
	v.drawStyled(x1, y1, x2, y2, text, tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorLightSteelBlue))
}

func (v *View) drawStyled(x1, y1, x2, y2 int, text string, style tcell.Style) {
	row := y1
	col := x1
	for _, r := range text {
		v.Screen.SetContent(col, row, r, nil, style)
		col++
		if col >= x2 {
			row++
			col = x1
		}
		if row > y2 {
			break
		}
	}
}

// DrawViewBorder displays the outline of the View
func (v *View) DrawViewBorder(width, height int) {
	hvStyle := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorPink)
	v.Screen.SetContent(0, 0, tcell.RuneULCorner, nil, hvStyle)
	for i := 1; i < width; i++ {
		v.Screen.SetContent(i, 0, tcell.RuneHLine, nil, hvStyle)
		v.Screen.SetContent(i, height, tcell.RuneHLine, nil, hvStyle)
	}
	v.Screen.SetContent(width, 0, tcell.RuneURCorner, nil, hvStyle)

	for i := 1; i < height; i++ {
		v.Screen.SetContent(0, i, tcell.RuneVLine, nil, hvStyle)
		v.Screen.SetContent(width, i, tcell.RuneVLine, nil, hvStyle)
	}

	v.Screen.SetContent(0, height, tcell.RuneLLCorner, nil, hvStyle)
	v.Screen.SetContent(width, height, tcell.RuneLRCorner, nil, hvStyle)
}

// LineStyle colors a line row by state
func LineStyle(ls Rt.LineStatus) tcell.Style {
	base := tcell.StyleDefault.Background(tcell.ColorBlack)
	switch {
	case !ls.Enabled:
		return base.Foreground(tcell.ColorDimGray)
	case ls.Ringing:
		return base.Foreground(tcell.ColorOrangeRed).Bold(true)
	case ls.Active:
		return base.Foreground(tcell.ColorGold)
	default:
		return base.Foreground(tcell.ColorSeaGreen)
	}
}

// LineRow is the text of one line row
func LineRow(ls Rt.LineStatus) string {
	if !ls.Enabled {
		return fmt.Sprintf("L%d  %-8s", ls.Index+1, "OFF")
	}
	row := fmt.Sprintf("L%d  %-8s", ls.Index+1, ls.State)
	if ls.Active {
		row += fmt.Sprintf(" ring %d/%d", ls.Ring, ls.Rings)
	}
	return row + fmt.Sprintf("  %5.1fs", ls.Remaining.Seconds())
}

// DrawBoard draws the whole status screen from one snapshot.
// Callers hold MU.
func (v *View) DrawBoard() {
	width, height := v.GetScreenSize()
	status := v.Board.Status(v.now())
	fleet := v.Board.Fleet

	v.DrawViewBorder(width-2, height-1)

	v.DrawText(2, 1, width-2, 1, fleet.StatusLine1())
	v.DrawText(20, 1, width-2, 1, fleet.StatusLine2())
	v.DrawText(2, 2, width-2, 2, fmt.Sprintf("Lines: %d/%d  Max: %d  Delay: %ds  Hang: %ds",
		status.Enabled, status.Total, status.MaxConcurrent, status.CallDelay, status.HangTime))

	pattern := v.Board.Pattern.Status()
	v.DrawText(2, 3, width-2, 3, "Pattern: "+pattern)
	if status.Paused {
		v.drawStyled(width-12, 3, width-2, 3, "PAUSED", tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorRed).Bold(true))
	}

	// activity meter, one cell per active line
	meter := tcell.StyleDefault.Background(tcell.ColorOrangeRed)
	WriteBar(v.Screen, 2, 4, 2+status.Active*2, 5, meter)
	if status.PowerOn {
		v.DrawText(width-12, 4, width-2, 4, "POWER ON")
	}

	for _, ls := range status.Lines {
		y := screenGutter + ls.Index
		if y >= height-2 {
			break
		}
		v.drawStyled(2, y, width-2, y, LineRow(ls), LineStyle(ls))
	}

	v.DrawText(1, height-1, width, height+10, "spc pause | s pattern | m mode | +- lines | [] max | <> delay | hH hang | ESC quit")
	v.DrawText(width-12, height-1, width, height+10, "RINGFLEET")
}

// exit is idempotent, the keyboard loop and run both watch quit
func (v *View) exit() {
	v.quitOnce.Do(func() { close(v.quit) })
}

// HandleKey applies one keypress to the core.
// It returns false when the key asks to quit.
func (v *View) HandleKey(ev *tcell.EventKey) bool {
	if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
		return false
	}

	v.MU.Lock()
	defer v.MU.Unlock()

	now := v.now()
	ctx := context.Background()
	sb := v.Board
	rec := sb.Record()

	switch ev.Rune() {
	case ' ':
		sb.TogglePause(now)
	case 's':
		sb.TogglePattern(now)
	case 'm':
		sb.CyclePatternMode(now)
	case '+':
		sb.SetEnabledLineCount(ctx, now, int(rec.EnabledLineCount)+1)
	case '-':
		sb.SetEnabledLineCount(ctx, now, int(rec.EnabledLineCount)-1)
	case ']':
		sb.SetMaxConcurrentActive(ctx, now, int(rec.MaxConcurrentActive)+1)
	case '[':
		sb.SetMaxConcurrentActive(ctx, now, int(rec.MaxConcurrentActive)-1)
	case '>':
		sb.SetMaxCallDelaySeconds(ctx, now, int(rec.MaxCallDelaySeconds)+delayStep)
	case '<':
		sb.SetMaxCallDelaySeconds(ctx, now, int(rec.MaxCallDelaySeconds)-delayStep)
	case 'H':
		sb.SetRingerHangTimeSeconds(ctx, now, int(rec.RingerHangTimeSeconds)+1)
	case 'h':
		sb.SetRingerHangTimeSeconds(ctx, now, int(rec.RingerHangTimeSeconds)-1)
	}
	return true
}

// Running Loop to handle events
func (v *View) handleKeyBoardEvent() {
	for {
		ev := v.Screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			// screen finalized
			return
		case *tcell.EventResize:
			v.ResizeScreen()
		case *tcell.EventKey:
			if !v.HandleKey(ev) {
				v.exit()
				return
			}
			v.UpdateScreen()
		}
	}
}

// GetScreenSize provides the terminal size for drawing
func (v *View) GetScreenSize() (int, int) {
	width, height := v.Screen.Size()
	return width, height
}

// ResizeScreen redraws after terminal changes
func (v *View) ResizeScreen() {
	v.Screen.Sync()
	v.UpdateScreen()
}

func (v *View) UpdateScreen() {
	if v.Screen == nil {
		return
	}
	v.MU.Lock()
	defer v.MU.Unlock()

	v.Screen.Clear()
	v.DrawBoard()
	v.Screen.Show()
}

// run redraws the screen until quit
func (v *View) run(interval time.Duration) {
	// Panic recovery and logging
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in draw loop", slog.Any("panic", r))
			slog.Error("Recovered from panic", slog.String("stack", string(debug.Stack())))
		}
	}()

	slog.Info("Starting terminal view")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			v.UpdateScreen()
		case <-v.quit:
			return
		}
	}
}

// RespWriter is a wrapper with StatsMiddleware, used for Prometheus
type RespWriter struct {
	http.ResponseWriter
	Status int
}

// WriteHeader is a helper for StatsMiddleware, used for Prometheus
func (w *RespWriter) WriteHeader(status int) {
	w.Status = status
	w.ResponseWriter.WriteHeader(status)
}

// Write is a helper for StatsMiddleware, used for Prometheus
func (w *RespWriter) Write(b []byte) (int, error) {
	return w.ResponseWriter.Write(b)
}

func (v *View) StatsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &RespWriter{
			ResponseWriter: w,
			Status:         200,
		}
		next.ServeHTTP(wrapped, r)
		v.Stats.RecWWW(strconv.Itoa(wrapped.Status), r.Method)
	})
}

// serve runs the HTTP server until it is shut down
func (v *View) serve(addr string) error {
	v.server = &http.Server{
		Addr:    addr,
		Handler: otelhttp.NewHandler(v.SetupMux(), "ringfleet"),
	}

	slog.Info("Starting Ringfleet web server...", slog.String("Port", addr))
	if err := v.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Could not start web server", slog.Any("Error", err))
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

// Shutdown stops ticking and serving, it leaves the relays deasserted
func (v *View) Shutdown(ctx context.Context) {
	v.Supervisor.Stop()

	v.MU.Lock()
	now := v.now()
	v.Board.Pause(now)
	v.Board.Fleet.StopAll(now)
	v.MU.Unlock()

	if v.server != nil {
		if err := v.server.Shutdown(ctx); err != nil {
			slog.Error("Web server shutdown failed", slog.Any("error", err))
		}
	}
}

// StartTerminal runs the terminal view, the control loop and the
// web server until ESC
func StartTerminal(v *View, addr string) error {
	if v.Screen == nil {
		return errors.New("terminal view needs a screen")
	}

	v.Supervisor.Start()
	go v.run(DefaultDrawInterval)
	go func() {
		if err := v.serve(addr); err != nil {
			slog.Error("Web server stopped", slog.Any("error", err))
		}
	}()

	v.handleKeyBoardEvent()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v.Shutdown(ctx)
	v.Screen.Fini()
	return nil
}

// StartWebNoTUI runs the control loop and the web server, blocking
func StartWebNoTUI(v *View, addr string) error {
	v.Supervisor.Start()
	defer v.Supervisor.Stop()
	return v.serve(addr)
}

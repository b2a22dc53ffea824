package ringfleet

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	Ms "github.com/maroda/ringfleet/server"
	Rt "github.com/maroda/ringfleet/types"
)

// SetupMux handles all data serving:
// - Prometheus metric endpoint
// - Websocket status stream
// - Version for programmatic use
// - Control and status API
func (v *View) SetupMux() *mux.Router {
	r := mux.NewRouter()
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	r.Handle("/metrics", v.Stats.Handler())
	r.HandleFunc("/ws", v.WebsocketHandler)

	api := r.PathPrefix("/api").Subrouter()
	// method mismatches under /api answer 405, not 404
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	api.Use(v.StatsMiddleware)

	api.HandleFunc("/version", v.VersionHandler).Methods("GET")
	api.HandleFunc("/status", v.StatusHandler).Methods("GET")
	api.HandleFunc("/settings", v.SettingsHandler).Methods("GET")
	api.HandleFunc("/settings", v.SettingsUpdateHandler).Methods("PUT")
	api.HandleFunc("/pause", v.PauseHandler).Methods("POST")
	api.HandleFunc("/resume", v.PauseHandler).Methods("POST")
	api.HandleFunc("/pattern/{action:start|stop}", v.PatternHandler).Methods("POST")
	api.HandleFunc("/pattern/mode/{mode}", v.PatternModeHandler).Methods("PUT")
	api.HandleFunc("/lines/{index:[0-9]+}/{action:start|stop}", v.LineHandler).Methods("POST")
	api.HandleFunc("/calls", v.CallsHandler).Methods("GET")

	return r
}

var Version = "dev"

func (v *View) VersionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"version": Version})
}

func (v *View) StatusHandler(w http.ResponseWriter, r *http.Request) {
	v.MU.Lock()
	status := v.Board.Status(v.now())
	v.MU.Unlock()

	writeJSON(w, http.StatusOK, status)
}

// SettingsBody is the JSON shape of the settings record.
// Missing fields are left as they are on update.
type SettingsBody struct {
	MaxConcurrentActive   *int `json:"maxConcurrentActive,omitempty"`
	EnabledLineCount      *int `json:"enabledLineCount,omitempty"`
	MaxCallDelaySeconds   *int `json:"maxCallDelaySeconds,omitempty"`
	RingerHangTimeSeconds *int `json:"ringerHangTimeSeconds,omitempty"`
}

func settingsBody(rec Rt.ConfigRecord) SettingsBody {
	mc, el := int(rec.MaxConcurrentActive), int(rec.EnabledLineCount)
	cd, ht := int(rec.MaxCallDelaySeconds), int(rec.RingerHangTimeSeconds)
	return SettingsBody{
		MaxConcurrentActive:   &mc,
		EnabledLineCount:      &el,
		MaxCallDelaySeconds:   &cd,
		RingerHangTimeSeconds: &ht,
	}
}

func (v *View) SettingsHandler(w http.ResponseWriter, r *http.Request) {
	v.MU.Lock()
	rec := v.Board.Record()
	v.MU.Unlock()

	writeJSON(w, http.StatusOK, settingsBody(rec))
}

// SettingsUpdateHandler applies the given fields, clamped, and persists them
func (v *View) SettingsUpdateHandler(w http.ResponseWriter, r *http.Request) {
	var body SettingsBody
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		slog.Error("Bad settings body", slog.Any("error", err))
		http.Error(w, "invalid settings body", http.StatusBadRequest)
		return
	}

	v.MU.Lock()
	rec := v.Board.Record()
	if body.MaxConcurrentActive != nil {
		rec.MaxConcurrentActive = uint8(clampByte(*body.MaxConcurrentActive))
	}
	if body.EnabledLineCount != nil {
		rec.EnabledLineCount = uint8(clampByte(*body.EnabledLineCount))
	}
	if body.MaxCallDelaySeconds != nil {
		rec.MaxCallDelaySeconds = uint16(max(0, min(*body.MaxCallDelaySeconds, 65535)))
	}
	if body.RingerHangTimeSeconds != nil {
		rec.RingerHangTimeSeconds = uint8(clampByte(*body.RingerHangTimeSeconds))
	}
	v.Board.ApplySettings(r.Context(), v.now(), rec)
	rec = v.Board.Record()
	v.MU.Unlock()

	writeJSON(w, http.StatusOK, settingsBody(rec))
}

// PauseHandler serves both /pause and /resume
func (v *View) PauseHandler(w http.ResponseWriter, r *http.Request) {
	v.MU.Lock()
	now := v.now()
	if r.URL.Path == "/api/resume" {
		v.Board.Resume(now)
	} else {
		v.Board.Pause(now)
	}
	paused := v.Board.Paused()
	v.MU.Unlock()

	writeJSON(w, http.StatusOK, map[string]bool{"paused": paused})
}

func (v *View) PatternHandler(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]

	v.MU.Lock()
	now := v.now()
	if action == "start" {
		v.Board.StartPattern(now)
	} else {
		v.Board.StopPattern(now)
	}
	resp := map[string]any{
		"pattern": Ms.ModeName(v.Board.Pattern.Mode()),
		"active":  v.Board.Pattern.Active(),
	}
	v.MU.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (v *View) PatternModeHandler(w http.ResponseWriter, r *http.Request) {
	mode, ok := Ms.ParseMode(mux.Vars(r)["mode"])
	if !ok {
		http.Error(w, "unknown pattern mode", http.StatusBadRequest)
		return
	}

	v.MU.Lock()
	v.Board.SetPatternMode(v.now(), mode)
	resp := map[string]any{
		"pattern": Ms.ModeName(v.Board.Pattern.Mode()),
		"active":  v.Board.Pattern.Active(),
	}
	v.MU.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// LineHandler starts or stops one line.
// A start body may carry a CallSpec, otherwise a random call is drawn.
func (v *View) LineHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		http.Error(w, "invalid line index", http.StatusBadRequest)
		return
	}

	var spec *Rt.CallSpec
	if vars["action"] == "start" && r.ContentLength > 0 {
		spec = &Rt.CallSpec{}
		if err := json.NewDecoder(r.Body).Decode(spec); err != nil {
			http.Error(w, "invalid call spec", http.StatusBadRequest)
			return
		}
	}

	v.MU.Lock()
	defer v.MU.Unlock()

	if index >= v.Board.Fleet.TotalLines() {
		http.Error(w, "no such line", http.StatusNotFound)
		return
	}
	if vars["action"] == "start" && index >= v.Board.Fleet.EnabledLineCount() {
		http.Error(w, "line is disabled", http.StatusConflict)
		return
	}

	now := v.now()
	if vars["action"] == "start" {
		v.Board.StartLine(now, index, spec)
	} else {
		v.Board.StopLine(now, index)
	}
	writeJSON(w, http.StatusAccepted, v.Board.Fleet.Snapshot(now)[index])
}

// CallsHandler returns logged line events, ?since=5m by default
func (v *View) CallsHandler(w http.ResponseWriter, r *http.Request) {
	if v.CallLog == nil {
		http.Error(w, "no call log configured", http.StatusNotFound)
		return
	}

	since := 5 * time.Minute
	if s := r.URL.Query().Get("since"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			http.Error(w, "invalid since duration", http.StatusBadRequest)
			return
		}
		since = d
	}

	if err := v.CallLog.Flush(); err != nil {
		slog.Error("Call log flush failed", slog.Any("error", err))
	}
	end := v.now()
	events, err := v.CallLog.QueryRange(end.Add(-since), end)
	if err != nil {
		slog.Error("Call log query failed", slog.Any("error", err))
		http.Error(w, "call log query failed", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []*Rt.LineEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": r.Method + " not allowed on " + r.URL.Path})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", slog.Any("error", err))
	}
}

func clampByte(n int) int {
	return max(0, min(n, 255))
}

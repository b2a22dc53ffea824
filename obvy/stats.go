package ringfleet

import (
	"net/http"
	"strconv"

	Rt "github.com/maroda/ringfleet/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsInternal is the prometheus registry for the process itself
type StatsInternal struct {
	Registry   *prometheus.Registry
	TickTimer  prometheus.Histogram
	WWWCount   *prometheus.CounterVec
	LineEvents *prometheus.CounterVec
	Calls      *prometheus.CounterVec
	Active     prometheus.Gauge
	Ringing    prometheus.Gauge
	Paused     prometheus.Gauge
	PowerOn    prometheus.Gauge
}

func NewStatsInternal() *StatsInternal {
	reg := prometheus.NewRegistry()

	s := &StatsInternal{
		Registry: reg,
		TickTimer: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ringfleet_tick_seconds",
			Help:    "Time spent in one control loop tick",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
		}),
		WWWCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ringfleet_http_requests_total",
			Help: "API requests by status code and method",
		}, []string{"code", "method"}),
		LineEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ringfleet_line_events_total",
			Help: "Line transitions by kind",
		}, []string{"kind"}),
		Calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ringfleet_calls_total",
			Help: "Calls started per line",
		}, []string{"line"}),
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ringfleet_active_lines",
			Help: "Lines currently in a call",
		}),
		Ringing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ringfleet_ringing_lines",
			Help: "Lines with the bell energized",
		}),
		Paused: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ringfleet_paused",
			Help: "1 while the system is paused",
		}),
		PowerOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ringfleet_ringer_power",
			Help: "1 while the ringer supply is energized",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		s.TickTimer, s.WWWCount, s.LineEvents, s.Calls,
		s.Active, s.Ringing, s.Paused, s.PowerOn,
	)
	return s
}

func (s *StatsInternal) RecTickTimer(seconds float64) {
	s.TickTimer.Observe(seconds)
}

func (s *StatsInternal) RecWWW(code, method string) {
	s.WWWCount.WithLabelValues(code, method).Inc()
}

// RecFleet sets the gauges from one status sample
func (s *StatsInternal) RecFleet(active, ringing int, paused, power bool) {
	s.Active.Set(float64(active))
	s.Ringing.Set(float64(ringing))
	s.Paused.Set(boolGauge(paused))
	s.PowerOn.Set(boolGauge(power))
}

// Report counts line events, it sits on the same path as the call log
func (s *StatsInternal) Report(ev Rt.LineEvent) {
	s.LineEvents.WithLabelValues(string(ev.Kind)).Inc()
	if ev.Kind == Rt.EventCallStarted {
		s.Calls.WithLabelValues(strconv.Itoa(ev.Line)).Inc()
	}
}

func (s *StatsInternal) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{Registry: s.Registry})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

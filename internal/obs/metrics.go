package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/throttlite/throttlite/internal/throttle"
)

type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	DecisionsTotal  *prometheus.CounterVec
	WindowSeconds   prometheus.Gauge
	APIThrottled    prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer, keyCount func() int) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "throttlite_requests_total",
				Help: "Total HTTP requests handled",
			},
			[]string{"path", "method", "code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "throttlite_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "throttlite_decisions_total",
				Help: "Throttle decisions by outcome",
			},
			[]string{"outcome"},
		),
		WindowSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "throttlite_window_seconds",
				Help: "Throttling window currently in effect",
			},
		),
		APIThrottled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "throttlite_api_throttled_total",
				Help: "API requests rejected by the self-protection throttle",
			},
		),
	}

	trackedKeys := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "throttlite_tracked_keys",
			Help: "Distinct keys currently tracked by the engine",
		},
		func() float64 { return float64(keyCount()) },
	)

	reg.MustRegister(
		m.RequestsTotal, m.RequestDuration, m.DecisionsTotal,
		m.WindowSeconds, m.APIThrottled, trackedKeys,
	)
	return m
}

// DecisionObserver counts every accept/throttle outcome.
func (m *Metrics) DecisionObserver() throttle.Observer {
	return func(d throttle.Decision) {
		outcome := "throttled"
		if d.Accepted {
			outcome = "accepted"
		}
		m.DecisionsTotal.WithLabelValues(outcome).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Middleware records per-request metrics.
func (m *Metrics) Middleware(skip map[string]struct{}) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			code := rec.status
			if code == 0 {
				code = http.StatusOK
			}

			m.RequestDuration.WithLabelValues(r.URL.Path, r.Method).Observe(time.Since(start).Seconds())
			m.RequestsTotal.WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(code)).Inc()
		})
	}
}

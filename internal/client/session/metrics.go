package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "reviewdesk_session"

// Result labels.
const (
	resultSuccess    = "success"
	resultFailure    = "failure"
	resultSuperseded = "superseded"
)

// Forced logout reasons.
const (
	ReasonRefreshFailed = "refresh_failed"
	ReasonInactivity    = "inactivity"
	ReasonRestoreFailed = "restore_failed"
)

// Metrics holds the session counters. A nil *Metrics records nothing.
type Metrics struct {
	// Logins counts login attempts by result.
	Logins *prometheus.CounterVec
	// Registrations counts registration attempts by result.
	Registrations *prometheus.CounterVec
	// Refreshes counts token refreshes by result.
	Refreshes *prometheus.CounterVec
	// RefreshDuration observes refresh round trips.
	RefreshDuration prometheus.Histogram
	// ForcedLogouts counts system-initiated logouts by reason.
	ForcedLogouts *prometheus.CounterVec
	// Authenticated is 1 while a session is authenticated.
	Authenticated prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is handy in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "logins_total",
			Help:      "Total number of login attempts",
		}, []string{"result"}),
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "registrations_total",
			Help:      "Total number of registration attempts",
		}, []string{"result"}),
		Refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "refreshes_total",
			Help:      "Total number of token refreshes",
		}, []string{"result"}),
		RefreshDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of token refresh calls in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		ForcedLogouts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "forced_logouts_total",
			Help:      "Total number of system-initiated logouts",
		}, []string{"reason"}),
		Authenticated: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "authenticated",
			Help:      "Session status (1 = authenticated, 0 = anonymous)",
		}),
	}
}

func (m *Metrics) recordLogin(result string) {
	if m != nil {
		m.Logins.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) recordRegistration(result string) {
	if m != nil {
		m.Registrations.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) recordRefresh(result string, took time.Duration) {
	if m != nil {
		m.Refreshes.WithLabelValues(result).Inc()
		m.RefreshDuration.Observe(took.Seconds())
	}
}

func (m *Metrics) recordForcedLogout(reason string) {
	if m != nil {
		m.ForcedLogouts.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) setAuthenticated(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.Authenticated.Set(1)
	} else {
		m.Authenticated.Set(0)
	}
}

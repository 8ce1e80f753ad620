// Package metrics exposes Prometheus collectors for the selection and
// polling engines.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Core holds the collectors shared by the inventory, filter and poll code.
type Core struct {
	// FetchDurationHistogram tracks bulk metadata fetch duration in seconds.
	// Labels: category (state, settings, stats, segments, aliases, field_stats)
	FetchDurationHistogram *prometheus.HistogramVec

	// FetchErrorsCounter counts failed bulk metadata fetches.
	// Labels: category
	FetchErrorsCounter *prometheus.CounterVec

	// FilterDurationHistogram tracks filter application duration in seconds.
	// Labels: filtertype
	FilterDurationHistogram *prometheus.HistogramVec

	// FilterDroppedCounter counts objects removed from the working set.
	// Labels: filtertype
	FilterDroppedCounter *prometheus.CounterVec

	// PollChecksCounter counts completion poll checks.
	// Labels: action, result (pending, succeeded, timed_out, error)
	PollChecksCounter *prometheus.CounterVec

	// PollWaitSeconds tracks the total wall time of completed waits.
	// Labels: action
	PollWaitSeconds *prometheus.HistogramVec
}

// NewCore creates Core metrics registered on the default registry.
func NewCore() *Core {
	return newCore(nil)
}

// NewCoreWithRegistry creates Core metrics registered on a custom registry.
// Used by tests to avoid duplicate registration.
func NewCoreWithRegistry(reg prometheus.Registerer) *Core {
	return newCore(reg)
}

func newCore(reg prometheus.Registerer) *Core {
	factory := promauto.With(reg)
	if reg == nil {
		factory = promauto.With(prometheus.DefaultRegisterer)
	}

	return &Core{
		FetchDurationHistogram: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "culler_fetch_duration_seconds",
			Help:    "Duration of bulk metadata fetches in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"category"}),
		FetchErrorsCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "culler_fetch_errors_total",
			Help: "Total failed bulk metadata fetches.",
		}, []string{"category"}),
		FilterDurationHistogram: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "culler_filter_duration_seconds",
			Help:    "Duration of filter application in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"filtertype"}),
		FilterDroppedCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "culler_filter_dropped_total",
			Help: "Total objects dropped from working sets by filters.",
		}, []string{"filtertype"}),
		PollChecksCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "culler_poll_checks_total",
			Help: "Total completion poll checks by action and result.",
		}, []string{"action", "result"}),
		PollWaitSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "culler_poll_wait_seconds",
			Help:    "Total wall time spent waiting for completion.",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600, 14400},
		}, []string{"action"}),
	}
}

// ObserveFetch records one bulk fetch.
func (m *Core) ObserveFetch(category string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.FetchDurationHistogram.WithLabelValues(category).Observe(d.Seconds())
	if err != nil {
		m.FetchErrorsCounter.WithLabelValues(category).Inc()
	}
}

// ObserveFilter records one filter application.
func (m *Core) ObserveFilter(filtertype string, d time.Duration, dropped int) {
	if m == nil {
		return
	}
	m.FilterDurationHistogram.WithLabelValues(filtertype).Observe(d.Seconds())
	if dropped > 0 {
		m.FilterDroppedCounter.WithLabelValues(filtertype).Add(float64(dropped))
	}
}

// ObservePollCheck records one poll check outcome.
func (m *Core) ObservePollCheck(action, result string) {
	if m == nil {
		return
	}
	m.PollChecksCounter.WithLabelValues(action, result).Inc()
}

// ObservePollDone records the total wall time of one completed wait.
func (m *Core) ObservePollDone(action string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.PollWaitSeconds.WithLabelValues(action).Observe(elapsed.Seconds())
}

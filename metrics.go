package authgate

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one gateway counter or histogram.
type MetricID int

const (
	// MetricLoginInitiated counts redirects to the provider login.
	MetricLoginInitiated MetricID = iota
	// MetricCallbackSuccess counts callbacks that produced a session.
	MetricCallbackSuccess
	// MetricCallbackFailure counts callbacks rejected with 401.
	MetricCallbackFailure
	// MetricCallbackUpstreamFailure counts callbacks that failed with 502/500.
	MetricCallbackUpstreamFailure
	// MetricCallbackRateLimited counts callbacks refused by the failure budget.
	MetricCallbackRateLimited
	// MetricLogout counts logout requests.
	MetricLogout
	// MetricAccessAllowed counts authorization checks that allowed the request.
	MetricAccessAllowed
	// MetricAccessUnauthenticated counts 401 denials.
	MetricAccessUnauthenticated
	// MetricAccessForbidden counts 403 denials.
	MetricAccessForbidden
	// MetricStoreFailure counts session backend errors on any path.
	MetricStoreFailure
	// MetricVerifyFailure counts rejected access tokens.
	MetricVerifyFailure
	// MetricVerifyLatency is the token verification latency histogram.
	MetricVerifyLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricLoginInitiated:          "login_initiated",
	MetricCallbackSuccess:         "callback_success",
	MetricCallbackFailure:         "callback_failure",
	MetricCallbackUpstreamFailure: "callback_upstream_failure",
	MetricCallbackRateLimited:     "callback_rate_limited",
	MetricLogout:                  "logout",
	MetricAccessAllowed:           "access_allowed",
	MetricAccessUnauthenticated:   "access_unauthenticated",
	MetricAccessForbidden:         "access_forbidden",
	MetricStoreFailure:            "store_failure",
	MetricVerifyFailure:           "verify_failure",
	MetricVerifyLatency:           "verify_latency",
}

// String returns the snake_case metric name used by exporters.
func (id MetricID) String() string {
	if id < 0 || id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free gateway counters.
//
// A nil or disabled *Metrics accepts every call and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether latency histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id < 0 || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram id. Only latency metrics carry histograms.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id < 0 || id >= metricIDCount {
		return
	}
	if id != MetricVerifyLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id < 0 || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. Histograms are included only when latency
// recording is enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snapshot := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, metricIDCount),
		Histograms: make(map[MetricID][]uint64),
	}
	if m == nil {
		return snapshot
	}

	for i := MetricID(0); i < metricIDCount; i++ {
		snapshot.Counters[i] = atomic.LoadUint64(&m.counters[i].value)
	}

	if m.enableLatency {
		h := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			h[i] = atomic.LoadUint64(&m.histograms[MetricVerifyLatency].buckets[i])
		}
		snapshot.Histograms[MetricVerifyLatency] = h
	}

	return snapshot
}

// HistogramBounds returns the upper bounds, in seconds, of all but the last
// (overflow) histogram bucket.
func HistogramBounds() []float64 {
	return []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()
	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}

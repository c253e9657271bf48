package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/metrics/export/internaldefs"
)

type fakeSource struct {
	snapshot authgate.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() authgate.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestCollectorCountsEveryCounter(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: authgate.MetricsSnapshot{
			Counters:   map[authgate.MetricID]uint64{},
			Histograms: map[authgate.MetricID][]uint64{},
		},
	})

	// Counters plus audit drops; the histogram is absent without latency recording.
	if got, want := testutil.CollectAndCount(c), len(internaldefs.CounterDefs)+1; got != want {
		t.Fatalf("expected %d metrics, got %d", want, got)
	}
}

func TestCollectorCounterAndHistogramValues(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: authgate.MetricsSnapshot{
			Counters: map[authgate.MetricID]uint64{
				authgate.MetricCallbackSuccess: 7,
			},
			Histograms: map[authgate.MetricID][]uint64{
				authgate.MetricVerifyLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	expected := `
# HELP authgate_callback_success_total Callbacks that created a session.
# TYPE authgate_callback_success_total counter
authgate_callback_success_total 7
# HELP authgate_audit_dropped_total Audit events the dispatcher never delivered.
# TYPE authgate_audit_dropped_total counter
authgate_audit_dropped_total 2
# HELP authgate_verify_latency_seconds Access token verification latency.
# TYPE authgate_verify_latency_seconds histogram
authgate_verify_latency_seconds_bucket{le="0.005"} 1
authgate_verify_latency_seconds_bucket{le="0.01"} 3
authgate_verify_latency_seconds_bucket{le="0.025"} 6
authgate_verify_latency_seconds_bucket{le="0.05"} 10
authgate_verify_latency_seconds_bucket{le="0.1"} 15
authgate_verify_latency_seconds_bucket{le="0.25"} 21
authgate_verify_latency_seconds_bucket{le="0.5"} 28
authgate_verify_latency_seconds_bucket{le="+Inf"} 36
authgate_verify_latency_seconds_sum 0
authgate_verify_latency_seconds_count 36
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"authgate_callback_success_total",
		"authgate_audit_dropped_total",
		"authgate_verify_latency_seconds",
	)
	if err != nil {
		t.Fatal(err)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	h := HandlerFromSource(fakeSource{
		snapshot: authgate.MetricsSnapshot{
			Counters: map[authgate.MetricID]uint64{authgate.MetricLogout: 3},
		},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "authgate_logout_total 3") {
		t.Fatalf("expected logout counter in output, got:\n%s", rec.Body.String())
	}
}

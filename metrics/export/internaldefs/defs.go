package internaldefs

import (
	"github.com/MrEthical07/authgate"
)

// Namespace prefixes every exported series.
const Namespace = "authgate"

// CounterDef binds a counter to its exported name.
type CounterDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram to its exported name.
type HistogramDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authgate.MetricLoginInitiated, Name: "authgate_login_initiated_total", Help: "Redirects to the provider login."},
	{ID: authgate.MetricCallbackSuccess, Name: "authgate_callback_success_total", Help: "Callbacks that created a session."},
	{ID: authgate.MetricCallbackFailure, Name: "authgate_callback_failure_total", Help: "Callbacks rejected as unauthorized."},
	{ID: authgate.MetricCallbackUpstreamFailure, Name: "authgate_callback_upstream_failure_total", Help: "Callbacks failed by the provider or session backend."},
	{ID: authgate.MetricCallbackRateLimited, Name: "authgate_callback_rate_limited_total", Help: "Callbacks refused by the failure budget."},
	{ID: authgate.MetricLogout, Name: "authgate_logout_total", Help: "Logout requests."},
	{ID: authgate.MetricAccessAllowed, Name: "authgate_access_allowed_total", Help: "Authorization checks that allowed the request."},
	{ID: authgate.MetricAccessUnauthenticated, Name: "authgate_access_unauthenticated_total", Help: "Authorization checks denied for lack of a session."},
	{ID: authgate.MetricAccessForbidden, Name: "authgate_access_forbidden_total", Help: "Authorization checks denied by role."},
	{ID: authgate.MetricStoreFailure, Name: "authgate_store_failure_total", Help: "Session backend errors."},
	{ID: authgate.MetricVerifyFailure, Name: "authgate_verify_failure_total", Help: "Rejected access tokens."},
}

var HistogramDefs = []HistogramDef{
	{ID: authgate.MetricVerifyLatency, Name: "authgate_verify_latency_seconds", Help: "Access token verification latency."},
}

// AuditDroppedName is the counter for audit events never delivered.
const AuditDroppedName = "authgate_audit_dropped_total"

// HistogramBoundSuffix names each bucket for exporters without native
// histograms. The last entry is the overflow bucket.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// BucketCount is the number of histogram buckets including overflow.
const BucketCount = 8

func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

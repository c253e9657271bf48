package internaldefs

import (
	"strings"
	"testing"

	"github.com/MrEthical07/authgate"
)

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [BucketCount]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNormalizeBucketsTruncates(t *testing.T) {
	got := NormalizeBuckets([]uint64{1, 1, 1, 1, 1, 1, 1, 1, 9})
	if got[BucketCount-1] != 1 {
		t.Fatalf("expected extra buckets ignored, got %v", got)
	}
}

func TestDefinitionsCoverEveryMetric(t *testing.T) {
	seen := map[authgate.MetricID]bool{}
	for _, def := range CounterDefs {
		if !strings.HasPrefix(def.Name, Namespace+"_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("bad counter name %q", def.Name)
		}
		if !strings.Contains(def.Name, def.ID.String()) {
			t.Fatalf("counter %q does not match metric %q", def.Name, def.ID)
		}
		seen[def.ID] = true
	}
	for _, def := range HistogramDefs {
		seen[def.ID] = true
	}
	snap := authgate.NewMetrics(authgate.MetricsConfig{Enabled: true}).Snapshot()
	for id := range snap.Counters {
		if !seen[id] {
			t.Fatalf("metric %q has no exporter definition", id)
		}
	}
	if len(HistogramBoundSuffix) != BucketCount || len(authgate.HistogramBounds()) != BucketCount-1 {
		t.Fatal("bucket layout out of sync")
	}
}

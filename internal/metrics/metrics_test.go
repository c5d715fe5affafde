package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Finished(OutcomeFinished, 200*time.Millisecond)
	m.Finished(OutcomeFinished, time.Second)
	m.Finished(OutcomeFailed, time.Second)
	m.FirstPayload(10 * time.Millisecond)
	m.PayloadMerged()
	m.PayloadMerged()
	m.MalformedPart()
	m.SnapshotDropped()

	if got := testutil.ToFloat64(m.requests.WithLabelValues(OutcomeFinished)); got != 2 {
		t.Errorf("finished requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues(OutcomeFailed)); got != 1 {
		t.Errorf("failed requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.payloads); got != 2 {
		t.Errorf("payloads = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.malformed); got != 1 {
		t.Errorf("malformed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.dropped); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.streamDuration); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}

	count, err := testutil.GatherAndCount(reg, "gqlstream_requests_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if count != 2 {
		t.Errorf("requests_total series = %d, want 2", count)
	}
}

func TestNilMetrics(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.Finished(OutcomeFinished, time.Second)
	m.FirstPayload(time.Second)
	m.PayloadMerged()
	m.MalformedPart()
	m.SnapshotDropped()
}

func TestNewRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	New(reg)

	defer func() {
		if recover() == nil {
			t.Fatal("second New on the same registry did not panic")
		}
	}()
	New(reg)
}

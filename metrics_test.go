package authgate

import (
	"sync"
	"testing"
)

func TestMetricsIncAndSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricPasswordResetSuccess)
	m.Inc(MetricPasswordResetSuccess)
	m.Inc(MetricStepUpApproved)

	if got := m.Value(MetricPasswordResetSuccess); got != 2 {
		t.Fatalf("Value() = %d, want 2", got)
	}

	snapshot := m.Snapshot()
	if snapshot.Counters[MetricPasswordResetSuccess] != 2 {
		t.Fatalf("snapshot counter = %d, want 2", snapshot.Counters[MetricPasswordResetSuccess])
	}
	if snapshot.Counters[MetricStepUpApproved] != 1 {
		t.Fatalf("snapshot counter = %d, want 1", snapshot.Counters[MetricStepUpApproved])
	}
	if len(snapshot.Counters) != int(metricIDCount) {
		t.Fatalf("snapshot size = %d, want %d", len(snapshot.Counters), int(metricIDCount))
	}
}

func TestMetricsDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	m.Inc(MetricPasswordResetSuccess)
	if got := m.Value(MetricPasswordResetSuccess); got != 0 {
		t.Fatalf("Value() = %d, want 0", got)
	}
	if got := len(m.Snapshot().Counters); got != 0 {
		t.Fatalf("disabled snapshot size = %d, want 0", got)
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 8
	const perGoroutine = 1000

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				m.Inc(MetricRateLimitHit)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricRateLimitHit); got != goroutines*perGoroutine {
		t.Fatalf("Value() = %d, want %d", got, goroutines*perGoroutine)
	}
}

func TestMetricsOutOfRangeID(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(metricIDCount + 10)
	if got := m.Value(metricIDCount + 10); got != 0 {
		t.Fatalf("Value() = %d, want 0", got)
	}
}

package internaldefs

import (
	"strings"
	"testing"

	authgate "github.com/obsidianbank/authgate"
)

func TestCounterDefsAreWellFormed(t *testing.T) {
	seenIDs := make(map[authgate.MetricID]bool)
	seenNames := make(map[string]bool)

	for _, def := range CounterDefs {
		if seenIDs[def.ID] {
			t.Errorf("metric ID %d defined twice", def.ID)
		}
		seenIDs[def.ID] = true

		if seenNames[def.Name] {
			t.Errorf("metric name %q defined twice", def.Name)
		}
		seenNames[def.Name] = true

		if !strings.HasPrefix(def.Name, "authgate_") || !strings.HasSuffix(def.Name, "_total") {
			t.Errorf("metric name %q does not follow authgate_*_total", def.Name)
		}
		if def.Description == "" {
			t.Errorf("metric %q has no description", def.Name)
		}
	}
}

func TestNameLookup(t *testing.T) {
	if got := Name(authgate.MetricPasswordResetSuccess); got != "authgate_password_reset_success_total" {
		t.Fatalf("Name() = %q", got)
	}
	if got := Name(authgate.MetricID(10_000)); got != "authgate_unknown" {
		t.Fatalf("Name() for unknown ID = %q", got)
	}
}

func TestEverySnapshotCounterHasAName(t *testing.T) {
	m := authgate.NewMetrics(authgate.MetricsConfig{Enabled: true})

	for id := range m.Snapshot().Counters {
		if Name(id) == "authgate_unknown" {
			t.Errorf("metric ID %d has no exported name", id)
		}
	}
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveStage_IncrementsCallCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.ObserveStage("search", 10*time.Millisecond)
	r.ObserveStage("search", 5*time.Millisecond)

	if got := testutil.ToFloat64(r.StageCalls.WithLabelValues("search")); got != 2 {
		t.Fatalf("expected 2 calls recorded, got %v", got)
	}
}

func TestTimer_ObservesElapsedDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	stop := r.Timer("scrape")
	stop()

	if got := testutil.ToFloat64(r.StageCalls.WithLabelValues("scrape")); got != 1 {
		t.Fatalf("expected timer to record one call, got %v", got)
	}
}

func TestWarn_IncrementsNamedCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.Warn("summary_parallel_high")
	r.Warn("summary_parallel_high")

	if got := testutil.ToFloat64(r.Warnings.WithLabelValues("summary_parallel_high")); got != 2 {
		t.Fatalf("expected 2 warnings recorded, got %v", got)
	}
}

func TestNew_NilRegistererFallsBackToDefault(t *testing.T) {
	defer func() {
		if rec := recover(); rec != nil {
			t.Fatalf("New(nil) panicked: %v", rec)
		}
	}()
	r := New(nil)
	if r.Registerer != prometheus.DefaultRegisterer {
		t.Fatalf("expected New(nil) to use the default registerer")
	}
}

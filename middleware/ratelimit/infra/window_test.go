package infra

import (
	"testing"
	"time"
)

func TestSlidingWindow_EvaluateUsesStrictLessThan(t *testing.T) {
	w := NewSlidingWindow(time.Minute, 2)

	w.Record(t0)
	if !w.Evaluate(t0) {
		t.Fatalf("expected 1 < 2 to allow")
	}
	w.Record(t0)
	if w.Evaluate(t0) {
		t.Fatalf("expected 2 < 2 to reject")
	}
}

func TestSlidingWindow_PruneDropsOnlyExpired(t *testing.T) {
	w := NewSlidingWindow(time.Minute, 10)

	w.Record(t0)
	w.Record(t0.Add(30 * time.Second))
	w.Record(t0.Add(59 * time.Second))

	if got := w.Count(t0.Add(time.Minute)); got != 2 {
		t.Fatalf("expected 2 timestamps after pruning t0, got %d", got)
	}
	if got := w.Count(t0.Add(90 * time.Second)); got != 1 {
		t.Fatalf("expected 1 timestamp, got %d", got)
	}
	if got := w.Remaining(t0.Add(2 * time.Minute)); got != 10 {
		t.Fatalf("expected full quota after window, got %d", got)
	}
}

func TestSlidingWindow_ZeroLimitAlwaysRejects(t *testing.T) {
	w := NewSlidingWindow(time.Minute, 0)
	if w.Evaluate(t0) {
		t.Fatalf("expected zero limit to reject")
	}
	if w.Remaining(t0) != 0 {
		t.Fatalf("expected no remaining quota")
	}
}

package infra

import (
	"context"
	"errors"
	"testing"

	"portfolio-backend/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusStatsStore_CountsByOutcomeAndReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPrometheusStatsStore(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	_ = s.Record(ctx, domain.StatsEvent{Allowed: true, Method: "POST", Path: "/api/chat"})
	_ = s.Record(ctx, domain.StatsEvent{Allowed: true, Method: "POST", Path: "/api/chat"})
	_ = s.Record(ctx, domain.StatsEvent{Reason: domain.LimitMinute, Method: "POST", Path: "/api/chat"})

	if got := testutil.ToFloat64(s.decisions.WithLabelValues("POST /api/chat", "allowed", "")); got != 2 {
		t.Fatalf("expected 2 allowed, got %v", got)
	}
	if got := testutil.ToFloat64(s.decisions.WithLabelValues("POST /api/chat", "denied", "minute")); got != 1 {
		t.Fatalf("expected 1 denied, got %v", got)
	}
}

func TestPrometheusStatsStore_DoubleRegisterFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusStatsStore(reg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewPrometheusStatsStore(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

type failingStats struct{ err error }

func (f failingStats) Record(context.Context, domain.StatsEvent) error { return f.err }

func TestMultiStatsStore_ReturnsFirstErrorAndCallsAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, _ := NewPrometheusStatsStore(reg)

	boom := errors.New("boom")
	m := MultiStatsStore{failingStats{err: boom}, nil, p}

	err := m.Record(context.Background(), domain.StatsEvent{Allowed: true})
	if !errors.Is(err, boom) {
		t.Fatalf("expected first error, got %v", err)
	}
	if got := testutil.ToFloat64(p.decisions.WithLabelValues("", "allowed", "")); got != 1 {
		t.Fatalf("expected later stores still called, got %v", got)
	}
}

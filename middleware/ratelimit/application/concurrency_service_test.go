package application

import (
	"context"
	"testing"
	"time"
)

type blockingPool struct{}

func (p *blockingPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case <-time.After(5 * time.Second):
		// não deve chegar aqui nos testes
		return nil, false
	}
}

type immediatePool struct {
	acquired int
}

func (p *immediatePool) Acquire(ctx context.Context) (func(), bool) {
	p.acquired++
	return func() {}, true
}

func TestConcurrencyService_Acquire_AllowsWhenNoPool(t *testing.T) {
	svc := ConcurrencyService{}
	release, ok := svc.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected ok")
	}
	release()
}

func TestConcurrencyService_Acquire_TimeoutCountsAsReject(t *testing.T) {
	rejects := 0
	svc := ConcurrencyService{
		Pool:           &blockingPool{},
		AcquireTimeout: 10 * time.Millisecond,
		OnReject:       func() { rejects++ },
	}

	if _, ok := svc.Acquire(context.Background()); ok {
		t.Fatalf("expected timeout and ok=false")
	}
	if rejects != 1 {
		t.Fatalf("rejects = %d, want 1", rejects)
	}
}

func TestConcurrencyService_Acquire_CanceledCallerIsNotAReject(t *testing.T) {
	rejects := 0
	svc := ConcurrencyService{
		Pool:           &blockingPool{},
		AcquireTimeout: time.Second,
		OnReject:       func() { rejects++ },
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := svc.Acquire(ctx); ok {
		t.Fatalf("expected ok=false for canceled context")
	}
	if rejects != 0 {
		t.Fatalf("rejects = %d, want 0", rejects)
	}
}

func TestConcurrencyService_Acquire_NoTimeoutDelegatesToPool(t *testing.T) {
	pool := &immediatePool{}
	svc := ConcurrencyService{Pool: pool}

	_, ok := svc.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected ok")
	}
	if pool.acquired != 1 {
		t.Fatalf("expected pool Acquire to be called once, got %d", pool.acquired)
	}
}

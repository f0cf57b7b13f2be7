package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"lendbook/internal/core"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) Refresh(context.Context) ([]core.Debtor, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return seedDebtors(), nil
}

func TestRefreshProcessor_DefaultInterval(t *testing.T) {
	p := NewRefreshProcessor(&countingRefresher{}, RefreshProcessorConfig{}, nil)
	if p.config.Interval != 5*time.Minute {
		t.Errorf("expected default interval 5m, got %v", p.config.Interval)
	}
	if p.IsRunning() {
		t.Error("processor should not be running initially")
	}
}

func TestRefreshProcessor_Lifecycle(t *testing.T) {
	r := &countingRefresher{}
	p := NewRefreshProcessor(r, RefreshProcessorConfig{Interval: 10 * time.Millisecond}, nil)

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Error("expected error when starting a running processor")
	}

	deadline := time.Now().Add(2 * time.Second)
	for r.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if r.calls.Load() < 3 {
		t.Fatalf("expected repeated refreshes, got %d", r.calls.Load())
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.IsRunning() {
		t.Error("processor should not be running after Stop")
	}
	at, size := p.LastRefresh()
	if at.IsZero() || size != len(seedDebtors()) {
		t.Errorf("LastRefresh = %v, %d", at, size)
	}
}

func TestRefreshProcessor_FailureKeepsRunning(t *testing.T) {
	r := &countingRefresher{err: errors.New("api down")}
	p := NewRefreshProcessor(r, RefreshProcessorConfig{Interval: 10 * time.Millisecond}, nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for r.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	_ = p.Stop(context.Background())

	if r.calls.Load() < 2 {
		t.Errorf("processor should keep trying after a failure, got %d calls", r.calls.Load())
	}
	if at, _ := p.LastRefresh(); !at.IsZero() {
		t.Error("failed refreshes should not update LastRefresh")
	}
}

func TestRefreshProcessor_StopNotRunning(t *testing.T) {
	p := NewRefreshProcessor(&countingRefresher{}, DefaultRefreshProcessorConfig(), nil)
	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}

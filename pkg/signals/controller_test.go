package signals

import (
	"context"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/helix-sdn/helix/pkg/reporting"
)

func TestSigtermRunsShutdownInOrder(t *testing.T) {
	log := reporting.New(reporting.Config{Level: reporting.LevelError})
	c := New(log)

	var order []int
	c.OnShutdown(func(ctx context.Context) error { order = append(order, 1); return nil })
	c.OnShutdown(func(ctx context.Context) error { order = append(order, 2); return nil })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() { c.Run(ctx); close(done) }()

	time.Sleep(20 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("kill: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after SIGTERM")
	}

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected shutdown callbacks in registration order, got %v", order)
	}
}

func TestSigusr1TriggersSnapshotWithoutExiting(t *testing.T) {
	log := reporting.New(reporting.Config{Level: reporting.LevelError})
	c := New(log)

	var calls int32
	c.OnSnapshot(func() { atomic.AddInt32(&calls, 1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { c.Run(ctx); close(done) }()

	time.Sleep(20 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("kill: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly one snapshot call, got %d", calls)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after context cancel")
	}
}

// Package signals wires the process signals spec §6 requires: SIGUSR1
// runs the registered snapshot callbacks, SIGTERM runs the registered
// shutdown callbacks in order and then Run returns. The package removes
// no flows or groups itself; shutdown does only what those callbacks do.
package signals

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/helix-sdn/helix/pkg/reporting"
)

// Controller listens for SIGUSR1/SIGTERM and drives the registered
// callbacks, the way the teacher's emergency controller drives its stop
// callbacks on SIGINT/SIGTERM.
type Controller struct {
	log *reporting.Logger

	mu           sync.Mutex
	shutdownOnce sync.Once
	doneCh       chan struct{}

	onSnapshot []func()
	onShutdown []func(context.Context) error
}

// New builds a Controller that logs through log.
func New(log *reporting.Logger) *Controller {
	return &Controller{
		log:    log,
		doneCh: make(chan struct{}),
	}
}

// OnSnapshot registers a callback run synchronously on SIGUSR1 (e.g.
// internal/localctrl.Controller.Snapshot).
func (c *Controller) OnSnapshot(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSnapshot = append(c.onSnapshot, fn)
}

// OnShutdown registers a callback run, in registration order, as part of
// the orderly SIGTERM shutdown sequence. A callback's error is logged but
// does not stop later callbacks from running.
func (c *Controller) OnShutdown(fn func(context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onShutdown = append(c.onShutdown, fn)
}

// Run installs the signal handlers and blocks until ctx is cancelled or
// a SIGTERM has been fully processed. SIGUSR1 never returns from Run; it
// only triggers the snapshot callbacks and keeps listening.
func (c *Controller) Run(ctx context.Context) {
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGUSR1:
				c.emitSnapshot()
			case syscall.SIGTERM:
				c.shutdown(ctx)
				return
			}
		}
	}
}

// Shutdown runs the orderly shutdown sequence directly, without waiting
// for a SIGTERM.
func (c *Controller) Shutdown(ctx context.Context) {
	c.shutdown(ctx)
}

// Done returns a channel closed once shutdown has run to completion.
func (c *Controller) Done() <-chan struct{} { return c.doneCh }

func (c *Controller) emitSnapshot() {
	c.mu.Lock()
	callbacks := append([]func(){}, c.onSnapshot...)
	c.mu.Unlock()

	c.log.Info("snapshot requested via SIGUSR1")
	for _, fn := range callbacks {
		fn()
	}
}

func (c *Controller) shutdown(ctx context.Context) {
	c.shutdownOnce.Do(func() {
		c.log.Info("orderly shutdown started")

		c.mu.Lock()
		callbacks := append([]func(context.Context) error{}, c.onShutdown...)
		c.mu.Unlock()

		for i, fn := range callbacks {
			if err := fn(ctx); err != nil {
				c.log.Warn("shutdown step failed", "step", i, "error", err.Error())
			}
		}

		c.log.Info("orderly shutdown complete")
		close(c.doneCh)
	})
}

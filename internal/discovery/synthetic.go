package discovery

import (
	"context"
)

// Synthetic is a Source that replays a fixed, ordered script of events —
// used by tests and by demo/offline runs in place of a live LLDP feed.
type Synthetic struct {
	Script []Event
}

// Run feeds the script into out, in order, stopping early if ctx is
// cancelled. After delivering the whole script it blocks until ctx is
// cancelled, and it always returns ctx.Err().
func (s *Synthetic) Run(ctx context.Context, out chan<- Event) error {
	for _, ev := range s.Script {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- ev:
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

var _ Source = (*Synthetic)(nil)

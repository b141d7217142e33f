// Package poller is the safety net under the channel: a fixed-interval
// re-fetch of the latest message page, folded through the reconciler's
// idempotent merge. Correctness of the message list does not depend on
// the channel; polling runs for the whole session, healthy channel or
// not, because merge absorbs the overlap.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/kmrathod29/seribro-sub002/pkg/log"
)

// FetchFunc pulls the latest page and merges it. Errors are transient;
// the next tick retries.
type FetchFunc func(ctx context.Context) error

type Poller struct {
	interval time.Duration
	fetch    FetchFunc

	mu     sync.Mutex
	cancel context.CancelFunc
}

func New(interval time.Duration, fetch FetchFunc) *Poller {
	return &Poller{interval: interval, fetch: fetch}
}

// Start begins ticking. Starting an already-running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	go p.run(ctx)
}

func (p *Poller) run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.fetch(ctx); err != nil && ctx.Err() == nil {
				log.Ctx(ctx).Warn().Err(err).Msg("fallback poll failed, will retry next tick")
			}
		}
	}
}

// Stop halts ticking. Safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

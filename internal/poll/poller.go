package poll

import (
	"context"
	"sync"
	"time"
)

// Poller runs a function immediately and then on a fixed interval until
// stopped or its context is cancelled. The interval can be changed while
// running; Kick forces an immediate extra run.
type Poller struct {
	fn func(context.Context)

	mu       sync.Mutex
	interval time.Duration
	cancel   context.CancelFunc
	kick     chan struct{}
	reset    chan time.Duration
	done     chan struct{}
}

// NewPoller creates a poller. Start must be called to begin polling.
func NewPoller(interval time.Duration, fn func(context.Context)) *Poller {
	return &Poller{fn: fn, interval: interval}
}

// Start launches the polling loop. Starting an already-running poller is a
// no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.kick = make(chan struct{}, 1)
	p.reset = make(chan time.Duration, 1)
	p.done = make(chan struct{})

	go p.run(runCtx, p.interval, p.kick, p.reset, p.done)
}

func (p *Poller) run(ctx context.Context, interval time.Duration, kick chan struct{}, reset chan time.Duration, done chan struct{}) {
	defer close(done)

	p.fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fn(ctx)
		case <-kick:
			p.fn(ctx)
			ticker.Reset(interval)
		case interval = <-reset:
			ticker.Reset(interval)
		}
	}
}

// Stop halts the loop and waits for the in-flight run, if any, to return.
// Stop is idempotent and safe after the context has been cancelled.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Kick schedules an immediate run. A kick while one is already pending is
// coalesced.
func (p *Poller) Kick() {
	p.mu.Lock()
	kick := p.kick
	running := p.cancel != nil
	p.mu.Unlock()
	if !running {
		return
	}
	select {
	case kick <- struct{}{}:
	default:
	}
}

// SetInterval changes the polling interval. Takes effect on a running loop
// at the next select; also recorded for the next Start.
func (p *Poller) SetInterval(interval time.Duration) {
	p.mu.Lock()
	p.interval = interval
	reset := p.reset
	running := p.cancel != nil
	p.mu.Unlock()
	if !running {
		return
	}
	select {
	case reset <- interval:
	default:
	}
}

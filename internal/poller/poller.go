// Package poller runs the periodic refresh loop that is only active while
// the backend reports work in flight.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is the refresh period while polling.
const DefaultInterval = 1000 * time.Millisecond

// State is the poller's scheduling state.
type State string

const (
	Idle    State = "idle"
	Polling State = "polling"
)

// Ticker delivers ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker with period d.
type TickerFunc func(d time.Duration) Ticker

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func newRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Poller calls tick once per interval while in the Polling state. Start,
// Stop and SetActive are idempotent and safe for concurrent use.
//
// tick runs on the poller goroutine and must not block: it should hand the
// actual fetches off to other goroutines. In-flight work started by a tick
// is not cancelled by Stop.
type Poller struct {
	interval  time.Duration
	tick      func()
	newTicker TickerFunc
	logger    *slog.Logger

	mu           sync.Mutex
	cancel       context.CancelFunc
	done         chan struct{}
	onTransition func(State)
}

// New returns an idle poller using real tickers.
func New(interval time.Duration, tick func(), logger *slog.Logger) *Poller {
	return NewWithTicker(interval, tick, newRealTicker, logger)
}

// NewWithTicker is New with a custom ticker source.
func NewWithTicker(interval time.Duration, tick func(), newTicker TickerFunc, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		interval:  interval,
		tick:      tick,
		newTicker: newTicker,
		logger:    logger,
	}
}

// OnTransition registers fn to be called with the new state on every
// Idle/Polling transition. It runs while the poller lock is held and must
// not call back into the poller.
func (p *Poller) OnTransition(fn func(State)) {
	p.mu.Lock()
	p.onTransition = fn
	p.mu.Unlock()
}

// SetActive is the gating input: true ensures Polling, false ensures Idle.
func (p *Poller) SetActive(active bool) {
	if active {
		p.Start()
		return
	}
	p.Stop()
}

// Start moves the poller to Polling. The first tick fires one interval
// after the transition.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel, p.done = cancel, done
	go p.run(ctx, p.newTicker(p.interval), done)

	p.logger.Info("poller started", slog.Duration("interval", p.interval))
	if p.onTransition != nil {
		p.onTransition(Polling)
	}
}

// Stop moves the poller to Idle. When Stop returns no further tick will
// start.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return
	}

	p.cancel()
	<-p.done
	p.cancel, p.done = nil, nil

	p.logger.Info("poller stopped")
	if p.onTransition != nil {
		p.onTransition(Idle)
	}
}

// State reports the current scheduling state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return Polling
	}
	return Idle
}

func (p *Poller) run(ctx context.Context, t Ticker, done chan struct{}) {
	defer close(done)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			if ctx.Err() != nil {
				return
			}
			p.tick()
		}
	}
}

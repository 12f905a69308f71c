// Package dashboard is the application-state object tying the backend
// client, entity store, activity-gated poller and notification queue
// together.
//
// Every fetch normalizes its payload, writes one slice of the store and, on
// failure, pushes a toast and leaves the store untouched. Each applied store
// write re-evaluates the activity signal, which is the poller's only input.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/runesmith/dashboard/internal/apiclient"
	"github.com/runesmith/dashboard/internal/dispatch"
	"github.com/runesmith/dashboard/internal/metrics"
	"github.com/runesmith/dashboard/internal/models"
	"github.com/runesmith/dashboard/internal/poller"
	"github.com/runesmith/dashboard/internal/store"
	"github.com/runesmith/dashboard/internal/toast"
)

// Backend is the subset of apiclient.Client the dashboard drives.
type Backend interface {
	FetchStatus(ctx context.Context) ([]models.NodeStatus, error)
	FetchArtifacts(ctx context.Context, completed bool) ([]models.Artifact, error)
	FetchItems(ctx context.Context) ([]models.Item, error)
	Forge(ctx context.Context) (*apiclient.ForgeResult, error)
}

// Options tunes timing. Zero values select the defaults.
type Options struct {
	PollInterval time.Duration
	ToastTTL     time.Duration
	// NewTicker and AfterFunc replace the real time sources in tests.
	NewTicker poller.TickerFunc
	AfterFunc toast.AfterFunc
}

// App owns the store, the toast queue and the poller.
type App struct {
	backend    Backend
	store      *store.Store
	toasts     *toast.Queue
	poller     *poller.Poller
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	gateMu sync.Mutex
	closed bool

	listenersMu sync.Mutex
	listeners   []func()
}

// New wires an App around backend. Call Start to issue the cold-start fetch.
func New(backend Backend, logger *slog.Logger, opts Options) *App {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = poller.DefaultInterval
	}
	if opts.ToastTTL <= 0 {
		opts.ToastTTL = toast.DefaultTTL
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		backend: backend,
		store:   store.New(),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	if opts.AfterFunc != nil {
		a.toasts = toast.NewWithScheduler(opts.ToastTTL, opts.AfterFunc)
	} else {
		a.toasts = toast.New(opts.ToastTTL)
	}
	if opts.NewTicker != nil {
		a.poller = poller.NewWithTicker(opts.PollInterval, a.onTick, opts.NewTicker, logger)
	} else {
		a.poller = poller.New(opts.PollInterval, a.onTick, logger)
	}
	a.poller.OnTransition(func(s poller.State) { metrics.SetPolling(s == poller.Polling) })
	a.dispatcher = dispatch.New(forger{a}, a, a, logger)

	a.store.OnChange(func(store.Snapshot) {
		a.gate()
		a.notify()
	})
	a.toasts.OnChange(func([]toast.Toast) { a.notify() })
	return a
}

// Store exposes the entity store for read access.
func (a *App) Store() *store.Store { return a.store }

// Toasts exposes the notification queue for read access.
func (a *App) Toasts() *toast.Queue { return a.toasts }

// PollerState reports whether the poller is running.
func (a *App) PollerState() poller.State { return a.poller.State() }

// OnChange registers fn to run after any store or toast change.
func (a *App) OnChange(fn func()) {
	a.listenersMu.Lock()
	a.listeners = append(a.listeners, fn)
	a.listenersMu.Unlock()
}

func (a *App) notify() {
	a.listenersMu.Lock()
	fns := append([]func(){}, a.listeners...)
	a.listenersMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Start issues the unconditional cold-start fetch of status and artifacts.
// It does not block.
func (a *App) Start() {
	a.logger.Info("cold start fetch")
	a.spawn(a.Refresh)
}

// Wait blocks until every background fetch started so far has finished.
func (a *App) Wait() {
	a.wg.Wait()
}

// Close stops polling, cancels background fetches and stops toast timers.
func (a *App) Close() {
	a.gateMu.Lock()
	a.closed = true
	a.poller.Stop()
	a.gateMu.Unlock()

	a.cancel()
	a.wg.Wait()
	a.toasts.Close()
}

// gate aligns the poller with the current activity signal. Reading the
// signal and applying it happen under one lock so concurrent writers cannot
// leave the poller in a state that disagrees with the store.
func (a *App) gate() {
	a.gateMu.Lock()
	defer a.gateMu.Unlock()
	if a.closed {
		return
	}
	a.poller.SetActive(a.store.Active())
}

func (a *App) onTick() {
	metrics.PollTick()
	a.spawn(a.Refresh)
}

func (a *App) spawn(fn func(context.Context)) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn(a.ctx)
	}()
}

// Push adds a notification.
func (a *App) Push(msg string) toast.Toast {
	t := a.toasts.Push(msg)
	metrics.ToastPushed(toast.IsError(msg))
	return t
}

// Refresh fetches node status and both artifact sets in parallel and
// returns when both have completed.
func (a *App) Refresh(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.FetchStatus(ctx)
	}()
	go func() {
		defer wg.Done()
		a.FetchArtifacts(ctx)
	}()
	wg.Wait()
}

// FetchStatus replaces the node list.
func (a *App) FetchStatus(ctx context.Context) {
	seq := a.store.Begin()
	start := time.Now()
	nodes, err := a.backend.FetchStatus(ctx)
	metrics.ObserveBackend("status", apiclient.StatusCode(err), err, time.Since(start))
	if err != nil {
		a.fail("Failed to fetch status", "status", err)
		return
	}
	if !a.store.ReplaceNodes(seq, nodes) {
		a.logger.Debug("discarded stale response", slog.String("endpoint", "status"), slog.Uint64("seq", seq))
	}
}

// FetchArtifacts replaces the pending and completed sets together. If
// either request fails neither set is replaced.
func (a *App) FetchArtifacts(ctx context.Context) {
	seq := a.store.Begin()

	var (
		wg                  sync.WaitGroup
		pending, completed  []models.Artifact
		pendingErr, doneErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		start := time.Now()
		pending, pendingErr = a.backend.FetchArtifacts(ctx, false)
		metrics.ObserveBackend("artifacts_pending", apiclient.StatusCode(pendingErr), pendingErr, time.Since(start))
	}()
	go func() {
		defer wg.Done()
		start := time.Now()
		completed, doneErr = a.backend.FetchArtifacts(ctx, true)
		metrics.ObserveBackend("artifacts_completed", apiclient.StatusCode(doneErr), doneErr, time.Since(start))
	}()
	wg.Wait()

	if err := firstErr(pendingErr, doneErr); err != nil {
		a.fail("Failed to fetch artifacts", "artifacts", err)
		return
	}
	if !a.store.ReplaceArtifacts(seq, pending, completed) {
		a.logger.Debug("discarded stale response", slog.String("endpoint", "artifacts"), slog.Uint64("seq", seq))
	}
}

// FetchItems replaces the catalog. It is only called on demand.
func (a *App) FetchItems(ctx context.Context) {
	seq := a.store.Begin()
	start := time.Now()
	items, err := a.backend.FetchItems(ctx)
	metrics.ObserveBackend("items", apiclient.StatusCode(err), err, time.Since(start))
	if err != nil {
		a.fail("Failed to fetch items", "items", err)
		return
	}
	a.store.ReplaceItems(seq, items)
}

// Forge runs the forge action. Cancellation of ctx does not abort a forge
// already in flight.
func (a *App) Forge(ctx context.Context) dispatch.Result {
	return a.dispatcher.Forge(context.WithoutCancel(ctx))
}

func (a *App) fail(msg, endpoint string, err error) {
	code := apiclient.StatusCode(err)
	a.logger.Warn("fetch failed",
		slog.String("endpoint", endpoint),
		slog.Int("status", code),
		slog.String("error", err.Error()),
	)
	if code != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, code)
	}
	a.Push(msg)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// forger adapts the backend for the dispatcher and records metrics.
type forger struct {
	a *App
}

func (f forger) Forge(ctx context.Context) (*apiclient.ForgeResult, error) {
	start := time.Now()
	res, err := f.a.backend.Forge(ctx)
	metrics.ObserveBackend("forge", apiclient.StatusCode(err), err, time.Since(start))
	return res, err
}

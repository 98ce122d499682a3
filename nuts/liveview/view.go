// Package liveview keeps cached, periodically revalidated snapshots of
// backend state, one View per query key.
//
// A View owns one ticker goroutine between Start and Stop. Every refresh,
// whether from the ticker, an explicit Refresh call or Mutate, draws a
// generation number when it starts and commits only if no later-started
// refresh has committed first. A failed refresh never replaces the cached
// snapshot; the view is marked stale instead.
package liveview

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nutsq/nutsdash/logger"
)

const (
	// DefaultInterval is the background revalidation period
	DefaultInterval = 5 * time.Second

	// SubscriberChannelBufferSize is the buffer size for subscriber channels
	SubscriberChannelBufferSize = 16
)

// Fetcher loads fresh data for a view
type Fetcher[T any] func(ctx context.Context) (T, error)

// Snapshot is an immutable committed result. Readers must not modify Data.
type Snapshot[T any] struct {
	Data       T
	UpdatedAt  time.Time
	Generation uint64
}

// Update is delivered to subscribers after every refresh that changes what
// the view shows: a commit, or a failure that marks the view stale.
type Update[T any] struct {
	Key      string
	Snapshot *Snapshot[T] // nil until the first successful refresh
	Stale    bool
	Err      error
}

// Config configures a View
type Config struct {
	Interval time.Duration // background refresh period (default: 5s)
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{Interval: DefaultInterval}
}

// Stats reports a view's refresh activity
type Stats struct {
	Key         string        `json:"key"`
	Interval    time.Duration `json:"interval"`
	Running     bool          `json:"running"`
	Ticks       int64         `json:"ticks"`
	Refreshes   int64         `json:"refreshes"`
	Failures    int64         `json:"failures"`
	Discarded   int64         `json:"discarded"`
	LastRefresh time.Time     `json:"last_refresh"`
	LastError   string        `json:"last_error,omitempty"`
}

// View is the live, cached state for one query key
type View[T any] struct {
	key   string
	fetch Fetcher[T]
	log   *zap.SugaredLogger

	snap atomic.Pointer[Snapshot[T]]

	mu          sync.Mutex
	interval    time.Duration
	started     uint64 // generation of the most recently started refresh
	committed   uint64 // generation of the most recently committed refresh
	lastErr     error
	subscribers []chan Update[T]
	stats       Stats

	// ticker lifecycle
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	resetCh chan time.Duration
}

// NewView creates a view for key. It does not fetch until Refresh or Start.
func NewView[T any](key string, fetch Fetcher[T], cfg Config, log *zap.SugaredLogger) *View[T] {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if log == nil {
		log = logger.ComponentLogger("liveview")
	}
	return &View[T]{
		key:      key,
		fetch:    fetch,
		log:      log.With(logger.FieldView, key),
		interval: cfg.Interval,
	}
}

// Key returns the view's query key
func (v *View[T]) Key() string {
	return v.key
}

// Snapshot returns the last committed snapshot, or nil before the first
// successful refresh
func (v *View[T]) Snapshot() *Snapshot[T] {
	return v.snap.Load()
}

// Current returns the committed snapshot together with the stale flag and
// the error of the latest failed refresh
func (v *View[T]) Current() Update[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Update[T]{
		Key:      v.key,
		Snapshot: v.snap.Load(),
		Stale:    v.lastErr != nil,
		Err:      v.lastErr,
	}
}

// LastError returns the error of the latest refresh if it failed, else nil
func (v *View[T]) LastError() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastErr
}

// Refresh fetches now and commits the result unless a refresh that started
// later has already committed. On failure the cached snapshot is kept, the
// error is recorded and returned.
func (v *View[T]) Refresh(ctx context.Context) error {
	return v.refresh(ctx, false)
}

// refresh is Refresh; background marks calls from the ticker loop, whose
// context is cancelled by Stop
func (v *View[T]) refresh(ctx context.Context, background bool) error {
	v.mu.Lock()
	v.started++
	gen := v.started
	v.mu.Unlock()

	start := time.Now()
	data, err := v.fetch(ctx)

	if err != nil && background && ctx.Err() != nil {
		// stopped mid-fetch; the backend did not fail
		v.log.Debugw("Refresh abandoned by stop", "generation", gen)
		return err
	}

	v.mu.Lock()
	if err != nil {
		v.stats.Failures++
		if gen < v.committed {
			// a newer refresh already committed; its state is current
			v.mu.Unlock()
			v.log.Debugw("Discarding outdated refresh failure",
				"generation", gen,
				logger.FieldError, err)
			return err
		}
		v.lastErr = err
		v.stats.LastError = err.Error()
		v.notifyLocked(Update[T]{Key: v.key, Snapshot: v.snap.Load(), Stale: true, Err: err})
		v.mu.Unlock()

		v.log.Warnw("View refresh failed, keeping cached snapshot",
			logger.FieldError, err,
			logger.FieldStale, true)
		return err
	}

	if gen < v.committed {
		v.stats.Discarded++
		v.mu.Unlock()
		v.log.Debugw("Discarding outdated refresh",
			"generation", gen)
		return nil
	}

	snap := &Snapshot[T]{Data: data, UpdatedAt: time.Now(), Generation: gen}
	v.committed = gen
	v.snap.Store(snap)
	v.lastErr = nil
	v.stats.Refreshes++
	v.stats.LastRefresh = snap.UpdatedAt
	v.stats.LastError = ""
	v.notifyLocked(Update[T]{Key: v.key, Snapshot: snap})
	v.mu.Unlock()

	v.log.Debugw("View refreshed",
		"generation", gen,
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return nil
}

// Subscribe returns a channel receiving every update. Slow subscribers miss
// updates rather than block the view.
func (v *View[T]) Subscribe() <-chan Update[T] {
	v.mu.Lock()
	defer v.mu.Unlock()

	ch := make(chan Update[T], SubscriberChannelBufferSize)
	v.subscribers = append(v.subscribers, ch)
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe
func (v *View[T]) Unsubscribe(ch <-chan Update[T]) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i, sub := range v.subscribers {
		if sub == ch {
			close(sub)
			v.subscribers = append(v.subscribers[:i], v.subscribers[i+1:]...)
			return
		}
	}
}

// notifyLocked sends u to every subscriber without blocking. Callers hold v.mu.
func (v *View[T]) notifyLocked(u Update[T]) {
	for _, ch := range v.subscribers {
		select {
		case ch <- u:
		default:
			v.log.Debugw("Subscriber channel full, skipping update")
		}
	}
}

// Start launches the background refresh loop. The first refresh runs
// immediately. Start on a running view is a no-op.
func (v *View[T]) Start() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	v.resetCh = make(chan time.Duration, 1)
	v.stats.Running = true

	v.wg.Add(1)
	go v.run(ctx, v.interval, v.resetCh)

	v.log.Infow("Live view started", logger.FieldInterval, v.interval)
}

// Stop halts the background loop and waits for an in-flight refresh to end
func (v *View[T]) Stop() {
	v.mu.Lock()
	cancel := v.cancel
	v.cancel = nil
	v.stats.Running = false
	v.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	v.wg.Wait()
	v.log.Infow("Live view stopped")
}

// SetInterval changes the refresh period, taking effect on a running loop
func (v *View[T]) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if d == v.interval {
		return
	}
	v.interval = d
	if v.cancel != nil {
		// replace any pending reset with the newest value
		select {
		case <-v.resetCh:
		default:
		}
		v.resetCh <- d
	}
}

// Stats returns a copy of the view's counters
func (v *View[T]) Stats() Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.stats
	s.Key = v.key
	s.Interval = v.interval
	return s
}

// run is the ticker loop
func (v *View[T]) run(ctx context.Context, interval time.Duration, resetCh <-chan time.Duration) {
	defer v.wg.Done()

	v.refresh(ctx, true)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-resetCh:
			ticker.Reset(d)
			v.log.Infow("Live view interval changed", logger.FieldInterval, d)
		case <-ticker.C:
			v.mu.Lock()
			v.stats.Ticks++
			v.mu.Unlock()

			// failures are logged inside refresh
			v.refresh(ctx, true)
		}
	}
}

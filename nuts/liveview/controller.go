package liveview

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nutsq/nutsdash/errors"
	"github.com/nutsq/nutsdash/logger"
)

// Controller is a registry of independently polling views
type Controller struct {
	mu       sync.RWMutex
	views    map[string]Refresher
	interval time.Duration
	running  bool
	log      *zap.SugaredLogger
}

// NewController creates an empty controller. Views registered later get
// interval applied.
func NewController(interval time.Duration, log *zap.SugaredLogger) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logger.ComponentLogger("liveview")
	}
	return &Controller{
		views:    make(map[string]Refresher),
		interval: interval,
		log:      log,
	}
}

// Register adds v under key, replacing and stopping any view already there.
// If the controller is running the new view is started.
func (c *Controller) Register(key string, v Refresher) {
	c.mu.Lock()
	old := c.views[key]
	c.views[key] = v
	running := c.running
	interval := c.interval
	c.mu.Unlock()

	if old != nil && old != v {
		old.Stop()
	}
	v.SetInterval(interval)
	if running {
		v.Start()
	}
	c.log.Debugw("View registered", logger.FieldView, key)
}

// Get returns the view registered under key
func (c *Controller) Get(key string) (Refresher, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.views[key]
	return v, ok
}

// Refresh forces a refresh of the view registered under key
func (c *Controller) Refresh(ctx context.Context, key string) error {
	v, ok := c.Get(key)
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "view %q", key)
	}
	return v.Refresh(ctx)
}

// Remove stops and unregisters the view under key. It reports whether a view
// was registered.
func (c *Controller) Remove(key string) bool {
	c.mu.Lock()
	v, ok := c.views[key]
	delete(c.views, key)
	c.mu.Unlock()

	if ok {
		v.Stop()
		c.log.Debugw("View removed", logger.FieldView, key)
	}
	return ok
}

// RemoveView stops and unregisters v if it is still the view under key. A
// view registered under key since v was looked up is left alone.
func (c *Controller) RemoveView(key string, v Refresher) bool {
	c.mu.Lock()
	cur, ok := c.views[key]
	if !ok || cur != v {
		c.mu.Unlock()
		return false
	}
	delete(c.views, key)
	c.mu.Unlock()

	v.Stop()
	c.log.Debugw("View removed", logger.FieldView, key)
	return true
}

// StartAll starts every registered view and every view registered afterwards
func (c *Controller) StartAll() {
	c.mu.Lock()
	c.running = true
	views := c.snapshotLocked()
	c.mu.Unlock()

	for _, v := range views {
		v.Start()
	}
	c.log.Infow("Live views started", logger.FieldCount, len(views))
}

// StopAll stops every registered view
func (c *Controller) StopAll() {
	c.mu.Lock()
	c.running = false
	views := c.snapshotLocked()
	c.mu.Unlock()

	for _, v := range views {
		v.Stop()
	}
	c.log.Infow("Live views stopped", logger.FieldCount, len(views))
}

// SetInterval changes the refresh period of every view
func (c *Controller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}

	c.mu.Lock()
	c.interval = d
	views := c.snapshotLocked()
	c.mu.Unlock()

	for _, v := range views {
		v.SetInterval(d)
	}
	c.log.Infow("Refresh interval updated", logger.FieldInterval, d)
}

// Interval returns the period applied to views
func (c *Controller) Interval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.interval
}

// Keys returns the registered keys in sorted order
func (c *Controller) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.views))
	for k := range c.views {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Stats returns the stats of every view, sorted by key
func (c *Controller) Stats() []Stats {
	c.mu.RLock()
	views := c.snapshotLocked()
	c.mu.RUnlock()

	out := make([]Stats, 0, len(views))
	for _, v := range views {
		out = append(out, v.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (c *Controller) snapshotLocked() []Refresher {
	views := make([]Refresher, 0, len(c.views))
	for _, v := range c.views {
		views = append(views, v)
	}
	return views
}

// Package source maintains live row snapshots for pages. A Controller owns
// the load lifecycle of one data source: parameter changes and refetches
// cancel any in-flight load, and only the newest load may publish its result.
package source

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lk-keep-fighting/jsonpage/model"
)

// LoadFunc fetches one page of rows for the given parameters.
type LoadFunc func(ctx context.Context, params model.LoadParams) (model.QueryResult, error)

// Snapshot is the published view of a controller at a point in time. When a
// load fails the previous rows and total are kept alongside the error.
type Snapshot struct {
	Rows       []map[string]any
	Total      int
	Loading    bool
	Err        error
	LastLoaded time.Time
}

// Controller serializes loads for a single data source. Every call to
// SetParams or Refetch supersedes the previous load: the old context is
// cancelled and its result, if it arrives anyway, is discarded.
type Controller struct {
	load LoadFunc
	log  *zap.Logger

	mu         sync.Mutex
	params     model.LoadParams
	generation uint64
	cancel     context.CancelFunc
	snap       Snapshot
}

// NewController creates a controller with the given initial parameters. No
// load is started; call Refetch to populate the first snapshot.
func NewController(load LoadFunc, params model.LoadParams, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{load: load, log: log, params: params}
}

// Params returns the parameters the next load will use.
func (c *Controller) Params() model.LoadParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// Snapshot returns the current published state. The returned row slice must
// be treated as read-only.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// SetParams replaces the load parameters and starts a new load. The returned
// channel closes when that load has either published or been superseded.
func (c *Controller) SetParams(ctx context.Context, params model.LoadParams) <-chan struct{} {
	c.mu.Lock()
	c.params = params
	c.mu.Unlock()
	return c.Refetch(ctx)
}

// Refetch reloads with the current parameters, cancelling any load still in
// flight. The returned channel closes when the new load settles.
func (c *Controller) Refetch(ctx context.Context) <-chan struct{} {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.generation++
	gen := c.generation
	params := c.params
	c.snap.Loading = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.run(loadCtx, gen, params)
	}()
	return done
}

// run executes one load and publishes its outcome if it is still the newest.
func (c *Controller) run(ctx context.Context, gen uint64, params model.LoadParams) {
	result, err := c.load(ctx, params)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		// A newer load took over while this one was in flight.
		return
	}
	c.snap.Loading = false

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.log.Warn("data source load failed", zap.Error(err))
		c.snap.Err = err
		return
	}

	c.snap.Err = nil
	c.snap.Rows = result.Rows
	c.snap.Total = result.Total
	c.snap.LastLoaded = time.Now()
}

// Close cancels any load in flight.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Run refreshes the snapshot on the given interval until ctx is cancelled.
// Intended to be started in its own goroutine for pages that declare a
// refresh interval.
func (c *Controller) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	<-c.Refetch(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.Close()
			return
		case <-ticker.C:
			c.Refetch(ctx)
		}
	}
}

// Package stats records minute-bucketed build activity.
package stats

import (
	"context"
	"sync"
	"time"

	"github.com/techwithparamesh/applyn-sub004/pkg/core"
	"github.com/techwithparamesh/applyn-sub004/pkg/queue"
)

// BuildStat is one minute bucket of queue activity. Depth columns hold the
// last snapshot taken inside the bucket; flow columns accumulate outcomes
// counted during it.
type BuildStat struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Timestamp time.Time `gorm:"uniqueIndex;not null" json:"timestamp"`

	Queued  int64 `gorm:"default:0" json:"queued"`
	Running int64 `gorm:"default:0" json:"running"`

	Succeeded int64 `gorm:"default:0" json:"succeeded"`
	Failed    int64 `gorm:"default:0" json:"failed"`
	Requeued  int64 `gorm:"default:0" json:"requeued"`
}

// Store persists stat buckets.
type Store interface {
	Migrate(ctx context.Context) error
	AddCounters(ctx context.Context, ts time.Time, succeeded, failed, requeued int64) error
	SnapshotDepth(ctx context.Context, ts time.Time, queued, running int64) error
	History(ctx context.Context, since, until time.Time) ([]BuildStat, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Collector subscribes to queue events and periodically flushes counters,
// snapshots queue depth, and prunes old buckets.
type Collector struct {
	queue     *queue.BuildQueue
	store     Store
	retention time.Duration

	mu       sync.Mutex
	counters counters

	// ready is closed once the collector has subscribed and is processing.
	ready     chan struct{}
	readyOnce sync.Once
}

type counters struct {
	succeeded int64
	failed    int64
	requeued  int64
}

// CollectorOption configures the Collector.
type CollectorOption interface {
	apply(*Collector)
}

type collectorOptionFunc func(*Collector)

func (f collectorOptionFunc) apply(c *Collector) { f(c) }

// WithRetention sets how long stat rows are kept. Zero disables pruning.
func WithRetention(d time.Duration) CollectorOption {
	return collectorOptionFunc(func(c *Collector) {
		c.retention = d
	})
}

// NewCollector creates a Collector for the given queue and stats store.
func NewCollector(q *queue.BuildQueue, store Store, opts ...CollectorOption) *Collector {
	c := &Collector{
		queue:     q,
		store:     store,
		retention: 7 * 24 * time.Hour,
		ready:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt.apply(c)
	}
	return c
}

// WaitReady blocks until the collector has subscribed to queue events.
func (c *Collector) WaitReady() {
	<-c.ready
}

// Start runs the event listener and the per-minute flush/snapshot/prune
// cycle. Blocks until ctx is cancelled; pending counters are flushed on the
// way out.
func (c *Collector) Start(ctx context.Context) {
	events := c.queue.Events()
	defer c.queue.Unsubscribe(events)

	c.readyOnce.Do(func() { close(c.ready) })

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			c.Flush(flushCtx)
			cancel()
			return
		case e := <-events:
			c.handleEvent(e)
		case <-ticker.C:
			c.Flush(ctx)
			c.snapshot(ctx)
			c.prune(ctx)
		}
	}
}

func (c *Collector) handleEvent(e core.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.(type) {
	case *core.BuildSucceeded:
		c.counters.succeeded++
	case *core.BuildFailed:
		c.counters.failed++
	case *core.BuildRequeued:
		c.counters.requeued++
	}
}

// Flush writes accumulated counters into the current minute bucket.
func (c *Collector) Flush(ctx context.Context) {
	c.mu.Lock()
	batch := c.counters
	c.counters = counters{}
	c.mu.Unlock()

	if batch == (counters{}) {
		return
	}
	_ = c.store.AddCounters(ctx, time.Now().Truncate(time.Minute),
		batch.succeeded, batch.failed, batch.requeued)
}

func (c *Collector) snapshot(ctx context.Context) {
	depth, err := c.queue.Stats(ctx)
	if err != nil {
		return
	}
	_ = c.store.SnapshotDepth(ctx, time.Now().Truncate(time.Minute),
		depth.Queued, depth.Running)
}

func (c *Collector) prune(ctx context.Context) {
	if c.retention > 0 {
		_, _ = c.store.Prune(ctx, time.Now().Add(-c.retention))
	}
}

package cache

import (
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// PollTarget is the refresh path a poll tick drives.
type PollTarget interface {
	Poll(key string)
}

// Poller schedules a periodic refresh per cache key while that key has
// subscribers. Each key has at most one active job, tagged with the key so
// it can be removed synchronously when the last subscriber leaves.
type Poller struct {
	scheduler *gocron.Scheduler
	target    PollTarget
	interval  time.Duration
	logger    *zap.Logger

	mu     sync.Mutex
	active map[string]bool
}

// NewPoller creates a Poller. Call Run once before use and Shutdown on exit.
func NewPoller(interval time.Duration, target PollTarget, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	s := gocron.NewScheduler(time.UTC)
	return &Poller{
		scheduler: s,
		target:    target,
		interval:  interval,
		logger:    logger,
		active:    make(map[string]bool),
	}
}

// Run starts the underlying scheduler asynchronously.
func (p *Poller) Run() {
	p.scheduler.StartAsync()
}

// Start schedules the refresh job for a key. Idempotent: a key that already
// has a job keeps it.
func (p *Poller) Start(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active[key] {
		return
	}

	// Duration jobs run immediately by default. The subscribe path already
	// fetched, so the first tick must land one interval later.
	_, err := p.scheduler.Every(p.interval).WaitForSchedule().Tag(key).Do(func() {
		p.target.Poll(key)
	})
	if err != nil {
		p.logger.Error("failed to schedule poll job", zap.String("key", key), zap.Error(err))
		return
	}
	p.active[key] = true
	p.logger.Debug("poll timer started", zap.String("key", key))
}

// Stop removes the refresh job for a key. After Stop returns, no further
// ticks fire for the key.
func (p *Poller) Stop(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active[key] {
		return
	}
	if err := p.scheduler.RemoveByTag(key); err != nil {
		p.logger.Warn("failed to remove poll job", zap.String("key", key), zap.Error(err))
	}
	delete(p.active, key)
	p.logger.Debug("poll timer stopped", zap.String("key", key))
}

// Active reports whether a key currently has a poll job.
func (p *Poller) Active(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active[key]
}

// Shutdown stops the scheduler and all jobs.
func (p *Poller) Shutdown() {
	p.scheduler.Stop()
}

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dl-alexandre/ghimg/internal/logging"
)

// Sweeper is anything with expired records to reclaim
type Sweeper interface {
	Name() string
	Cleanup() int
}

// Janitor runs Cleanup on its caches at a fixed interval until stopped
type Janitor struct {
	interval time.Duration
	caches   []Sweeper
	logger   logging.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewJanitor creates a janitor; it does nothing until Start
func NewJanitor(interval time.Duration, logger logging.Logger, caches ...Sweeper) *Janitor {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Janitor{
		interval: interval,
		caches:   caches,
		logger:   logger,
	}
}

// Start launches the sweep loop. It returns immediately; calling Start on a
// running janitor or with a non-positive interval is a no-op.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running || j.interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})
	j.running = true

	go j.loop(ctx, j.done)
}

func (j *Janitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Stop ends the loop and waits for an in-progress sweep to finish
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	cancel, done := j.cancel, j.done
	j.running = false
	j.mu.Unlock()

	cancel()
	<-done
}

// Sweep runs Cleanup on every cache once and returns the total removed
func (j *Janitor) Sweep() int {
	total := 0
	for _, c := range j.caches {
		removed := c.Cleanup()
		if removed > 0 {
			j.logger.Debug("Cache sweep removed expired records",
				logging.F("cache", c.Name()),
				logging.F("removed", removed),
			)
		}
		total += removed
	}
	if total > 0 {
		j.logger.Info("Cache sweep complete", logging.F("removed", total))
	}
	return total
}

package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultFlushInterval is the delivery cadence used when none is configured.
const DefaultFlushInterval = 3 * time.Second

var errMissingRegistry = errors.New("notifications: connection registry required")

// SchedulerConfig describes the delivery loop.
type SchedulerConfig struct {
	Registry *Registry
	Interval time.Duration
	Logger   *zap.Logger
}

// Scheduler periodically flushes pending queues to their connections.
type Scheduler struct {
	registry *Registry
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler constructs a stopped scheduler.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Registry == nil {
		return nil, errMissingRegistry
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{registry: cfg.Registry, interval: interval, logger: logger}, nil
}

// Start launches the ticker loop. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(loopCtx, s.done)
	s.logger.Info("notification delivery started", zap.Duration("interval", s.interval))
}

// Stop cancels the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("notification delivery stopped")
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Flush runs one delivery cycle and returns the number of events delivered.
// A batch rejected by a connection that has since been replaced moves to the
// replacement for the next cycle; other failures are logged and skipped.
func (s *Scheduler) Flush() int {
	delivered := 0
	for _, batch := range s.registry.Drain() {
		if err := batch.Connection.Transport().Deliver(batch.Notifications); err != nil {
			if s.registry.Requeue(batch) {
				s.logger.Debug("notification batch moved to replacement connection",
					zap.String("user_id", batch.Connection.UserID()),
					zap.Int("notifications", len(batch.Notifications)),
				)
				continue
			}
			s.logger.Warn("notification delivery failed",
				zap.String("user_id", batch.Connection.UserID()),
				zap.Int("notifications", len(batch.Notifications)),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	return delivered
}

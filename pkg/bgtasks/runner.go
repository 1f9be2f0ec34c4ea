package bgtasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Runner drives a Store: it claims eligible task rows on an interval, hands
// them to a fixed pool of workers and finalizes each row as success, failed or
// released-for-retry.
type Runner struct {
	store    Store
	opts     RunnerOptions
	runnerID string

	mu       sync.RWMutex
	handlers map[string]Handler

	// opts.Rand is shared by every worker goroutine.
	randMu sync.Mutex

	nudge chan struct{}

	m *metrics
}

func NewRunner(store Store, opts RunnerOptions) (*Runner, error) {
	if store == nil {
		return nil, invalidConfig("store is required")
	}
	opts.setDefaults()

	hostname, _ := os.Hostname()
	r := &Runner{
		store:    store,
		opts:     opts,
		runnerID: fmt.Sprintf("%s-%d-%s", hostname, os.Getpid(), uuid.NewString()[:8]),
		handlers: make(map[string]Handler),
		nudge:    make(chan struct{}, 1),
		m:        getMetrics(),
	}
	if r.opts.Logger == nil {
		r.opts.Logger = nopLogger()
	}
	return r, nil
}

// Register binds a task type to its handler. Must be called before Run.
func (r *Runner) Register(taskType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[taskType] = h
}

func (r *Runner) RunnerID() string { return r.runnerID }

// Nudge wakes the poll loop ahead of its next tick, so freshly enqueued tasks
// start without waiting out the interval. Safe to call from any goroutine;
// extra nudges coalesce.
func (r *Runner) Nudge() {
	select {
	case r.nudge <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if ctx == nil {
		return invalidConfig("ctx is required")
	}

	work := make(chan Record)
	var wg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range work {
				r.executeOne(ctx, rec)
			}
		}()
	}

	err := r.pollLoop(ctx, work)
	close(work)
	wg.Wait()
	return err
}

func (r *Runner) pollLoop(ctx context.Context, work chan<- Record) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	nextDepthAt := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-r.nudge:
		}

		if time.Now().After(nextDepthAt) {
			if depth, err := r.store.CountPending(ctx); err == nil {
				r.m.pending.Set(float64(depth))
			} else {
				r.opts.Logger.WithError(err).Debug("bgtasks: observe queue depth failed")
			}
			nextDepthAt = time.Now().Add(r.opts.ObserveDepthEvery)
		}

		now := time.Now()
		claimed, err := r.store.Claim(ctx, now, now.Add(-r.opts.LockTTL), r.opts.BatchSize, r.runnerID)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.opts.Logger.WithError(err).Warn("bgtasks: claim failed")
			continue
		}

		for _, rec := range claimed {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case work <- rec:
			}
		}
	}
}

func (r *Runner) executeOne(ctx context.Context, rec Record) {
	log := r.opts.Logger.WithField("task_id", rec.ID).WithField("task_type", rec.Type).WithField("trial", rec.Trial)

	stopHeartbeat := r.startHeartbeat(ctx, rec.ID)
	defer stopHeartbeat()

	start := time.Now()
	result, err := r.dispatch(ctx, rec)
	latency := time.Since(start)

	if err == nil {
		r.m.runTotal.WithLabelValues(rec.Type, "success").Inc()
		r.m.runLatency.WithLabelValues(rec.Type, "success").Observe(latency.Seconds())
		if sErr := r.store.Succeed(ctx, rec.ID, result); sErr != nil {
			log.WithError(sErr).Warn("bgtasks: success update failed")
		}
		log.Info("bgtasks: task succeeded")
		r.settled(ctx, rec, "success")
		return
	}

	r.m.runTotal.WithLabelValues(rec.Type, "failure").Inc()
	r.m.runLatency.WithLabelValues(rec.Type, "failure").Observe(latency.Seconds())

	lastErr := truncateError(err, r.opts.LastErrorMaxLen)

	if IsPermanent(err) || rec.Trial >= r.opts.MaxAttempts {
		r.m.failedTotal.WithLabelValues(rec.Type).Inc()
		failure := FailureResult{
			Message: err.Error(),
			Trace:   fmt.Sprintf("%+v", err),
		}
		if fErr := r.store.Fail(ctx, rec.ID, failure); fErr != nil {
			log.WithError(fErr).Warn("bgtasks: failure update failed")
		}
		log.WithError(err).Error("bgtasks: task settled failed")
		r.settled(ctx, rec, "failed")
		return
	}

	r.m.retryTotal.WithLabelValues(rec.Type).Inc()
	next := time.Now().Add(backoff(rec.Trial, r.opts.MaxBackoff) + r.jitter())
	if rErr := r.store.Release(ctx, rec.ID, lastErr, next); rErr != nil {
		log.WithError(rErr).Warn("bgtasks: release failed")
	}
	log.WithError(err).Warn("bgtasks: task released for retry")
}

func (r *Runner) dispatch(ctx context.Context, rec Record) (result interface{}, err error) {
	r.mu.RLock()
	handler, ok := r.handlers[rec.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, Permanent(fmt.Errorf("%w: %q", ErrUnknownTaskType, rec.Type))
	}

	defer func() {
		if p := recover(); p != nil {
			err = Permanent(fmt.Errorf("task handler panicked: %v", p))
		}
	}()
	return handler(ctx, rec)
}

func (r *Runner) startHeartbeat(ctx context.Context, id uuid.UUID) func() {
	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	interval := r.opts.LockTTL / 3
	if interval <= 0 {
		interval = time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.store.Heartbeat(ctx, id, time.Now()); err != nil {
					r.opts.Logger.WithError(err).WithField("task_id", id).Debug("bgtasks: heartbeat failed")
				}
			}
		}
	}()
	return stop
}

func (r *Runner) settled(ctx context.Context, rec Record, state string) {
	if r.opts.OnSettle == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.opts.Logger.WithField("task_id", rec.ID).Errorf("bgtasks: settle hook panicked: %v", p)
		}
	}()
	r.opts.OnSettle(ctx, rec, state)
}

func (r *Runner) jitter() time.Duration {
	r.randMu.Lock()
	defer r.randMu.Unlock()
	return jitter(r.opts.Rand, r.opts.JitterMax)
}

func truncateError(err error, maxLen int) string {
	s := err.Error()
	if maxLen > 0 && len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}

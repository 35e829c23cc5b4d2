package reminders

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// NotifyFunc delivers a due reminder. A non-nil error leaves the
// reminder unfired so the next poll retries it.
type NotifyFunc func(ctx context.Context, r *Reminder) error

// Dispatcher polls the store for due reminders and hands them to the
// notify callback, marking each fired only after successful delivery.
type Dispatcher struct {
	logger   *slog.Logger
	store    *Store
	notify   NotifyFunc
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher. interval <= 0 defaults to 30s.
func NewDispatcher(logger *slog.Logger, store *Store, notify NotifyFunc, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Dispatcher{
		logger:   logger,
		store:    store,
		notify:   notify,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins polling. Reminders that came due while the process was
// down fire on the first poll.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.run(ctx)
	d.logger.Debug("reminder dispatcher started", "interval", d.interval)
}

// Stop halts polling and waits for an in-flight poll to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stopCh)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("reminder dispatcher stopped")
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.poll(ctx)
	for {
		select {
		case <-ticker.C:
			d.poll(ctx)
		case <-d.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// poll fires everything due as of now. Delivery failures are logged
// and retried on the next tick; a delivered reminder is marked fired
// so it never repeats.
func (d *Dispatcher) poll(ctx context.Context) {
	due, err := d.store.Due(time.Now())
	if err != nil {
		d.logger.Error("reminder poll failed", "error", err)
		return
	}

	for i := range due {
		r := &due[i]
		if err := d.notify(ctx, r); err != nil {
			d.logger.Warn("reminder delivery failed",
				"id", r.ID, "user", r.UserID, "error", err)
			continue
		}
		if err := d.store.MarkFired(r.ID); err != nil {
			d.logger.Error("reminder not marked fired", "id", r.ID, "error", err)
			continue
		}
		d.logger.Info("reminder fired", "id", r.ID, "user", r.UserID, "message", r.Message)
	}
}

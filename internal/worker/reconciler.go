package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/insider-one/notifications-go-client/internal/config"
	"github.com/insider-one/notifications-go-client/internal/domain"
)

// StatusStore finds stored statuses that have not reached a final state and
// records the outcome of refreshing them
type StatusStore interface {
	ListStale(ctx context.Context, before time.Time, limit int) ([]*domain.DeliveryStatus, error)
	// MarkChecked moves a status to the back of the stale queue
	MarkChecked(ctx context.Context, id uuid.UUID, at time.Time) error
	// MarkExpired stops reconciling a status, keeping its last known value
	MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Refresher re-reads a notification from the Notify API and stores the result
type Refresher interface {
	Refresh(ctx context.Context, id uuid.UUID) (*domain.DeliveryStatus, error)
}

// Reconciler polls Notify for notifications whose delivery receipt never
// arrived. It covers callbacks lost while the receiver was down.
type Reconciler struct {
	statuses  StatusStore
	refresher Refresher
	logger    *slog.Logger
	config    config.ReconcilerConfig
	now       func() time.Time

	mu         sync.Mutex
	running    bool
	wg         sync.WaitGroup
	cancelFunc context.CancelFunc
}

// NewReconciler creates a new Reconciler
func NewReconciler(
	statuses StatusStore,
	refresher Refresher,
	logger *slog.Logger,
	cfg config.ReconcilerConfig,
) *Reconciler {
	return &Reconciler{
		statuses:  statuses,
		refresher: refresher,
		logger:    logger,
		config:    cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start starts the reconcile loop
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}
	r.running = true

	ctx, r.cancelFunc = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.run(ctx)

	r.logger.Info("reconciler started",
		"interval", r.config.Interval,
		"stale_after", r.config.StaleAfter,
	)
	return nil
}

// Stop stops the reconcile loop and waits for the current pass to finish
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	if r.cancelFunc != nil {
		r.cancelFunc()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("reconciler stopped gracefully")
	case <-time.After(30 * time.Second):
		r.logger.Warn("reconciler stop timed out")
	}
}

func (r *Reconciler) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reconcile(ctx)
		}
	}
}

// Reconcile refreshes one batch of stale statuses and reports how many were
// updated
func (r *Reconciler) Reconcile(ctx context.Context) int {
	before := r.now().Add(-r.config.StaleAfter)

	stale, err := r.statuses.ListStale(ctx, before, r.config.BatchSize)
	if err != nil {
		r.logger.Error("failed to list stale statuses", "error", err)
		return 0
	}

	if len(stale) == 0 {
		return 0
	}

	r.logger.Info("reconciling stale statuses", "count", len(stale))

	refreshed := 0
	for _, s := range stale {
		if ctx.Err() != nil {
			break
		}

		updated, err := r.refresher.Refresh(ctx, s.ID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			r.requeue(ctx, s, err)
			continue
		}

		if updated.Status != s.Status {
			r.logger.Info("status reconciled",
				"notification_id", s.ID,
				"from", s.Status,
				"to", updated.Status,
			)
		}
		refreshed++
	}

	return refreshed
}

// requeue keeps a status that could not be refreshed from holding the head of
// the stale queue. Notify deletes old notifications, so a 404 is permanent.
func (r *Reconciler) requeue(ctx context.Context, s *domain.DeliveryStatus, cause error) {
	now := r.now()

	if errors.Is(cause, domain.ErrNotFound) {
		r.logger.Warn("notification no longer held by Notify, giving up",
			"notification_id", s.ID,
			"last_status", s.Status,
		)
		if err := r.statuses.MarkExpired(ctx, s.ID, now); err != nil {
			r.logger.Error("failed to mark status expired", "notification_id", s.ID, "error", err)
		}
		return
	}

	r.logger.Warn("failed to refresh status",
		"notification_id", s.ID,
		"error", cause,
	)
	if err := r.statuses.MarkChecked(ctx, s.ID, now); err != nil {
		r.logger.Error("failed to requeue status", "notification_id", s.ID, "error", err)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	notify "github.com/insider-one/notifications-go-client"
	"github.com/insider-one/notifications-go-client/internal/domain"
)

// NotificationFetcher looks up a notification on the Notify API.
// *notify.Client satisfies it.
type NotificationFetcher interface {
	GetNotificationByID(ctx context.Context, id string) (*notify.Notification, error)
}

// ReceiptRecorder receives counts of processed callbacks
type ReceiptRecorder interface {
	RecordReceipt(notificationType, status string)
	RecordReceivedText()
}

// ReceiptService records Notify callbacks and answers status lookups
type ReceiptService struct {
	statuses        domain.StatusRepository
	texts           domain.ReceivedTextRepository
	cache           domain.StatusCache
	notify          NotificationFetcher
	logger          *slog.Logger
	recorder        ReceiptRecorder
	statusBroadcast func(status *domain.DeliveryStatus)
	now             func() time.Time
}

// NewReceiptService creates a new ReceiptService. cache may be nil.
func NewReceiptService(
	statuses domain.StatusRepository,
	texts domain.ReceivedTextRepository,
	cache domain.StatusCache,
	fetcher NotificationFetcher,
	logger *slog.Logger,
) *ReceiptService {
	return &ReceiptService{
		statuses: statuses,
		texts:    texts,
		cache:    cache,
		notify:   fetcher,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetStatusBroadcast sets the function to broadcast status updates
func (s *ReceiptService) SetStatusBroadcast(fn func(status *domain.DeliveryStatus)) {
	s.statusBroadcast = fn
}

// SetRecorder sets the callback metrics recorder
func (s *ReceiptService) SetRecorder(r ReceiptRecorder) {
	s.recorder = r
}

// DeliveryReceipt is a delivery status callback sent by Notify
type DeliveryReceipt struct {
	ID               uuid.UUID
	Reference        *string
	To               string
	Status           domain.Status
	NotificationType domain.NotificationType
	TemplateID       *uuid.UUID
	TemplateVersion  *int
	CreatedAt        time.Time
	SentAt           *time.Time
	CompletedAt      *time.Time
}

func (r DeliveryReceipt) validate() error {
	var errs domain.ValidationErrors
	if r.ID == uuid.Nil {
		errs.Errors = append(errs.Errors, domain.NewValidationError("id", "id is required"))
	}
	if !r.Status.IsValid() {
		errs.Errors = append(errs.Errors, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", r.Status)))
	}
	if !r.NotificationType.IsValid() {
		errs.Errors = append(errs.Errors, domain.NewValidationError("notification_type", fmt.Sprintf("unknown notification type %q", r.NotificationType)))
	}
	if len(errs.Errors) > 0 {
		return errs
	}
	return nil
}

// RecordDeliveryReceipt stores a delivery receipt. A non-final status that
// arrives after a final one is ignored and the stored status is returned.
func (s *ReceiptService) RecordDeliveryReceipt(ctx context.Context, receipt DeliveryReceipt) (*domain.DeliveryStatus, error) {
	if err := receipt.validate(); err != nil {
		return nil, err
	}

	existing, err := s.statuses.GetByID(ctx, receipt.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to get delivery status: %w", err)
	}
	if existing != nil && !existing.Accepts(receipt.Status) {
		s.logger.Info("ignoring stale delivery receipt",
			"notification_id", receipt.ID,
			"stored_status", existing.Status,
			"received_status", receipt.Status,
		)
		return existing, nil
	}

	status := &domain.DeliveryStatus{
		ID:              receipt.ID,
		Reference:       receipt.Reference,
		Recipient:       receipt.To,
		Type:            receipt.NotificationType,
		Status:          receipt.Status,
		TemplateID:      receipt.TemplateID,
		TemplateVersion: receipt.TemplateVersion,
		CreatedAt:       receipt.CreatedAt,
		SentAt:          receipt.SentAt,
		CompletedAt:     receipt.CompletedAt,
		UpdatedAt:       s.now(),
	}
	if status.CreatedAt.IsZero() {
		status.CreatedAt = status.UpdatedAt
	}

	stored, err := s.save(ctx, status)
	if err != nil {
		return nil, err
	}

	if s.recorder != nil {
		s.recorder.RecordReceipt(string(stored.Type), string(stored.Status))
	}

	s.logger.Info("delivery receipt recorded",
		"notification_id", stored.ID,
		"type", stored.Type,
		"status", stored.Status,
	)

	return stored, nil
}

// RecordReceivedText stores an inbound text message. Repeated callbacks for
// the same message are accepted and ignored.
func (s *ReceiptService) RecordReceivedText(ctx context.Context, rt *domain.ReceivedText) error {
	if err := rt.Validate(); err != nil {
		return err
	}

	if err := s.texts.Create(ctx, rt); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			s.logger.Debug("duplicate received text", "id", rt.ID)
			return nil
		}
		return fmt.Errorf("failed to store received text: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordReceivedText()
	}

	s.logger.Info("received text recorded", "id", rt.ID)
	return nil
}

// GetStatus returns the last known status of a notification, checking the
// cache, then the store, then the Notify API.
func (s *ReceiptService) GetStatus(ctx context.Context, id uuid.UUID) (*domain.DeliveryStatus, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, id)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("status cache unavailable", "error", err)
		}
	}

	status, err := s.statuses.GetByID(ctx, id)
	if err == nil {
		s.cacheStatus(ctx, status)
		return status, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to get delivery status: %w", err)
	}

	return s.Refresh(ctx, id)
}

// Refresh fetches the current status from the Notify API and stores it
func (s *ReceiptService) Refresh(ctx context.Context, id uuid.UUID) (*domain.DeliveryStatus, error) {
	n, err := s.notify.GetNotificationByID(ctx, id.String())
	if err != nil {
		return nil, upstreamError(err)
	}

	status, err := statusFromNotification(n, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}

	return s.save(ctx, status)
}

// ListStatuses lists stored delivery statuses
func (s *ReceiptService) ListStatuses(ctx context.Context, filter domain.StatusFilter) (*domain.StatusListResult, error) {
	return s.statuses.List(ctx, filter)
}

// ListReceivedTexts lists stored inbound messages
func (s *ReceiptService) ListReceivedTexts(ctx context.Context, filter domain.ReceivedTextFilter) ([]*domain.ReceivedText, error) {
	return s.texts.List(ctx, filter)
}

// save upserts status, falling back to the stored status when a concurrent
// update already made it final
func (s *ReceiptService) save(ctx context.Context, status *domain.DeliveryStatus) (*domain.DeliveryStatus, error) {
	if err := s.statuses.Upsert(ctx, status); err != nil {
		if !errors.Is(err, domain.ErrStaleStatus) {
			return nil, fmt.Errorf("failed to store delivery status: %w", err)
		}
		stored, getErr := s.statuses.GetByID(ctx, status.ID)
		if getErr != nil {
			return nil, fmt.Errorf("failed to get delivery status: %w", getErr)
		}
		return stored, nil
	}

	s.cacheStatus(ctx, status)
	s.broadcastStatus(status)
	return status, nil
}

func (s *ReceiptService) cacheStatus(ctx context.Context, status *domain.DeliveryStatus) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, status); err != nil {
		s.logger.Warn("failed to cache delivery status",
			"notification_id", status.ID,
			"error", err,
		)
	}
}

// broadcastStatus broadcasts status update via WebSocket
func (s *ReceiptService) broadcastStatus(status *domain.DeliveryStatus) {
	if s.statusBroadcast != nil {
		s.statusBroadcast(status)
	}
}

func statusFromNotification(n *notify.Notification, now time.Time) (*domain.DeliveryStatus, error) {
	id, err := uuid.Parse(n.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid notification id %q: %w", n.ID, err)
	}

	status := &domain.DeliveryStatus{
		ID:          id,
		Reference:   n.Reference,
		Recipient:   n.Recipient(),
		Type:        domain.NotificationType(n.Type),
		Status:      domain.Status(n.Status),
		CreatedAt:   n.CreatedAt,
		SentAt:      n.SentAt,
		CompletedAt: n.CompletedAt,
		UpdatedAt:   now,
	}

	if templateID, err := uuid.Parse(n.Template.ID); err == nil {
		version := n.Template.Version
		status.TemplateID = &templateID
		status.TemplateVersion = &version
	}

	return status, nil
}

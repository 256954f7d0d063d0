package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NotificationType is the channel a notification was sent on
type NotificationType string

const (
	TypeEmail  NotificationType = "email"
	TypeSMS    NotificationType = "sms"
	TypeLetter NotificationType = "letter"
)

func (t NotificationType) IsValid() bool {
	switch t {
	case TypeEmail, TypeSMS, TypeLetter:
		return true
	}
	return false
}

// Status is a Notify delivery status
type Status string

const (
	StatusCreated           Status = "created"
	StatusSending           Status = "sending"
	StatusPending           Status = "pending"
	StatusAccepted          Status = "accepted"
	StatusPendingVirusCheck Status = "pending-virus-check"
	StatusSent              Status = "sent"
	StatusDelivered         Status = "delivered"
	StatusReceived          Status = "received"
	StatusPermanentFailure  Status = "permanent-failure"
	StatusTemporaryFailure  Status = "temporary-failure"
	StatusTechnicalFailure  Status = "technical-failure"
	StatusVirusScanFailed   Status = "virus-scan-failed"
	StatusValidationFailed  Status = "validation-failed"
	StatusCancelled         Status = "cancelled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusSending, StatusPending, StatusAccepted, StatusPendingVirusCheck,
		StatusSent, StatusDelivered, StatusReceived, StatusPermanentFailure, StatusTemporaryFailure,
		StatusTechnicalFailure, StatusVirusScanFailed, StatusValidationFailed, StatusCancelled:
		return true
	}
	return false
}

// IsFinal reports whether Notify will send no further updates for the status.
// "sent" is final for international text messages.
func (s Status) IsFinal() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusReceived, StatusPermanentFailure, StatusTemporaryFailure,
		StatusTechnicalFailure, StatusVirusScanFailed, StatusValidationFailed, StatusCancelled:
		return true
	}
	return false
}

// IsFailure reports whether the status means the message did not arrive.
func (s Status) IsFailure() bool {
	switch s {
	case StatusPermanentFailure, StatusTemporaryFailure, StatusTechnicalFailure,
		StatusVirusScanFailed, StatusValidationFailed:
		return true
	}
	return false
}

// DeliveryStatus is the last known status of a notification sent through Notify
type DeliveryStatus struct {
	ID              uuid.UUID        `json:"id"`
	Reference       *string          `json:"reference,omitempty"`
	Recipient       string           `json:"recipient"`
	Type            NotificationType `json:"type"`
	Status          Status           `json:"status"`
	TemplateID      *uuid.UUID       `json:"template_id,omitempty"`
	TemplateVersion *int             `json:"template_version,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	SentAt          *time.Time       `json:"sent_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Accepts reports whether next may replace the current status. Receipts can
// arrive out of order, so a final status is never replaced by a non-final one.
func (d *DeliveryStatus) Accepts(next Status) bool {
	if d.Status.IsFinal() && !next.IsFinal() {
		return false
	}
	return true
}

// IsStale reports whether a non-final status has not changed since before.
func (d *DeliveryStatus) IsStale(before time.Time) bool {
	return !d.Status.IsFinal() && d.UpdatedAt.Before(before)
}

type StatusFilter struct {
	Status    *Status
	Type      *NotificationType
	Reference *string
	Page      int
	PageSize  int
}

type StatusListResult struct {
	Statuses   []*DeliveryStatus `json:"statuses"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}

// StatusRepository stores delivery statuses
type StatusRepository interface {
	Upsert(ctx context.Context, s *DeliveryStatus) error
	GetByID(ctx context.Context, id uuid.UUID) (*DeliveryStatus, error)
	List(ctx context.Context, filter StatusFilter) (*StatusListResult, error)
	ListStale(ctx context.Context, before time.Time, limit int) ([]*DeliveryStatus, error)
}

// StatusCache caches delivery statuses. Get returns ErrNotFound on a miss.
type StatusCache interface {
	Get(ctx context.Context, id uuid.UUID) (*DeliveryStatus, error)
	Set(ctx context.Context, s *DeliveryStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

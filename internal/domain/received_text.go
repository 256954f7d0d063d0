package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReceivedText is an inbound text message forwarded by Notify
type ReceivedText struct {
	ID                uuid.UUID `json:"id"`
	SourceNumber      string    `json:"source_number"`
	DestinationNumber string    `json:"destination_number"`
	Message           string    `json:"message"`
	ReceivedAt        time.Time `json:"received_at"`
	CreatedAt         time.Time `json:"created_at"`
}

func NewReceivedText(id uuid.UUID, source, destination, message string, receivedAt time.Time) *ReceivedText {
	return &ReceivedText{
		ID:                id,
		SourceNumber:      strings.TrimSpace(source),
		DestinationNumber: strings.TrimSpace(destination),
		Message:           message,
		ReceivedAt:        receivedAt.UTC(),
		CreatedAt:         time.Now().UTC(),
	}
}

// Validate checks the fields Notify always sends
func (rt *ReceivedText) Validate() error {
	var errs ValidationErrors
	if rt.ID == uuid.Nil {
		errs.Errors = append(errs.Errors, NewValidationError("id", "id is required"))
	}
	if rt.SourceNumber == "" {
		errs.Errors = append(errs.Errors, NewValidationError("source_number", "source number is required"))
	}
	if rt.ReceivedAt.IsZero() {
		errs.Errors = append(errs.Errors, NewValidationError("date_received", "date received is required"))
	}
	if len(errs.Errors) > 0 {
		return errs
	}
	return nil
}

type ReceivedTextFilter struct {
	SourceNumber *string
	Since        *time.Time
	Limit        int
}

// ReceivedTextRepository stores inbound messages. Create returns
// ErrAlreadyExists for a message id it has already stored.
type ReceivedTextRepository interface {
	Create(ctx context.Context, rt *ReceivedText) error
	List(ctx context.Context, filter ReceivedTextFilter) ([]*ReceivedText, error)
}

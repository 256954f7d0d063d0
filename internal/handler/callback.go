package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/insider-one/notifications-go-client/internal/domain"
	"github.com/insider-one/notifications-go-client/internal/service"
)

// ReceiptStore records callbacks and answers status lookups.
// *service.ReceiptService satisfies it.
type ReceiptStore interface {
	RecordDeliveryReceipt(ctx context.Context, receipt service.DeliveryReceipt) (*domain.DeliveryStatus, error)
	RecordReceivedText(ctx context.Context, rt *domain.ReceivedText) error
	GetStatus(ctx context.Context, id uuid.UUID) (*domain.DeliveryStatus, error)
	ListStatuses(ctx context.Context, filter domain.StatusFilter) (*domain.StatusListResult, error)
	ListReceivedTexts(ctx context.Context, filter domain.ReceivedTextFilter) ([]*domain.ReceivedText, error)
}

// CallbackHandler handles the callbacks Notify posts to the service
type CallbackHandler struct {
	store    ReceiptStore
	validate *validator.Validate
}

// NewCallbackHandler creates a new CallbackHandler
func NewCallbackHandler(store ReceiptStore) *CallbackHandler {
	return &CallbackHandler{
		store:    store,
		validate: newValidator(),
	}
}

// RegisterRoutes registers callback routes
func (h *CallbackHandler) RegisterRoutes(r chi.Router) {
	r.Post("/delivery-receipts", h.DeliveryReceipt)
	r.Post("/received-texts", h.ReceivedText)
}

// DeliveryReceiptRequest is the delivery receipt callback body
type DeliveryReceiptRequest struct {
	ID               string     `json:"id" validate:"required,uuid" example:"740e5834-3a29-46b4-9a6f-16142fde533a"`
	Reference        *string    `json:"reference"`
	To               string     `json:"to" example:"07700912345"`
	Status           string     `json:"status" validate:"required" example:"delivered"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at"`
	SentAt           *time.Time `json:"sent_at"`
	NotificationType string     `json:"notification_type" validate:"required,oneof=email sms letter" example:"sms"`
	TemplateID       *string    `json:"template_id" validate:"omitempty,uuid"`
	TemplateVersion  *int       `json:"template_version" validate:"omitempty,min=1"`
}

func (req DeliveryReceiptRequest) toReceipt() service.DeliveryReceipt {
	receipt := service.DeliveryReceipt{
		ID:               uuid.MustParse(req.ID),
		Reference:        req.Reference,
		To:               req.To,
		Status:           domain.Status(req.Status),
		NotificationType: domain.NotificationType(req.NotificationType),
		TemplateVersion:  req.TemplateVersion,
		CreatedAt:        req.CreatedAt.UTC(),
		SentAt:           req.SentAt,
		CompletedAt:      req.CompletedAt,
	}
	if req.TemplateID != nil {
		id := uuid.MustParse(*req.TemplateID)
		receipt.TemplateID = &id
	}
	return receipt
}

// DeliveryReceipt stores a delivery receipt
// @Summary Delivery receipt callback
// @Description Receives delivery status updates from Notify
// @Tags callbacks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param receipt body DeliveryReceiptRequest true "Delivery receipt"
// @Success 200 {object} Response{data=domain.DeliveryStatus}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 500 {object} Response
// @Router /callbacks/delivery-receipts [post]
func (h *CallbackHandler) DeliveryReceipt(w http.ResponseWriter, r *http.Request) {
	var req DeliveryReceiptRequest
	if err := DecodeJSON(r, &req); err != nil {
		HandleError(w, err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", validationDetails(err))
		return
	}

	status, err := h.store.RecordDeliveryReceipt(r.Context(), req.toReceipt())
	if err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusOK, status)
}

// ReceivedTextRequest is the received text callback body
type ReceivedTextRequest struct {
	ID                string    `json:"id" validate:"required,uuid"`
	SourceNumber      string    `json:"source_number" validate:"required" example:"447700900111"`
	DestinationNumber string    `json:"destination_number" example:"07700900000"`
	Message           string    `json:"message" example:"Hello Notify"`
	DateReceived      time.Time `json:"date_received" validate:"required"`
}

// ReceivedText stores an inbound text message
// @Summary Received text callback
// @Description Receives text messages sent to the service's inbound number
// @Tags callbacks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param message body ReceivedTextRequest true "Received text"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 500 {object} Response
// @Router /callbacks/received-texts [post]
func (h *CallbackHandler) ReceivedText(w http.ResponseWriter, r *http.Request) {
	var req ReceivedTextRequest
	if err := DecodeJSON(r, &req); err != nil {
		HandleError(w, err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", validationDetails(err))
		return
	}

	rt := domain.NewReceivedText(
		uuid.MustParse(req.ID),
		req.SourceNumber,
		req.DestinationNumber,
		req.Message,
		req.DateReceived,
	)

	if err := h.store.RecordReceivedText(r.Context(), rt); err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]string{
		"id": rt.ID.String(),
	})
}

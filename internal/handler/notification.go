package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/insider-one/notifications-go-client/internal/domain"
)

// NotificationHandler serves stored delivery statuses and received texts
type NotificationHandler struct {
	store ReceiptStore
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(store ReceiptStore) *NotificationHandler {
	return &NotificationHandler{store: store}
}

// RegisterRoutes registers notification status routes
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.GetByID)
}

// GetByID retrieves the last known status of a notification
// @Summary Get notification status
// @Description Get the delivery status of a notification, asking Notify when it is not stored yet
// @Tags notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 200 {object} Response{data=domain.DeliveryStatus}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 502 {object} Response
// @Router /api/v1/notifications/{id} [get]
func (h *NotificationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		JSONError(w, http.StatusBadRequest, "INVALID_ID", "Invalid notification ID", nil)
		return
	}

	status, err := h.store.GetStatus(r.Context(), id)
	if err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusOK, status)
}

// List lists stored delivery statuses
// @Summary List notification statuses
// @Description List stored delivery statuses with optional filters and pagination
// @Tags notifications
// @Produce json
// @Param status query string false "Filter by status"
// @Param type query string false "Filter by notification type"
// @Param reference query string false "Filter by reference"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} Response{data=domain.StatusListResult}
// @Failure 400 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/notifications [get]
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.StatusFilter{
		Page:     1,
		PageSize: 20,
	}

	if status := r.URL.Query().Get("status"); status != "" {
		s := domain.Status(status)
		if !s.IsValid() {
			JSONError(w, http.StatusBadRequest, "INVALID_STATUS", "Invalid status", nil)
			return
		}
		filter.Status = &s
	}

	if typ := r.URL.Query().Get("type"); typ != "" {
		t := domain.NotificationType(typ)
		if !t.IsValid() {
			JSONError(w, http.StatusBadRequest, "INVALID_TYPE", "Invalid notification type", nil)
			return
		}
		filter.Type = &t
	}

	if reference := r.URL.Query().Get("reference"); reference != "" {
		filter.Reference = &reference
	}

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			filter.Page = page
		}
	}

	if pageSizeStr := r.URL.Query().Get("page_size"); pageSizeStr != "" {
		if pageSize, err := strconv.Atoi(pageSizeStr); err == nil && pageSize > 0 && pageSize <= 100 {
			filter.PageSize = pageSize
		}
	}

	result, err := h.store.ListStatuses(r.Context(), filter)
	if err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusOK, result)
}

// ListReceivedTexts lists stored inbound text messages
// @Summary List received texts
// @Description List inbound text messages, newest first
// @Tags received-texts
// @Produce json
// @Param source_number query string false "Filter by sender"
// @Param since query string false "Only messages received at or after (RFC3339)"
// @Param limit query int false "Maximum number of messages" default(50)
// @Success 200 {object} Response{data=[]domain.ReceivedText}
// @Failure 400 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/received-texts [get]
func (h *NotificationHandler) ListReceivedTexts(w http.ResponseWriter, r *http.Request) {
	var filter domain.ReceivedTextFilter

	if source := r.URL.Query().Get("source_number"); source != "" {
		filter.SourceNumber = &source
	}

	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			JSONError(w, http.StatusBadRequest, "INVALID_SINCE", "Invalid since format (use RFC3339)", nil)
			return
		}
		filter.Since = &since
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}

	texts, err := h.store.ListReceivedTexts(r.Context(), filter)
	if err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"count":          len(texts),
		"received_texts": texts,
	})
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	notify "github.com/insider-one/notifications-go-client"
	"github.com/insider-one/notifications-go-client/internal/domain"
	"github.com/insider-one/notifications-go-client/internal/service"
)

// TemplateHandler handles template HTTP requests
type TemplateHandler struct {
	service *service.TemplateService
}

// NewTemplateHandler creates a new TemplateHandler
func NewTemplateHandler(service *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{service: service}
}

// RegisterRoutes registers template routes
func (h *TemplateHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.GetByID)
	r.Post("/{id}/preview", h.Preview)
}

// List retrieves all templates
// @Summary List templates
// @Description Get the latest version of every template of the service
// @Tags templates
// @Produce json
// @Param type query string false "email, sms or letter"
// @Success 200 {object} Response{data=[]notify.Template}
// @Failure 400 {object} Response
// @Failure 502 {object} Response
// @Router /api/v1/templates [get]
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	templateType := domain.NotificationType(r.URL.Query().Get("type"))

	templates, err := h.service.List(r.Context(), templateType)
	if err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusOK, templates)
}

// GetByID retrieves a template by ID
// @Summary Get template by ID
// @Description Get a template, or one version of it
// @Tags templates
// @Produce json
// @Param id path string true "Template ID"
// @Param version query int false "Template version"
// @Success 200 {object} Response{data=notify.Template}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 502 {object} Response
// @Router /api/v1/templates/{id} [get]
func (h *TemplateHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		JSONError(w, http.StatusBadRequest, "INVALID_ID", "Invalid template ID", nil)
		return
	}

	version := 0
	if versionStr := r.URL.Query().Get("version"); versionStr != "" {
		version, err = strconv.Atoi(versionStr)
		if err != nil || version < 1 {
			JSONError(w, http.StatusBadRequest, "INVALID_VERSION", "Version must be a positive integer", nil)
			return
		}
	}

	template, err := h.service.GetByID(r.Context(), id, version)
	if err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusOK, template)
}

// PreviewRequest represents a request to preview a template
type PreviewRequest struct {
	Personalisation notify.Personalisation `json:"personalisation"`
}

// Preview renders a template with personalisation
// @Summary Preview template
// @Description Render a template with the given personalisation
// @Tags templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param request body PreviewRequest true "Personalisation"
// @Success 200 {object} Response{data=notify.TemplatePreview}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 502 {object} Response
// @Router /api/v1/templates/{id}/preview [post]
func (h *TemplateHandler) Preview(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		JSONError(w, http.StatusBadRequest, "INVALID_ID", "Invalid template ID", nil)
		return
	}

	var req PreviewRequest
	if err := DecodeJSON(r, &req); err != nil {
		HandleError(w, err)
		return
	}

	preview, err := h.service.Preview(r.Context(), id, req.Personalisation)
	if err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusOK, preview)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	notify "github.com/insider-one/notifications-go-client"
	"github.com/insider-one/notifications-go-client/internal/domain"
)

// TemplateSource reads templates from the Notify API. *notify.Client
// satisfies it.
type TemplateSource interface {
	GetTemplate(ctx context.Context, id string) (*notify.Template, error)
	GetTemplateVersion(ctx context.Context, id string, version int) (*notify.Template, error)
	GetAllTemplates(ctx context.Context, templateType string) ([]notify.Template, error)
	PostTemplatePreview(ctx context.Context, id string, personalisation notify.Personalisation) (*notify.TemplatePreview, error)
}

// TemplateService exposes the service's Notify templates
type TemplateService struct {
	source TemplateSource
	logger *slog.Logger
}

// NewTemplateService creates a new TemplateService
func NewTemplateService(source TemplateSource, logger *slog.Logger) *TemplateService {
	return &TemplateService{
		source: source,
		logger: logger,
	}
}

// List retrieves the latest version of every template, optionally of one type
func (s *TemplateService) List(ctx context.Context, templateType domain.NotificationType) ([]notify.Template, error) {
	if templateType != "" && !templateType.IsValid() {
		return nil, domain.NewValidationError("type", "type must be one of email, sms, letter")
	}

	templates, err := s.source.GetAllTemplates(ctx, string(templateType))
	if err != nil {
		return nil, upstreamError(err)
	}
	return templates, nil
}

// GetByID retrieves a template, or one version of it when version > 0
func (s *TemplateService) GetByID(ctx context.Context, id uuid.UUID, version int) (*notify.Template, error) {
	var (
		template *notify.Template
		err      error
	)
	if version > 0 {
		template, err = s.source.GetTemplateVersion(ctx, id.String(), version)
	} else {
		template, err = s.source.GetTemplate(ctx, id.String())
	}
	if err != nil {
		return nil, upstreamError(err)
	}
	return template, nil
}

// Preview renders a template. Placeholders without a value are reported
// before anything is sent to Notify.
func (s *TemplateService) Preview(ctx context.Context, id uuid.UUID, personalisation notify.Personalisation) (*notify.TemplatePreview, error) {
	template, err := s.GetByID(ctx, id, 0)
	if err != nil {
		return nil, err
	}

	if missing := template.MissingPersonalisation(personalisation); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", domain.ErrMissingVariables, missing)
	}

	preview, err := s.source.PostTemplatePreview(ctx, id.String(), personalisation)
	if err != nil {
		return nil, upstreamError(err)
	}

	s.logger.Debug("template previewed",
		"template_id", id,
		"version", preview.Version,
	)

	return preview, nil
}

// upstreamError maps client errors onto domain errors
func upstreamError(err error) error {
	var notFound *notify.NotFoundError
	if errors.As(err, &notFound) {
		return domain.ErrNotFound
	}
	var httpErr *notify.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", domain.ErrRateLimitExceeded, httpErr.Message())
	}
	var validation *notify.ValidationError
	if errors.As(err, &validation) {
		return domain.NewValidationError(validation.Field, validation.Message)
	}
	return fmt.Errorf("%w: %w", domain.ErrUpstream, err)
}

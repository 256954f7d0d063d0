package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	notify "github.com/insider-one/notifications-go-client"
	"github.com/insider-one/notifications-go-client/internal/domain"
)

// MockTemplateSource is a mock implementation of TemplateSource
type MockTemplateSource struct {
	mock.Mock
}

func (m *MockTemplateSource) GetTemplate(ctx context.Context, id string) (*notify.Template, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notify.Template), args.Error(1)
}

func (m *MockTemplateSource) GetTemplateVersion(ctx context.Context, id string, version int) (*notify.Template, error) {
	args := m.Called(ctx, id, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notify.Template), args.Error(1)
}

func (m *MockTemplateSource) GetAllTemplates(ctx context.Context, templateType string) ([]notify.Template, error) {
	args := m.Called(ctx, templateType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]notify.Template), args.Error(1)
}

func (m *MockTemplateSource) PostTemplatePreview(ctx context.Context, id string, personalisation notify.Personalisation) (*notify.TemplatePreview, error) {
	args := m.Called(ctx, id, personalisation)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notify.TemplatePreview), args.Error(1)
}

func newTemplateService() (*TemplateService, *MockTemplateSource) {
	source := new(MockTemplateSource)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTemplateService(source, logger), source
}

func TestTemplateService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("filters by type", func(t *testing.T) {
		service, source := newTemplateService()
		templates := []notify.Template{{ID: uuid.NewString(), Type: notify.TypeSMS}}
		source.On("GetAllTemplates", ctx, "sms").Return(templates, nil).Once()

		got, err := service.List(ctx, domain.TypeSMS)

		require.NoError(t, err)
		assert.Equal(t, templates, got)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		service, source := newTemplateService()

		_, err := service.List(ctx, domain.NotificationType("push"))

		var validationErr domain.ValidationError
		assert.ErrorAs(t, err, &validationErr)
		source.AssertNotCalled(t, "GetAllTemplates", mock.Anything, mock.Anything)
	})

	t.Run("rate limited upstream", func(t *testing.T) {
		service, source := newTemplateService()
		source.On("GetAllTemplates", ctx, "").Return(nil, &notify.HTTPError{
			StatusCode: http.StatusTooManyRequests,
			Errors:     []notify.ErrorDetail{{Error: "RateLimitError", Message: "Exceeded rate limit"}},
		}).Once()

		_, err := service.List(ctx, "")

		assert.ErrorIs(t, err, domain.ErrRateLimitExceeded)
	})
}

func TestTemplateService_GetByID(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("latest", func(t *testing.T) {
		service, source := newTemplateService()
		source.On("GetTemplate", ctx, id.String()).Return(&notify.Template{ID: id.String(), Version: 4}, nil).Once()

		got, err := service.GetByID(ctx, id, 0)

		require.NoError(t, err)
		assert.Equal(t, 4, got.Version)
	})

	t.Run("specific version", func(t *testing.T) {
		service, source := newTemplateService()
		source.On("GetTemplateVersion", ctx, id.String(), 2).Return(&notify.Template{ID: id.String(), Version: 2}, nil).Once()

		got, err := service.GetByID(ctx, id, 2)

		require.NoError(t, err)
		assert.Equal(t, 2, got.Version)
	})

	t.Run("not found", func(t *testing.T) {
		service, source := newTemplateService()
		source.On("GetTemplate", ctx, id.String()).Return(nil, &notify.NotFoundError{
			HTTPError: notify.HTTPError{StatusCode: http.StatusNotFound},
		}).Once()

		_, err := service.GetByID(ctx, id, 0)

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestTemplateService_Preview(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	template := &notify.Template{ID: id.String(), Type: notify.TypeSMS, Body: "Hi ((name)), code ((code))"}

	t.Run("missing personalisation", func(t *testing.T) {
		service, source := newTemplateService()
		source.On("GetTemplate", ctx, id.String()).Return(template, nil).Once()

		_, err := service.Preview(ctx, id, notify.Personalisation{"name": "Ada"})

		assert.ErrorIs(t, err, domain.ErrMissingVariables)
		assert.Contains(t, err.Error(), "code")
		source.AssertNotCalled(t, "PostTemplatePreview", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("renders", func(t *testing.T) {
		service, source := newTemplateService()
		p := notify.Personalisation{"name": "Ada", "code": "123"}
		source.On("GetTemplate", ctx, id.String()).Return(template, nil).Once()
		source.On("PostTemplatePreview", ctx, id.String(), p).Return(&notify.TemplatePreview{
			ID:   id.String(),
			Body: "Hi Ada, code 123",
		}, nil).Once()

		preview, err := service.Preview(ctx, id, p)

		require.NoError(t, err)
		assert.Equal(t, "Hi Ada, code 123", preview.Body)
		source.AssertExpectations(t)
	})
}

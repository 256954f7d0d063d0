package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	notify "github.com/insider-one/notifications-go-client"
	"github.com/insider-one/notifications-go-client/internal/domain"
	"github.com/insider-one/notifications-go-client/internal/notifytest"
	"github.com/insider-one/notifications-go-client/internal/service"
)

// MockReceiptStore is a mock implementation of ReceiptStore
type MockReceiptStore struct {
	mock.Mock
}

func (m *MockReceiptStore) RecordDeliveryReceipt(ctx context.Context, receipt service.DeliveryReceipt) (*domain.DeliveryStatus, error) {
	args := m.Called(ctx, receipt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeliveryStatus), args.Error(1)
}

func (m *MockReceiptStore) RecordReceivedText(ctx context.Context, rt *domain.ReceivedText) error {
	args := m.Called(ctx, rt)
	return args.Error(0)
}

func (m *MockReceiptStore) GetStatus(ctx context.Context, id uuid.UUID) (*domain.DeliveryStatus, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeliveryStatus), args.Error(1)
}

func (m *MockReceiptStore) ListStatuses(ctx context.Context, filter domain.StatusFilter) (*domain.StatusListResult, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatusListResult), args.Error(1)
}

func (m *MockReceiptStore) ListReceivedTexts(ctx context.Context, filter domain.ReceivedTextFilter) ([]*domain.ReceivedText, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ReceivedText), args.Error(1)
}

type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *Error          `json:"error"`
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) testResponse {
	t.Helper()

	var resp testResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"wrapped not found", fmt.Errorf("lookup: %w", domain.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"missing personalisation", fmt.Errorf("%w: [name]", domain.ErrMissingVariables), http.StatusBadRequest, "MISSING_PERSONALISATION"},
		{"rate limited", domain.ErrRateLimitExceeded, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"upstream", fmt.Errorf("%w: boom", domain.ErrUpstream), http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"validation", domain.NewValidationError("type", "bad"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"validation list", domain.ValidationErrors{Errors: []domain.ValidationError{{Field: "id"}}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeResponse(t, rec)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestCallbackHandler_DeliveryReceipt(t *testing.T) {
	id := uuid.New()
	templateID := uuid.New()

	newRouter := func(store ReceiptStore) http.Handler {
		r := chi.NewRouter()
		NewCallbackHandler(store).RegisterRoutes(r)
		return r
	}

	t.Run("stores receipt", func(t *testing.T) {
		store := new(MockReceiptStore)
		body := fmt.Sprintf(`{
			"id": %q,
			"reference": "order-7",
			"to": "07700912345",
			"status": "delivered",
			"created_at": "2024-03-01T10:00:00.000000Z",
			"completed_at": "2024-03-01T10:00:05.000000Z",
			"sent_at": "2024-03-01T10:00:01.000000Z",
			"notification_type": "sms",
			"template_id": %q,
			"template_version": 2,
			"added_later": true
		}`, id, templateID)

		store.On("RecordDeliveryReceipt", mock.Anything, mock.MatchedBy(func(r service.DeliveryReceipt) bool {
			return r.ID == id &&
				r.Status == domain.StatusDelivered &&
				r.NotificationType == domain.TypeSMS &&
				r.TemplateID != nil && *r.TemplateID == templateID &&
				r.Reference != nil && *r.Reference == "order-7" &&
				r.CompletedAt != nil
		})).Return(&domain.DeliveryStatus{ID: id, Status: domain.StatusDelivered}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/delivery-receipts", strings.NewReader(body))
		rec := httptest.NewRecorder()
		newRouter(store).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		resp := decodeResponse(t, rec)
		assert.True(t, resp.Success)
		store.AssertExpectations(t)
	})

	t.Run("invalid payload", func(t *testing.T) {
		store := new(MockReceiptStore)
		body := `{"id": "not-a-uuid", "status": "delivered", "notification_type": "fax"}`

		req := httptest.NewRequest(http.MethodPost, "/delivery-receipts", strings.NewReader(body))
		rec := httptest.NewRecorder()
		newRouter(store).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)

		details, err := json.Marshal(resp.Error.Details)
		require.NoError(t, err)
		assert.Contains(t, string(details), `"field":"id"`)
		assert.Contains(t, string(details), `"field":"notification_type"`)
		store.AssertNotCalled(t, "RecordDeliveryReceipt", mock.Anything, mock.Anything)
	})

	t.Run("malformed json", func(t *testing.T) {
		store := new(MockReceiptStore)

		req := httptest.NewRequest(http.MethodPost, "/delivery-receipts", strings.NewReader(`{"id":`))
		rec := httptest.NewRecorder()
		newRouter(store).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown status from service", func(t *testing.T) {
		store := new(MockReceiptStore)
		body := fmt.Sprintf(`{"id": %q, "status": "queued", "notification_type": "email"}`, id)

		store.On("RecordDeliveryReceipt", mock.Anything, mock.Anything).
			Return(nil, domain.ValidationErrors{Errors: []domain.ValidationError{domain.NewValidationError("status", "unknown status")}}).Once()

		req := httptest.NewRequest(http.MethodPost, "/delivery-receipts", strings.NewReader(body))
		rec := httptest.NewRecorder()
		newRouter(store).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCallbackHandler_ReceivedText(t *testing.T) {
	id := uuid.New()
	store := new(MockReceiptStore)
	r := chi.NewRouter()
	NewCallbackHandler(store).RegisterRoutes(r)

	body := fmt.Sprintf(`{
		"id": %q,
		"source_number": " 447700900111 ",
		"destination_number": "07700900000",
		"message": "Hello",
		"date_received": "2024-03-01T10:00:00.000000Z"
	}`, id)

	store.On("RecordReceivedText", mock.Anything, mock.MatchedBy(func(rt *domain.ReceivedText) bool {
		return rt.ID == id &&
			rt.SourceNumber == "447700900111" &&
			rt.ReceivedAt.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	})).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/received-texts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	store.AssertExpectations(t)
}

func TestNotificationHandler(t *testing.T) {
	newRouter := func(store ReceiptStore) http.Handler {
		h := NewNotificationHandler(store)
		r := chi.NewRouter()
		r.Route("/notifications", h.RegisterRoutes)
		r.Get("/received-texts", h.ListReceivedTexts)
		return r
	}

	t.Run("get by id", func(t *testing.T) {
		store := new(MockReceiptStore)
		id := uuid.New()
		store.On("GetStatus", mock.Anything, id).Return(&domain.DeliveryStatus{ID: id, Status: domain.StatusSending}, nil).Once()

		rec := httptest.NewRecorder()
		newRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications/"+id.String(), nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		var status domain.DeliveryStatus
		require.NoError(t, json.Unmarshal(decodeResponse(t, rec).Data, &status))
		assert.Equal(t, domain.StatusSending, status.Status)
	})

	t.Run("get errors", func(t *testing.T) {
		tests := []struct {
			name       string
			path       string
			err        error
			wantStatus int
		}{
			{"invalid id", "/notifications/nope", nil, http.StatusBadRequest},
			{"not found", "/notifications/" + uuid.NewString(), domain.ErrNotFound, http.StatusNotFound},
			{"upstream", "/notifications/" + uuid.NewString(), domain.ErrUpstream, http.StatusBadGateway},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				store := new(MockReceiptStore)
				if tt.err != nil {
					store.On("GetStatus", mock.Anything, mock.Anything).Return(nil, tt.err).Once()
				}

				rec := httptest.NewRecorder()
				newRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

				assert.Equal(t, tt.wantStatus, rec.Code)
			})
		}
	})

	t.Run("list parses filters", func(t *testing.T) {
		store := new(MockReceiptStore)
		status := domain.StatusDelivered
		typ := domain.TypeEmail
		ref := "abc"
		want := domain.StatusFilter{Status: &status, Type: &typ, Reference: &ref, Page: 2, PageSize: 50}

		store.On("ListStatuses", mock.Anything, want).Return(&domain.StatusListResult{Page: 2, PageSize: 50}, nil).Once()

		rec := httptest.NewRecorder()
		newRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/notifications/?status=delivered&type=email&reference=abc&page=2&page_size=50", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		store.AssertExpectations(t)
	})

	t.Run("list rejects unknown status", func(t *testing.T) {
		store := new(MockReceiptStore)

		rec := httptest.NewRecorder()
		newRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications/?status=lost", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("received texts", func(t *testing.T) {
		store := new(MockReceiptStore)
		source := "447700900111"
		since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		want := domain.ReceivedTextFilter{SourceNumber: &source, Since: &since, Limit: 10}

		store.On("ListReceivedTexts", mock.Anything, want).Return([]*domain.ReceivedText{{ID: uuid.New()}}, nil).Once()

		rec := httptest.NewRecorder()
		newRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/received-texts?source_number=447700900111&since=2024-01-01T00:00:00Z&limit=10", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		var data struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(decodeResponse(t, rec).Data, &data))
		assert.Equal(t, 1, data.Count)
	})

	t.Run("received texts bad since", func(t *testing.T) {
		store := new(MockReceiptStore)

		rec := httptest.NewRecorder()
		newRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/received-texts?since=yesterday", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTemplateHandler(t *testing.T) {
	srv := notifytest.NewServer(t)
	client, err := notify.New(srv.APIKey, notify.WithBaseURL(srv.URL))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	NewTemplateHandler(service.NewTemplateService(client, logger)).RegisterRoutes(r)

	tmpl := srv.AddTemplate(notifytest.Template{Type: notify.TypeSMS, Body: "Hi ((name))"})
	srv.AddTemplate(notifytest.Template{ID: tmpl.ID, Type: notify.TypeSMS, Body: "Hello ((name))"})

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"list", http.MethodGet, "/?type=sms", "", http.StatusOK, tmpl.ID},
		{"list bad type", http.MethodGet, "/?type=fax", "", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"latest", http.MethodGet, "/" + tmpl.ID, "", http.StatusOK, "Hello ((name))"},
		{"version", http.MethodGet, "/" + tmpl.ID + "?version=1", "", http.StatusOK, "Hi ((name))"},
		{"bad version", http.MethodGet, "/" + tmpl.ID + "?version=zero", "", http.StatusBadRequest, "INVALID_VERSION"},
		{"unknown", http.MethodGet, "/" + uuid.NewString(), "", http.StatusNotFound, "NOT_FOUND"},
		{"preview", http.MethodPost, "/" + tmpl.ID + "/preview", `{"personalisation":{"name":"Ada"}}`, http.StatusOK, "Hello Ada"},
		{"preview missing", http.MethodPost, "/" + tmpl.ID + "/preview", `{"personalisation":{}}`, http.StatusBadRequest, "MISSING_PERSONALISATION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, body))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestHealthHandler(t *testing.T) {
	ok := CheckerFunc(func(context.Context) error { return nil })
	down := CheckerFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name        string
		setup       func(h *HealthHandler)
		wantHealth  int
		wantStatus  string
		wantReadies int
	}{
		{
			name:        "all healthy",
			setup:       func(h *HealthHandler) { h.AddChecker("postgres", ok) },
			wantHealth:  http.StatusOK,
			wantStatus:  "healthy",
			wantReadies: http.StatusOK,
		},
		{
			name:        "required down",
			setup:       func(h *HealthHandler) { h.AddChecker("postgres", down) },
			wantHealth:  http.StatusServiceUnavailable,
			wantStatus:  "unhealthy",
			wantReadies: http.StatusServiceUnavailable,
		},
		{
			name: "optional down",
			setup: func(h *HealthHandler) {
				h.AddChecker("postgres", ok)
				h.AddOptionalChecker("notify", down)
			},
			wantHealth:  http.StatusOK,
			wantStatus:  "degraded",
			wantReadies: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler()
			tt.setup(h)

			rec := httptest.NewRecorder()
			h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.wantHealth, rec.Code)

			var status HealthStatus
			require.NoError(t, json.Unmarshal(decodeResponse(t, rec).Data, &status))
			assert.Equal(t, tt.wantStatus, status.Status)

			rec = httptest.NewRecorder()
			h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			assert.Equal(t, tt.wantReadies, rec.Code)
		})
	}
}

type fixedRate int64

func (r fixedRate) GetCurrentRate(context.Context) (int64, error) {
	return int64(r), nil
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	metrics.RecordReceipt("sms", "delivered")
	metrics.RecordReceivedText()

	hub := NewWebSocketHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := NewMetricsHandler(metrics, reg, fixedRate(7), hub)

	rec := httptest.NewRecorder()
	h.RealtimeMetrics(rec, httptest.NewRequest(http.MethodGet, "/metrics/realtime", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var realtime RealtimeMetrics
	require.NoError(t, json.Unmarshal(decodeResponse(t, rec).Data, &realtime))
	assert.Equal(t, int64(7), realtime.APIRequestsPerSec)
	assert.Equal(t, 0, realtime.WebSocketClients)

	rec = httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `notify_delivery_receipts_total{status="delivered",type="sms"} 1`)
	assert.Contains(t, rec.Body.String(), "notify_received_texts_total 1")
	assert.Contains(t, rec.Body.String(), "notify_api_requests_per_second 7")
}

func TestClientFilter_Matches(t *testing.T) {
	id := uuid.New()
	ref := "order-1"
	status := &domain.DeliveryStatus{ID: id, Reference: &ref, Type: domain.TypeSMS}

	tests := []struct {
		name   string
		filter ClientFilter
		want   bool
	}{
		{"empty", ClientFilter{}, true},
		{"id", ClientFilter{NotificationIDs: []uuid.UUID{id}}, true},
		{"other id", ClientFilter{NotificationIDs: []uuid.UUID{uuid.New()}}, false},
		{"reference", ClientFilter{References: []string{"order-1"}}, true},
		{"type", ClientFilter{Types: []domain.NotificationType{domain.TypeSMS}}, true},
		{"other type", ClientFilter{Types: []domain.NotificationType{domain.TypeEmail}}, false},
		{"any of", ClientFilter{References: []string{"x"}, Types: []domain.NotificationType{domain.TypeSMS}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(status))
		})
	}
}

func TestWebSocketHub_Broadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewWebSocketHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(NewWebSocketHandler(hub, []string{"*"}).HandleWebSocket))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 10*time.Millisecond)

	id := uuid.New()
	hub.BroadcastStatus(&domain.DeliveryStatus{ID: id, Status: domain.StatusDelivered, Type: domain.TypeEmail})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var update StatusUpdate
	require.NoError(t, json.Unmarshal(message, &update))
	assert.Equal(t, "status_update", update.Type)
	assert.Equal(t, id, update.Status.ID)
	assert.Equal(t, domain.StatusDelivered, update.Status.Status)
}

func TestWebSocketHandler_RejectsOrigin(t *testing.T) {
	hub := NewWebSocketHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(http.HandlerFunc(NewWebSocketHandler(hub, []string{"https://app.example.com"}).HandleWebSocket))
	defer srv.Close()

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// Package notifytest provides an in-process fake of the Notify API for tests.
//
// The fake verifies bearer tokens the same way the real API does, keeps sent
// notifications in memory and answers with API-shaped bodies, including the
// {"status_code", "errors"} error envelope.
package notifytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/insider-one/notifications-go-client/internal/auth"
)

const (
	defaultPageSize = 250
	tokenLeeway     = 30 * time.Second
)

// Template is a template known to the fake.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`
	Version   int       `json:"version"`
	Body      string    `json:"body"`
	Subject   *string   `json:"subject"`
}

// Notification is a notification stored by the fake.
type Notification struct {
	ID           string          `json:"id"`
	Reference    *string         `json:"reference"`
	EmailAddress *string         `json:"email_address"`
	PhoneNumber  *string         `json:"phone_number"`
	Line1        *string         `json:"line_1"`
	Postcode     *string         `json:"postcode"`
	Postage      *string         `json:"postage"`
	Type         string          `json:"type"`
	Status       string          `json:"status"`
	Template     TemplateVersion `json:"template"`
	Body         string          `json:"body"`
	Subject      *string         `json:"subject"`
	CreatedAt    time.Time       `json:"created_at"`
	SentAt       *time.Time      `json:"sent_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

// TemplateVersion references a template version.
type TemplateVersion struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
	URI     string `json:"uri"`
}

// ReceivedText is an inbound message stored by the fake.
type ReceivedText struct {
	ID           string    `json:"id"`
	NotifyNumber string    `json:"notify_number"`
	UserNumber   string    `json:"user_number"`
	ServiceID    string    `json:"service_id"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

// Request is a request received by the fake.
type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

type failure struct {
	status int
	body   string
}

// Server is a running fake API.
type Server struct {
	*httptest.Server

	ServiceID string
	Secret    string
	APIKey    string

	// PageSize limits list responses. Set before issuing requests.
	PageSize int

	mu            sync.Mutex
	templates     map[string][]Template
	notifications []Notification
	receivedTexts []ReceivedText
	requests      []Request
	failures      []failure
}

// NewServer starts a fake API that is closed when t finishes.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		ServiceID: uuid.NewString(),
		Secret:    uuid.NewString(),
		PageSize:  defaultPageSize,
		templates: make(map[string][]Template),
	}
	s.APIKey = "test_key-" + s.ServiceID + "-" + s.Secret
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)

	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Use(s.injectFailure)
	r.Use(s.authenticate)

	r.Route("/v2", func(r chi.Router) {
		r.Post("/notifications/email", s.sendEmail)
		r.Post("/notifications/sms", s.sendSMS)
		r.Post("/notifications/letter", s.sendLetter)
		r.Get("/notifications", s.listNotifications)
		r.Get("/notifications/{id}", s.getNotification)
		r.Get("/notifications/{id}/pdf", s.getPDF)
		r.Get("/received-text-messages", s.listReceivedTexts)
		r.Get("/template/{id}", s.getTemplate)
		r.Get("/template/{id}/version/{version}", s.getTemplateVersion)
		r.Post("/template/{id}/preview", s.previewTemplate)
		r.Get("/templates", s.listTemplates)
	})

	return r
}

// AddTemplate stores a template version and returns it with defaults filled.
func (s *Server) AddTemplate(t Template) Template {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Version == 0 {
		t.Version = len(s.templates[t.ID]) + 1
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.CreatedBy == "" {
		t.CreatedBy = "test@example.com"
	}
	s.templates[t.ID] = append(s.templates[t.ID], t)
	return t
}

// AddNotification stores a notification. Later notifications are newer.
func (s *Server) AddNotification(n Notification) Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Status == "" {
		n.Status = "created"
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	s.notifications = append(s.notifications, n)
	return n
}

// SetStatus changes the status of a stored notification.
func (s *Server) SetStatus(id, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].Status = status
			return true
		}
	}
	return false
}

// AddReceivedText stores an inbound message. Later messages are newer.
func (s *Server) AddReceivedText(rt ReceivedText) ReceivedText {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rt.ID == "" {
		rt.ID = uuid.NewString()
	}
	if rt.ServiceID == "" {
		rt.ServiceID = s.ServiceID
	}
	if rt.CreatedAt.IsZero() {
		rt.CreatedAt = time.Now().UTC()
	}
	s.receivedTexts = append(s.receivedTexts, rt)
	return rt
}

// FailNext makes the next request answer with status and raw body. Calls
// queue up in order.
func (s *Server) FailNext(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{status: status, body: body})
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request.
func (s *Server) LastRequest() (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}, false
	}
	return s.requests[len(s.requests)-1], true
}

// Notifications returns the stored notifications, oldest first.
func (s *Server) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "AuthError", "Unauthorized: authentication token must be provided")
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "AuthError", "Unauthorized: authentication bearer scheme must be used")
			return
		}

		claims, err := auth.DecodeToken(token, s.Secret)
		if err != nil {
			writeError(w, http.StatusForbidden, "AuthError", "Invalid token: signature, api token not found")
			return
		}
		if claims.Issuer != s.ServiceID {
			writeError(w, http.StatusForbidden, "AuthError", "Invalid token: service not found")
			return
		}
		skew := time.Since(claims.IssuedAt)
		if skew > tokenLeeway || skew < -tokenLeeway {
			writeError(w, http.StatusForbidden, "AuthError", "Error: Your system clock must be accurate to within 30 seconds")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		var f *failure
		if len(s.failures) > 0 {
			f = &s.failures[0]
			s.failures = s.failures[1:]
		}
		s.mu.Unlock()

		if f != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			w.Write([]byte(f.body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]any{
		"status_code": status,
		"errors": []map[string]string{
			{"error": kind, "message": message},
		},
	})
}

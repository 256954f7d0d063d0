package notifytest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type sendBody struct {
	EmailAddress    string         `json:"email_address"`
	PhoneNumber     string         `json:"phone_number"`
	TemplateID      string         `json:"template_id"`
	Personalisation map[string]any `json:"personalisation"`
	Reference       string         `json:"reference"`
	Content         string         `json:"content"`
	Postage         string         `json:"postage"`
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) decodeSend(w http.ResponseWriter, r *http.Request) (*sendBody, bool) {
	var body sendBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequestError", "Invalid JSON supplied in POST data")
		return nil, false
	}
	return &body, true
}

func (s *Server) latestTemplate(id, kind string) (Template, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.templates[id]
	if len(versions) == 0 {
		return Template{}, "Template not found", false
	}
	t := versions[len(versions)-1]
	if t.Type != kind {
		return Template{}, fmt.Sprintf("%s template is not suitable for %s notification", t.Type, kind), false
	}
	return t, "", true
}

func render(text string, personalisation map[string]any) string {
	for k, v := range personalisation {
		text = strings.ReplaceAll(text, "(("+k+"))", fmt.Sprint(v))
	}
	return text
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func (s *Server) templateURI(t Template) string {
	return fmt.Sprintf("%s/services/%s/templates/%s", s.URL, s.ServiceID, t.ID)
}

func (s *Server) sendEmail(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeSend(w, r)
	if !ok {
		return
	}
	if body.EmailAddress == "" {
		writeError(w, http.StatusBadRequest, "ValidationError", "email_address is a required property")
		return
	}
	t, msg, ok := s.latestTemplate(body.TemplateID, "email")
	if !ok {
		writeError(w, http.StatusBadRequest, "BadRequestError", msg)
		return
	}

	subject := render(deref(t.Subject), body.Personalisation)
	n := s.AddNotification(Notification{
		Reference:    optional(body.Reference),
		EmailAddress: &body.EmailAddress,
		Type:         "email",
		Template:     TemplateVersion{ID: t.ID, Version: t.Version, URI: s.templateURI(t)},
		Body:         render(t.Body, body.Personalisation),
		Subject:      &subject,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        n.ID,
		"reference": n.Reference,
		"content": map[string]any{
			"subject":    subject,
			"body":       n.Body,
			"from_email": "service@notifications.service.gov.uk",
		},
		"uri":           fmt.Sprintf("%s/v2/notifications/%s", s.URL, n.ID),
		"template":      n.Template,
		"scheduled_for": nil,
	})
}

func (s *Server) sendSMS(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeSend(w, r)
	if !ok {
		return
	}
	if body.PhoneNumber == "" {
		writeError(w, http.StatusBadRequest, "ValidationError", "phone_number is a required property")
		return
	}
	t, msg, ok := s.latestTemplate(body.TemplateID, "sms")
	if !ok {
		writeError(w, http.StatusBadRequest, "BadRequestError", msg)
		return
	}

	n := s.AddNotification(Notification{
		Reference:   optional(body.Reference),
		PhoneNumber: &body.PhoneNumber,
		Type:        "sms",
		Template:    TemplateVersion{ID: t.ID, Version: t.Version, URI: s.templateURI(t)},
		Body:        render(t.Body, body.Personalisation),
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        n.ID,
		"reference": n.Reference,
		"content": map[string]any{
			"body":        n.Body,
			"from_number": "GOVUK",
		},
		"uri":           fmt.Sprintf("%s/v2/notifications/%s", s.URL, n.ID),
		"template":      n.Template,
		"scheduled_for": nil,
	})
}

func (s *Server) sendLetter(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeSend(w, r)
	if !ok {
		return
	}

	if body.Content != "" {
		postage := body.Postage
		if postage == "" {
			postage = "second"
		}
		n := s.AddNotification(Notification{
			Reference: optional(body.Reference),
			Type:      "letter",
			Postage:   &postage,
			Status:    "pending-virus-check",
		})
		writeJSON(w, http.StatusCreated, map[string]any{
			"id":        n.ID,
			"reference": body.Reference,
			"postage":   postage,
		})
		return
	}

	t, msg, ok := s.latestTemplate(body.TemplateID, "letter")
	if !ok {
		writeError(w, http.StatusBadRequest, "BadRequestError", msg)
		return
	}
	line1, _ := body.Personalisation["address_line_1"].(string)
	if line1 == "" {
		writeError(w, http.StatusBadRequest, "ValidationError", "personalisation address_line_1 is a required property")
		return
	}

	subject := render(deref(t.Subject), body.Personalisation)
	n := s.AddNotification(Notification{
		Reference: optional(body.Reference),
		Line1:     &line1,
		Type:      "letter",
		Template:  TemplateVersion{ID: t.ID, Version: t.Version, URI: s.templateURI(t)},
		Body:      render(t.Body, body.Personalisation),
		Subject:   &subject,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        n.ID,
		"reference": n.Reference,
		"content": map[string]any{
			"subject": subject,
			"body":    n.Body,
		},
		"uri":           fmt.Sprintf("%s/v2/notifications/%s", s.URL, n.ID),
		"template":      n.Template,
		"scheduled_for": nil,
	})
}

func (s *Server) findNotification(w http.ResponseWriter, r *http.Request) (Notification, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "notification_id is not a valid UUID")
		return Notification{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ID == id {
			return n, true
		}
	}
	writeError(w, http.StatusNotFound, "NoResultFound", "No result found")
	return Notification{}, false
}

func (s *Server) getNotification(w http.ResponseWriter, r *http.Request) {
	n, ok := s.findNotification(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) getPDF(w http.ResponseWriter, r *http.Request) {
	n, ok := s.findNotification(w, r)
	if !ok {
		return
	}
	if n.Type != "letter" {
		writeError(w, http.StatusBadRequest, "BadRequestError", "Notification is not a letter")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "%%PDF-1.4 letter %s", n.ID)
}

// page returns up to size items older than the item with id olderThan. items
// are stored oldest first and listed newest first.
func page[T any](items []T, id func(T) string, olderThan string, size int) ([]T, bool) {
	newest := slices.Clone(items)
	slices.Reverse(newest)

	start := 0
	if olderThan != "" {
		start = len(newest)
		for i, item := range newest {
			if id(item) == olderThan {
				start = i + 1
				break
			}
		}
	}

	end := min(start+size, len(newest))
	return newest[start:end], end < len(newest)
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	s.mu.Lock()
	filtered := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if v := q.Get("template_type"); v != "" && n.Type != v {
			continue
		}
		if v := q.Get("status"); v != "" && n.Status != v {
			continue
		}
		if v := q.Get("reference"); v != "" && deref(n.Reference) != v {
			continue
		}
		filtered = append(filtered, n)
	}
	size := s.PageSize
	s.mu.Unlock()

	items, more := page(filtered, func(n Notification) string { return n.ID }, q.Get("older_than"), size)

	links := map[string]string{"current": s.URL + r.URL.RequestURI()}
	if more && len(items) > 0 {
		next := r.URL.Query()
		next.Set("older_than", items[len(items)-1].ID)
		links["next"] = s.URL + "/v2/notifications?" + next.Encode()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": items,
		"links":         links,
	})
}

func (s *Server) listReceivedTexts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	all := slices.Clone(s.receivedTexts)
	size := s.PageSize
	s.mu.Unlock()

	items, more := page(all, func(rt ReceivedText) string { return rt.ID }, r.URL.Query().Get("older_than"), size)

	links := map[string]string{"current": s.URL + r.URL.RequestURI()}
	if more && len(items) > 0 {
		links["next"] = s.URL + "/v2/received-text-messages?older_than=" + items[len(items)-1].ID
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"received_text_messages": items,
		"links":                  links,
	})
}

func (s *Server) templateVersions(w http.ResponseWriter, r *http.Request) ([]Template, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "id is not a valid UUID")
		return nil, false
	}

	s.mu.Lock()
	versions := slices.Clone(s.templates[id])
	s.mu.Unlock()

	if len(versions) == 0 {
		writeError(w, http.StatusNotFound, "NoResultFound", "No result found")
		return nil, false
	}
	return versions, true
}

func (s *Server) getTemplate(w http.ResponseWriter, r *http.Request) {
	versions, ok := s.templateVersions(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, versions[len(versions)-1])
}

func (s *Server) getTemplateVersion(w http.ResponseWriter, r *http.Request) {
	versions, ok := s.templateVersions(w, r)
	if !ok {
		return
	}
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "version is not an integer")
		return
	}
	for _, t := range versions {
		if t.Version == version {
			writeJSON(w, http.StatusOK, t)
			return
		}
	}
	writeError(w, http.StatusNotFound, "NoResultFound", "No result found")
}

func (s *Server) previewTemplate(w http.ResponseWriter, r *http.Request) {
	versions, ok := s.templateVersions(w, r)
	if !ok {
		return
	}
	var body struct {
		Personalisation map[string]any `json:"personalisation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "BadRequestError", "Invalid JSON supplied in POST data")
		return
	}

	t := versions[len(versions)-1]
	var subject *string
	if t.Subject != nil {
		rendered := render(*t.Subject, body.Personalisation)
		subject = &rendered
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      t.ID,
		"type":    t.Type,
		"version": t.Version,
		"body":    render(t.Body, body.Personalisation),
		"subject": subject,
		"html":    nil,
	})
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("type")

	s.mu.Lock()
	out := make([]Template, 0, len(s.templates))
	for _, versions := range s.templates {
		t := versions[len(versions)-1]
		if kind != "" && t.Type != kind {
			continue
		}
		out = append(out, t)
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b Template) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	writeJSON(w, http.StatusOK, map[string]any{"templates": out})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

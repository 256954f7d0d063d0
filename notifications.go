package notify

import (
	"context"
	"encoding/base64"
	"iter"
	"net/http"
	"net/url"
)

// SendEmail sends an email using a template.
func (c *Client) SendEmail(ctx context.Context, req EmailRequest) (*EmailResponse, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}

	var resp EmailResponse
	ep := endpoint{name: "send_email", method: http.MethodPost, path: "/v2/notifications/email"}
	if err := c.call(ctx, ep, nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendSMS sends a text message using a template.
func (c *Client) SendSMS(ctx context.Context, req SMSRequest) (*SMSResponse, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}

	var resp SMSResponse
	ep := endpoint{name: "send_sms", method: http.MethodPost, path: "/v2/notifications/sms"}
	if err := c.call(ctx, ep, nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendLetter sends a letter using a template.
func (c *Client) SendLetter(ctx context.Context, req LetterRequest) (*LetterResponse, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}

	var resp LetterResponse
	ep := endpoint{name: "send_letter", method: http.MethodPost, path: "/v2/notifications/letter"}
	if err := c.call(ctx, ep, nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendPrecompiledLetter sends a letter from a ready-made PDF. Postage may be
// empty to use the service default.
func (c *Client) SendPrecompiledLetter(ctx context.Context, reference string, pdf []byte, postage string) (*PrecompiledLetterResponse, error) {
	req := precompiledLetterRequest{
		Reference: reference,
		Content:   base64.StdEncoding.EncodeToString(pdf),
		Postage:   postage,
	}
	if err := c.validateRequest(req); err != nil {
		return nil, err
	}

	var resp PrecompiledLetterResponse
	ep := endpoint{name: "send_precompiled_letter", method: http.MethodPost, path: "/v2/notifications/letter"}
	if err := c.call(ctx, ep, nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetNotificationByID fetches one notification. An unknown id yields a
// *NotFoundError.
func (c *Client) GetNotificationByID(ctx context.Context, id string) (*Notification, error) {
	if id == "" {
		return nil, &ValidationError{Field: "id", Message: "is required"}
	}

	var n Notification
	ep := endpoint{name: "get_notification", method: http.MethodGet, path: "/v2/notifications/" + url.PathEscape(id)}
	if err := c.call(ctx, ep, nil, nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// GetPDFForLetter downloads the rendered PDF of a letter notification.
func (c *Client) GetPDFForLetter(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, &ValidationError{Field: "id", Message: "is required"}
	}

	ep := endpoint{name: "get_pdf_for_letter", method: http.MethodGet, path: "/v2/notifications/" + url.PathEscape(id) + "/pdf"}
	_, data, err := c.send(ctx, ep, nil, nil)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// GetAllNotifications fetches one page of notifications, newest first.
func (c *Client) GetAllNotifications(ctx context.Context, filter NotificationFilter) (*NotificationsPage, error) {
	query := url.Values{}
	if filter.TemplateType != "" {
		query.Set("template_type", filter.TemplateType)
	}
	if filter.Status != "" {
		query.Set("status", filter.Status)
	}
	if filter.Reference != "" {
		query.Set("reference", filter.Reference)
	}
	if filter.OlderThan != "" {
		query.Set("older_than", filter.OlderThan)
	}
	if filter.IncludeJobs {
		query.Set("include_jobs", "true")
	}

	var page NotificationsPage
	ep := endpoint{name: "get_all_notifications", method: http.MethodGet, path: "/v2/notifications"}
	if err := c.call(ctx, ep, query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// AllNotifications returns every notification matching filter, fetching pages
// lazily as the sequence is consumed. Each range over the sequence starts
// again from the first page. On failure the error is yielded once and the
// sequence ends.
func (c *Client) AllNotifications(ctx context.Context, filter NotificationFilter) iter.Seq2[Notification, error] {
	return func(yield func(Notification, error) bool) {
		f := filter
		for {
			page, err := c.GetAllNotifications(ctx, f)
			if err != nil {
				yield(Notification{}, err)
				return
			}
			if len(page.Notifications) == 0 {
				return
			}
			for _, n := range page.Notifications {
				if !yield(n, nil) {
					return
				}
			}

			next, ok := nextOlderThan(page.Links.Next, f.OlderThan)
			if !ok {
				return
			}
			f.OlderThan = next
		}
	}
}

// GetReceivedTexts fetches one page of inbound text messages. olderThan may be
// empty to start from the newest.
func (c *Client) GetReceivedTexts(ctx context.Context, olderThan string) (*ReceivedTextsPage, error) {
	var query url.Values
	if olderThan != "" {
		query = url.Values{"older_than": {olderThan}}
	}

	var page ReceivedTextsPage
	ep := endpoint{name: "get_received_texts", method: http.MethodGet, path: "/v2/received-text-messages"}
	if err := c.call(ctx, ep, query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// AllReceivedTexts returns every inbound text message, paging like
// AllNotifications.
func (c *Client) AllReceivedTexts(ctx context.Context) iter.Seq2[ReceivedText, error] {
	return func(yield func(ReceivedText, error) bool) {
		olderThan := ""
		for {
			page, err := c.GetReceivedTexts(ctx, olderThan)
			if err != nil {
				yield(ReceivedText{}, err)
				return
			}
			if len(page.ReceivedTexts) == 0 {
				return
			}
			for _, rt := range page.ReceivedTexts {
				if !yield(rt, nil) {
					return
				}
			}

			next, ok := nextOlderThan(page.Links.Next, olderThan)
			if !ok {
				return
			}
			olderThan = next
		}
	}
}

// nextOlderThan extracts the older_than cursor from a next link. It reports
// false when there is no further page or the cursor did not move.
func nextOlderThan(next, current string) (string, bool) {
	if next == "" {
		return "", false
	}
	u, err := url.Parse(next)
	if err != nil {
		return "", false
	}
	cursor := u.Query().Get("older_than")
	if cursor == "" || cursor == current {
		return "", false
	}
	return cursor, true
}

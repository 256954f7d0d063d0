package notify

import "time"

// Template and notification types.
const (
	TypeEmail  = "email"
	TypeSMS    = "sms"
	TypeLetter = "letter"
)

// Letter postage classes.
const (
	PostageFirst       = "first"
	PostageSecond      = "second"
	PostageEconomy     = "economy"
	PostageEurope      = "europe"
	PostageRestOfWorld = "rest-of-world"
)

// Personalisation maps template placeholder names to values. Values must be
// JSON encodable; an *UploadedDocument attaches a file.
type Personalisation map[string]any

// EmailRequest is the body of a send email call.
type EmailRequest struct {
	EmailAddress           string          `json:"email_address" validate:"required"`
	TemplateID             string          `json:"template_id" validate:"required,uuid"`
	Personalisation        Personalisation `json:"personalisation,omitempty"`
	Reference              string          `json:"reference,omitempty"`
	EmailReplyToID         string          `json:"email_reply_to_id,omitempty" validate:"omitempty,uuid"`
	OneClickUnsubscribeURL string          `json:"one_click_unsubscribe_url,omitempty" validate:"omitempty,url"`
}

// SMSRequest is the body of a send SMS call.
type SMSRequest struct {
	PhoneNumber     string          `json:"phone_number" validate:"required"`
	TemplateID      string          `json:"template_id" validate:"required,uuid"`
	Personalisation Personalisation `json:"personalisation,omitempty"`
	Reference       string          `json:"reference,omitempty"`
	SMSSenderID     string          `json:"sms_sender_id,omitempty" validate:"omitempty,uuid"`
}

// LetterRequest is the body of a send letter call. The address lines are
// passed as personalisation (address_line_1 ... address_line_7).
type LetterRequest struct {
	TemplateID      string          `json:"template_id" validate:"required,uuid"`
	Personalisation Personalisation `json:"personalisation,omitempty"`
	Reference       string          `json:"reference,omitempty"`
}

type precompiledLetterRequest struct {
	Reference string `json:"reference" validate:"required"`
	Content   string `json:"content" validate:"required"`
	Postage   string `json:"postage,omitempty" validate:"omitempty,oneof=first second economy europe rest-of-world"`
}

// TemplateRef identifies the template version a notification was sent with.
type TemplateRef struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
	URI     string `json:"uri"`
}

// EmailContent is the rendered email Notify will send.
type EmailContent struct {
	Subject                string  `json:"subject"`
	Body                   string  `json:"body"`
	FromEmail              string  `json:"from_email"`
	OneClickUnsubscribeURL *string `json:"one_click_unsubscribe_url,omitempty"`
}

// EmailResponse is returned by SendEmail.
type EmailResponse struct {
	ID           string       `json:"id"`
	Reference    *string      `json:"reference"`
	Content      EmailContent `json:"content"`
	URI          string       `json:"uri"`
	Template     TemplateRef  `json:"template"`
	ScheduledFor *string      `json:"scheduled_for"`
}

// SMSContent is the rendered text message and the number it is sent from.
type SMSContent struct {
	Body       string `json:"body"`
	FromNumber string `json:"from_number"`
}

// SMSResponse is returned by SendSMS.
type SMSResponse struct {
	ID           string      `json:"id"`
	Reference    *string     `json:"reference"`
	Content      SMSContent  `json:"content"`
	URI          string      `json:"uri"`
	Template     TemplateRef `json:"template"`
	ScheduledFor *string     `json:"scheduled_for"`
}

// LetterContent is the rendered letter.
type LetterContent struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// LetterResponse is returned by SendLetter.
type LetterResponse struct {
	ID           string        `json:"id"`
	Reference    *string       `json:"reference"`
	Content      LetterContent `json:"content"`
	URI          string        `json:"uri"`
	Template     TemplateRef   `json:"template"`
	ScheduledFor *string       `json:"scheduled_for"`
}

// PrecompiledLetterResponse is returned by SendPrecompiledLetter.
type PrecompiledLetterResponse struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	Postage   string `json:"postage"`
}

// Notification is the status record of a sent email, SMS or letter.
type Notification struct {
	ID                string      `json:"id"`
	Reference         *string     `json:"reference"`
	EmailAddress      *string     `json:"email_address"`
	PhoneNumber       *string     `json:"phone_number"`
	Line1             *string     `json:"line_1"`
	Line2             *string     `json:"line_2"`
	Line3             *string     `json:"line_3"`
	Line4             *string     `json:"line_4"`
	Line5             *string     `json:"line_5"`
	Line6             *string     `json:"line_6"`
	Line7             *string     `json:"line_7"`
	Postcode          *string     `json:"postcode"`
	Postage           *string     `json:"postage"`
	Type              string      `json:"type"`
	Status            string      `json:"status"`
	Template          TemplateRef `json:"template"`
	Body              string      `json:"body"`
	Subject           *string     `json:"subject"`
	CreatedAt         time.Time   `json:"created_at"`
	CreatedByName     *string     `json:"created_by_name"`
	SentAt            *time.Time  `json:"sent_at"`
	CompletedAt       *time.Time  `json:"completed_at"`
	EstimatedDelivery *time.Time  `json:"estimated_delivery"`
}

// Recipient returns the email address, phone number or first address line,
// whichever the notification type uses.
func (n *Notification) Recipient() string {
	for _, s := range []*string{n.EmailAddress, n.PhoneNumber, n.Line1} {
		if s != nil && *s != "" {
			return *s
		}
	}
	return ""
}

// Links are the paging links of a list response.
type Links struct {
	Current string `json:"current"`
	Next    string `json:"next,omitempty"`
}

// NotificationsPage is one page of GetAllNotifications.
type NotificationsPage struct {
	Notifications []Notification `json:"notifications"`
	Links         Links          `json:"links"`
}

// NotificationFilter narrows GetAllNotifications. Zero values are omitted.
type NotificationFilter struct {
	Status       string
	TemplateType string
	Reference    string
	// OlderThan is a notification id; only older notifications are listed.
	OlderThan   string
	IncludeJobs bool
}

// Template is a message template stored by the service.
type Template struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Type               string     `json:"type"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at"`
	CreatedBy          string     `json:"created_by"`
	Version            int        `json:"version"`
	Body               string     `json:"body"`
	Subject            *string    `json:"subject"`
	LetterContactBlock *string    `json:"letter_contact_block"`
	Postage            *string    `json:"postage"`
}

// TemplatePreview is a template rendered with personalisation.
type TemplatePreview struct {
	ID      string  `json:"id"`
	Type    string  `json:"type"`
	Version int     `json:"version"`
	Body    string  `json:"body"`
	Subject *string `json:"subject"`
	HTML    *string `json:"html"`
}

// ReceivedText is an inbound SMS sent to the service's number.
type ReceivedText struct {
	ID           string    `json:"id"`
	NotifyNumber string    `json:"notify_number"`
	UserNumber   string    `json:"user_number"`
	ServiceID    string    `json:"service_id"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

// ReceivedTextsPage is one page of GetReceivedTexts.
type ReceivedTextsPage struct {
	ReceivedTexts []ReceivedText `json:"received_text_messages"`
	Links         Links          `json:"links"`
}

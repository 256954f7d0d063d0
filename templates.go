package notify

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// placeholderPattern matches ((name)) and ((name??conditional text)).
var placeholderPattern = regexp.MustCompile(`\(\(([^()?]+?)(\?\?[^()]*)?\)\)`)

// GetTemplate fetches the latest version of a template.
func (c *Client) GetTemplate(ctx context.Context, id string) (*Template, error) {
	if id == "" {
		return nil, &ValidationError{Field: "id", Message: "is required"}
	}

	var t Template
	ep := endpoint{name: "get_template", method: http.MethodGet, path: "/v2/template/" + url.PathEscape(id)}
	if err := c.call(ctx, ep, nil, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTemplateVersion fetches a specific version of a template.
func (c *Client) GetTemplateVersion(ctx context.Context, id string, version int) (*Template, error) {
	if id == "" {
		return nil, &ValidationError{Field: "id", Message: "is required"}
	}
	if version < 1 {
		return nil, &ValidationError{Field: "version", Message: "must be at least 1"}
	}

	var t Template
	path := "/v2/template/" + url.PathEscape(id) + "/version/" + strconv.Itoa(version)
	ep := endpoint{name: "get_template_version", method: http.MethodGet, path: path}
	if err := c.call(ctx, ep, nil, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetAllTemplates lists the latest version of every template, optionally
// restricted to one type (TypeEmail, TypeSMS or TypeLetter).
func (c *Client) GetAllTemplates(ctx context.Context, templateType string) ([]Template, error) {
	var query url.Values
	if templateType != "" {
		query = url.Values{"type": {templateType}}
	}

	var resp struct {
		Templates []Template `json:"templates"`
	}
	ep := endpoint{name: "get_all_templates", method: http.MethodGet, path: "/v2/templates"}
	if err := c.call(ctx, ep, query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Templates, nil
}

// PostTemplatePreview renders a template with personalisation without sending
// anything.
func (c *Client) PostTemplatePreview(ctx context.Context, id string, personalisation Personalisation) (*TemplatePreview, error) {
	if id == "" {
		return nil, &ValidationError{Field: "id", Message: "is required"}
	}

	body := struct {
		Personalisation Personalisation `json:"personalisation,omitempty"`
	}{Personalisation: personalisation}

	var preview TemplatePreview
	ep := endpoint{name: "post_template_preview", method: http.MethodPost, path: "/v2/template/" + url.PathEscape(id) + "/preview"}
	if err := c.call(ctx, ep, nil, body, &preview); err != nil {
		return nil, err
	}
	return &preview, nil
}

// Placeholders returns the distinct placeholder names of the template subject
// and body in order of first appearance. Names are matched case-insensitively
// and returned as first written.
func (t *Template) Placeholders() []string {
	text := t.Body
	if t.Subject != nil {
		text = *t.Subject + "\n" + text
	}

	seen := make(map[string]bool)
	names := make([]string, 0)
	for _, match := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(match[1])
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, name)
	}
	return names
}

// MissingPersonalisation returns the placeholders with no value in p.
func (t *Template) MissingPersonalisation(p Personalisation) []string {
	provided := make(map[string]bool, len(p))
	for k := range p {
		provided[strings.ToLower(k)] = true
	}

	missing := make([]string, 0)
	for _, name := range t.Placeholders() {
		if !provided[strings.ToLower(name)] {
			missing = append(missing, name)
		}
	}
	return missing
}

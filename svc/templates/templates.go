// Package templates renders notification content for a channel from a
// template code and the request variables.
//
// Catalog renders from a YAML file compiled at load time; the built-in
// catalogue carries the "welcome" and "notification" templates. HTTPRenderer
// delegates to the template service. Both report any failure that repeating
// the call cannot fix as ErrRenderFailed; the worker dead-letters those.
package templates

import (
	"context"
	"errors"

	"github.com/dmitrymomot/courier/pkg/notification"
)

var (
	// ErrRenderFailed marks permanent render failures: unknown template,
	// missing required variable, or a template that fails to execute.
	ErrRenderFailed = errors.New("templates: render failed")

	// ErrTemplateNotFound is joined with ErrRenderFailed when no template
	// matches the code and no fallback exists.
	ErrTemplateNotFound = errors.New("templates: template not found")

	// ErrUnavailable marks transient failures reaching the template service.
	ErrUnavailable = errors.New("templates: service unavailable")

	ErrInvalidCatalog = errors.New("templates: invalid catalog")
)

// Content is rendered output. Email uses Subject, BodyText and BodyHTML;
// push uses Title, Body and Data.
type Content struct {
	Subject  string         `json:"subject,omitempty"`
	BodyText string         `json:"body_text,omitempty"`
	BodyHTML string         `json:"body_html,omitempty"`
	Title    string         `json:"title,omitempty"`
	Body     string         `json:"body,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// Renderer produces channel content for a template code.
type Renderer interface {
	Render(ctx context.Context, channel notification.Channel, code string, vars map[string]any) (Content, error)
}

// Config selects the renderer backend.
type Config struct {
	ServiceURL  string `env:"TEMPLATE_SERVICE_URL"`
	CatalogPath string `env:"TEMPLATE_CATALOG_PATH"`
	Language    string `env:"TEMPLATE_LANGUAGE" envDefault:"en"`
}

// New builds the renderer cfg points at: the template service when a URL is
// set, a catalogue file when a path is set, the built-in catalogue otherwise.
func New(cfg Config) (Renderer, error) {
	switch {
	case cfg.ServiceURL != "":
		return NewHTTPRenderer(cfg)
	case cfg.CatalogPath != "":
		return LoadCatalog(cfg.CatalogPath)
	default:
		return DefaultCatalog()
	}
}

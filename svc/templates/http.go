package templates

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/dmitrymomot/courier/pkg/notification"
)

// HTTPRenderer renders through the template service's POST /templates/render.
type HTTPRenderer struct {
	http     *resty.Client
	language string
}

// NewHTTPRenderer creates a template-service client.
func NewHTTPRenderer(cfg Config) (*HTTPRenderer, error) {
	if cfg.ServiceURL == "" {
		return nil, errors.New("templates: TEMPLATE_SERVICE_URL is required")
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	rc := resty.New().
		SetBaseURL(cfg.ServiceURL).
		SetHeader("Accept", "application/json")
	return &HTTPRenderer{http: rc, language: cfg.Language}, nil
}

type renderRequest struct {
	TemplateID string         `json:"template_id"`
	Channel    string         `json:"channel"`
	Variables  map[string]any `json:"variables"`
	Language   string         `json:"language"`
}

type renderEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		Subject  string         `json:"subject"`
		BodyText string         `json:"body_text"`
		BodyHTML string         `json:"body_html"`
		Data     map[string]any `json:"data"`
	} `json:"data"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (r *HTTPRenderer) Render(ctx context.Context, ch notification.Channel, code string, vars map[string]any) (Content, error) {
	if vars == nil {
		vars = map[string]any{}
	}

	var env renderEnvelope
	resp, err := r.http.R().
		SetContext(ctx).
		SetBody(renderRequest{TemplateID: code, Channel: ch.String(), Variables: vars, Language: r.language}).
		SetResult(&env).
		SetError(&env).
		Post("/templates/render")
	if err != nil {
		return Content{}, errors.Join(ErrUnavailable, err)
	}
	if transientStatus(resp.StatusCode()) {
		return Content{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}
	if resp.IsError() || !env.Success {
		return Content{}, fmt.Errorf("%w: %s: %s", ErrRenderFailed, env.Error, env.Message)
	}

	d := env.Data
	if ch == notification.ChannelPush {
		return Content{Title: d.Subject, Body: d.BodyText, Data: d.Data}, nil
	}
	return Content{Subject: d.Subject, BodyText: d.BodyText, BodyHTML: d.BodyHTML}, nil
}

// transientStatus reports answers worth retrying later: throttling, timeouts
// and server errors.
func transientStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

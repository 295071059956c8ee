package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrymomot/courier/pkg/email"
	"github.com/dmitrymomot/courier/pkg/notification"
	"github.com/dmitrymomot/courier/pkg/push"
	"github.com/dmitrymomot/courier/pkg/retry"
	"github.com/dmitrymomot/courier/svc/templates"
	"github.com/dmitrymomot/courier/svc/users"
)

// ErrNoRecipient is returned when neither the profile nor the request
// variables carry an address for the channel.
var ErrNoRecipient = errors.New("dispatch: no recipient address")

// Envelope is everything a provider call needs.
type Envelope struct {
	Request notification.Request
	Profile users.Profile
	Content templates.Content
}

// Sender delivers rendered content through one provider. Errors retrying
// cannot fix are marked with retry.Permanent.
type Sender interface {
	Send(ctx context.Context, env Envelope) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, env Envelope) error

func (f SenderFunc) Send(ctx context.Context, env Envelope) error {
	return f(ctx, env)
}

// EmailSender delivers through an email.EmailSender.
type EmailSender struct {
	client email.EmailSender
}

func NewEmailSender(client email.EmailSender) *EmailSender {
	return &EmailSender{client: client}
}

func (s *EmailSender) Send(ctx context.Context, env Envelope) error {
	to := env.Profile.Email
	if to == "" {
		to = stringVar(env.Request.Variables, "email")
	}
	if to == "" {
		return retry.Permanent(ErrNoRecipient)
	}

	err := s.client.SendEmail(ctx, email.SendEmailParams{
		SendTo:   to,
		Subject:  env.Content.Subject,
		BodyText: env.Content.BodyText,
		BodyHTML: env.Content.BodyHTML,
		Tag:      env.Request.TemplateCode,
	})
	if errors.Is(err, email.ErrRecipientRejected) || errors.Is(err, email.ErrInvalidParams) {
		return retry.Permanent(err)
	}
	return err
}

// PushSender delivers to every device of the user in one provider call.
type PushSender struct {
	client push.Sender
}

func NewPushSender(client push.Sender) *PushSender {
	return &PushSender{client: client}
}

func (s *PushSender) Send(ctx context.Context, env Envelope) error {
	tokens := env.Profile.PushTokens
	if len(tokens) == 0 {
		if t := stringVar(env.Request.Variables, "device_token"); t != "" {
			tokens = []string{t}
		}
	}
	if len(tokens) == 0 {
		return retry.Permanent(ErrNoRecipient)
	}

	url := stringVar(env.Request.Variables, "url")
	if url == "" {
		url = stringVar(env.Request.Variables, "link")
	}

	_, err := s.client.Send(ctx, push.Message{
		PlayerIDs: tokens,
		Title:     env.Content.Title,
		Body:      env.Content.Body,
		Data:      env.Content.Data,
		URL:       url,
		Priority:  int(env.Request.Priority),
	})
	if errors.Is(err, push.ErrRejected) || errors.Is(err, push.ErrNoRecipients) || errors.Is(err, push.ErrInvalidMessage) {
		return retry.Permanent(err)
	}
	return err
}

func stringVar(vars map[string]any, key string) string {
	v, ok := vars[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}

package email

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// EmailSender sends a single email.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams represents the parameters for sending an email.
type SendEmailParams struct {
	SendTo   string `json:"send_to"`
	Subject  string `json:"subject"`
	BodyText string `json:"body_text,omitempty"`
	BodyHTML string `json:"body_html,omitempty"`
	Tag      string `json:"tag,omitempty"`
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Validate checks the recipient, subject and that at least one body is set.
func (p SendEmailParams) Validate() error {
	var errs []error
	if p.SendTo == "" {
		errs = append(errs, errors.New("recipient is required"))
	} else if !emailRegex.MatchString(p.SendTo) {
		errs = append(errs, errors.New("recipient must be a valid email address"))
	}
	if strings.TrimSpace(p.Subject) == "" {
		errs = append(errs, errors.New("subject is required"))
	}
	if p.BodyText == "" && p.BodyHTML == "" {
		errs = append(errs, errors.New("text or html body is required"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidParams}, errs...)...)
	}
	return nil
}

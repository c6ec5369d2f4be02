// Package mailer sends shareable form links by email. It is a
// presentation-layer collaborator: nothing in the core store depends on it.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/wneessen/go-mail"
)

// Invitation is the content of one share-link email.
type Invitation struct {
	FormTitle string
	Link      string
}

// Sender delivers a single invitation. Implementations must not retry.
type Sender interface {
	Send(ctx context.Context, recipient string, inv Invitation) error
}

const subjectTemplate = `You are invited to fill out "{{.FormTitle}}"`

const bodyTemplate = `Hello,

You have been invited to fill out the form "{{.FormTitle}}".

Open the link below to submit your entry:

    {{.Link}}

Each submission is recorded once; please do not resubmit unless asked to.
`

var (
	subjectTmpl = template.Must(template.New("subject").Parse(subjectTemplate))
	bodyTmpl    = template.Must(template.New("body").Parse(bodyTemplate))
)

// Render produces the subject and body of an invitation email.
func Render(inv Invitation) (subject, body string, err error) {
	var sb, bb bytes.Buffer
	if err := subjectTmpl.Execute(&sb, inv); err != nil {
		return "", "", fmt.Errorf("mailer: render subject: %w", err)
	}
	if err := bodyTmpl.Execute(&bb, inv); err != nil {
		return "", "", fmt.Errorf("mailer: render body: %w", err)
	}
	return sb.String(), bb.String(), nil
}

// SMTP is a Sender backed by an SMTP relay.
type SMTP struct {
	client *mail.Client
	from   string
}

// SMTPConfig holds relay connection settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewSMTP creates an SMTP sender. Credentials are optional; when absent the
// relay is dialed without authentication.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mailer: new client: %w", err)
	}
	return &SMTP{client: client, from: cfg.From}, nil
}

// Send composes and delivers one invitation.
func (s *SMTP) Send(ctx context.Context, recipient string, inv Invitation) error {
	subject, body, err := Render(inv)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("mailer: from %q: %w", s.from, err)
	}
	if err := msg.To(recipient); err != nil {
		return fmt.Errorf("mailer: to %q: %w", recipient, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mailer: send to %q: %w", recipient, err)
	}
	return nil
}

// Disabled is a Sender that rejects every send; used when mail is not
// configured.
type Disabled struct{}

// Send always fails.
func (Disabled) Send(context.Context, string, Invitation) error {
	return fmt.Errorf("mailer: mail delivery is not configured")
}

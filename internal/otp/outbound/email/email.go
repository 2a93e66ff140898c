package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/shandysiswandi/otpguard/internal/otp/entity"
	"github.com/shandysiswandi/otpguard/internal/pkg/instrument"
	"github.com/shandysiswandi/otpguard/internal/pkg/mail"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrNoTemplate is returned for a purpose that is never mailed.
var ErrNoTemplate = errors.New("email: no template for purpose")

type content struct {
	subject string
	html    *template.Template
	text    *template.Template
}

const htmlLayout = `<p>{{.Intro}}</p>
<p style="font-size:24px;letter-spacing:4px"><strong>{{.Code}}</strong></p>
<p>The code expires in {{.Minutes}} minutes. If you did not ask for it, ignore this email.</p>`

const textLayout = `{{.Intro}}

    {{.Code}}

The code expires in {{.Minutes}} minutes. If you did not ask for it, ignore this email.
`

var intros = map[entity.Purpose]struct{ subject, intro string }{
	entity.PurposeRegistration:  {"Confirm your email", "Use this code to confirm your email address."},
	entity.PurposeLogin:         {"Your sign-in code", "Use this code to sign in."},
	entity.PurposePasswordReset: {"Reset your password", "Use this code to reset your password."},
}

type Mail struct {
	client   mail.Mail
	ins      instrument.Instrumentation
	expiry   func(entity.Purpose) time.Duration
	contents map[entity.Purpose]content
}

// New builds the code mailer. expiry reports the lifetime shown to the reader.
func New(client mail.Mail, ins instrument.Instrumentation, expiry func(entity.Purpose) time.Duration) *Mail {
	m := &Mail{client: client, ins: ins, expiry: expiry, contents: map[entity.Purpose]content{}}
	for p, in := range intros {
		m.contents[p] = content{
			subject: in.subject,
			html:    template.Must(template.New(p.String() + "_html").Parse(htmlLayout)),
			text:    template.Must(template.New(p.String() + "_text").Parse(textLayout)),
		}
	}
	return m
}

func (m *Mail) Send(ctx context.Context, destination, code string, p entity.Purpose) error {
	ctx, span := m.ins.Tracer("otp.outbound.email").Start(ctx, "Send")
	defer span.End()
	span.SetAttributes(attribute.String("otp.purpose", p.String()))

	msg, err := m.render(destination, code, p)
	if err == nil {
		err = m.client.Send(ctx, msg)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (m *Mail) render(destination, code string, p entity.Purpose) (mail.Message, error) {
	c, ok := m.contents[p]
	if !ok {
		return mail.Message{}, fmt.Errorf("%w: %s", ErrNoTemplate, p)
	}

	data := map[string]any{
		"Intro":   intros[p].intro,
		"Code":    code,
		"Minutes": int(m.expiry(p).Minutes()),
	}

	var html, text bytes.Buffer
	if err := c.html.Execute(&html, data); err != nil {
		return mail.Message{}, err
	}
	if err := c.text.Execute(&text, data); err != nil {
		return mail.Message{}, err
	}

	return mail.Message{
		To:       []string{destination},
		Subject:  c.subject,
		TextBody: text.String(),
		HTMLBody: html.String(),
	}, nil
}

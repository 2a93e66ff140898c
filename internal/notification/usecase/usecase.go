package usecase

import (
	"context"
	"html/template"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/shandysiswandi/otpguard/internal/notification/entity"
	"github.com/shandysiswandi/otpguard/internal/pkg/clock"
	"github.com/shandysiswandi/otpguard/internal/pkg/config"
	"github.com/shandysiswandi/otpguard/internal/pkg/instrument"
	"github.com/shandysiswandi/otpguard/internal/pkg/mail"
	"github.com/shandysiswandi/otpguard/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultSupportEmail = "support@otpguard.dev"
	defaultCompanyName  = "otpguard"
)

type repoMail interface {
	Send(ctx context.Context, msg mail.Message) error
}

// compiled is a parsed Template; parsing happens once per trigger.
type compiled struct {
	subject *template.Template
	body    *template.Template
}

type Usecase struct {
	cfg       config.Config
	clock     clock.Clocker
	validator validator.Validator
	repoMail  repoMail
	ins       instrument.Instrumentation

	mu    sync.Mutex
	cache map[entity.TriggerKey]*compiled
}

type Dependency struct {
	Config     config.Config
	Clock      clock.Clocker
	Validator  validator.Validator
	RepoMail   repoMail
	Instrument instrument.Instrumentation
}

func NewNotification(dep Dependency) *Usecase {
	return &Usecase{
		cfg:       dep.Config,
		clock:     dep.Clock,
		validator: dep.Validator,
		repoMail:  dep.RepoMail,
		ins:       dep.Instrument,
		cache:     map[entity.TriggerKey]*compiled{},
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("notification.usecase").Start(ctx, name)
}

// compile returns the parsed template for tk. ok is false when no template is
// registered for the trigger.
func (s *Usecase) compile(tk entity.TriggerKey) (c *compiled, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.cache[tk]; ok {
		return c, true, nil
	}

	tpl, ok := entity.Templates[tk]
	if !ok {
		return nil, false, nil
	}

	subject, err := template.New(tk.String() + ".subject").Option("missingkey=zero").Parse(tpl.Subject)
	if err != nil {
		return nil, true, err
	}
	body, err := template.New(tk.String() + ".body").Option("missingkey=zero").Parse(tpl.Body)
	if err != nil {
		return nil, true, err
	}

	c = &compiled{subject: subject, body: body}
	s.cache[tk] = c
	return c, true, nil
}

func (c *compiled) render(data map[string]any) (subject, body string, err error) {
	var sb, bb strings.Builder
	if err := c.subject.Execute(&sb, data); err != nil {
		return "", "", err
	}
	if err := c.body.Execute(&bb, data); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(sb.String()), bb.String(), nil
}

// templateData layers per-event values over the branding every email carries.
func (s *Usecase) templateData(extra map[string]any) map[string]any {
	base := map[string]any{
		"support_email": lo.CoalesceOrEmpty(s.cfg.GetString("modules.notification.support_email"), defaultSupportEmail),
		"company_name":  lo.CoalesceOrEmpty(s.cfg.GetString("app.name"), defaultCompanyName),
		"year":          s.clock.Now().Year(),
	}
	return lo.Assign(base, extra)
}

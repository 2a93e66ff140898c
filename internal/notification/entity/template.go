package entity

// TriggerKey names the event that sends a notification.
type TriggerKey string

const (
	TriggerKeyWelcome       TriggerKey = "account_welcome"
	TriggerKeyAccountLocked TriggerKey = "account_locked"
)

func (t TriggerKey) String() string {
	return string(t)
}

// Template is an email subject and html/template body for one trigger.
type Template struct {
	TriggerKey TriggerKey
	Subject    string
	Body       string
}

// Templates holds the email copy sent for each trigger.
var Templates = map[TriggerKey]Template{
	TriggerKeyWelcome: {
		TriggerKey: TriggerKeyWelcome,
		Subject:    "Welcome to {{.company_name}}",
		Body: `<p>Hi,</p>
<p>Your email {{.email}} is confirmed. You can now sign in with a one-time code.</p>
<p>Questions? Write to {{.support_email}}.</p>
<p>&copy; {{.year}} {{.company_name}}</p>`,
	},
	TriggerKeyAccountLocked: {
		TriggerKey: TriggerKeyAccountLocked,
		Subject:    "Your {{.company_name}} account is temporarily locked",
		Body: `<p>Hi,</p>
<p>We locked sign-in for {{.email}} after {{.failed_attempts}} failed attempts{{if .origin}} from {{.origin}}{{end}}.</p>
<p>You can try again after {{.locked_until}}. If this was not you, contact {{.support_email}}.</p>
<p>&copy; {{.year}} {{.company_name}}</p>`,
	},
}

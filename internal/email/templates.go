package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"
)

// WelcomeData fills the welcome template.
type WelcomeData struct {
	FirstName    string
	Credits      int64
	TrialDays    int
	TrialEndsAt  *time.Time
	DashboardURL string
	DocsURL      string
}

// ConversionData fills the trial conversion template.
type ConversionData struct {
	FirstName   string
	DaysLeft    int
	TrialEndsAt *time.Time
	BillingURL  string
}

var funcs = map[string]any{
	"credits": formatCredits,
	"date":    func(t *time.Time) string { return t.UTC().Format("2006-01-02") },
	"minutes": func(credits int64) int64 { return max(1, credits/1000) },
	"name": func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "there"
		}
		return s
	},
}

const layoutOpen = `<!doctype html>
<html><body style="margin:0;padding:0;background:#f7f9fc;font-family:Inter,system-ui,Helvetica,Arial,sans-serif;color:#1f2937;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="padding:24px 0;"><tr><td align="center">
<table role="presentation" width="600" cellpadding="0" cellspacing="0" style="background:#fff;border-radius:12px;padding:28px;border:1px solid #e5e7eb;">
`

const layoutClose = `</table>
<div style="font-size:12px;color:#9ca3af;margin-top:12px;">&copy; Vocalis. All rights reserved.</div>
</td></tr></table>
</body></html>
`

var welcomeHTML = htmltemplate.Must(htmltemplate.New("welcome").Funcs(funcs).Parse(layoutOpen + `
<tr><td style="text-align:center;"><span style="background:#1e88e5;color:#fff;border-radius:12px;padding:6px 10px;font-weight:700;">VOCALIS</span></td></tr>
<tr><td style="font-size:24px;font-weight:800;text-align:center;padding-top:8px;">Welcome to Vocalis!</td></tr>
<tr><td style="font-size:16px;color:#374151;padding-top:8px;">Hey {{name .FirstName}},<br><br>Your Vocalis account is ready. Here's what you got:</td></tr>
<tr><td style="padding-top:12px;">
  <div style="background:#eef6ff;border:1px solid #93c5fd;border-radius:12px;padding:20px;text-align:center;">
    <div style="font-size:34px;font-weight:800;color:#1e3a8a;">{{credits .Credits}} credits</div>
    <div style="color:#64748b;font-size:14px;">&asymp; {{minutes .Credits}} minutes of voice generation</div>
  </div>
</td></tr>
<tr><td style="font-size:14px;font-weight:700;padding-top:16px;">What you can do with your credits:</td></tr>
<tr><td style="font-size:14px;color:#4b5563;padding-top:8px;"><ul style="margin:0 0 0 18px;padding:0;">
  <li>Standard voices: 1,000 characters = 1,000 credits</li>
  <li>Premium voices: celebrity and emotional voices at 2x rate</li>
  <li>Voice cloning: create your custom voice (25,000 credit setup)</li>
</ul></td></tr>
{{if .TrialEndsAt}}<tr><td style="font-size:13px;color:#6b7280;padding-top:12px;">Trial ends on <strong>{{date .TrialEndsAt}}</strong> (UTC).</td></tr>{{end}}
<tr><td style="padding-top:16px;"><a href="{{.DashboardURL}}" style="background:#1e88e5;color:#fff;text-decoration:none;font-weight:600;padding:12px 18px;border-radius:8px;">Start Creating Voices</a></td></tr>
<tr><td style="font-size:13px;color:#6b7280;padding-top:16px;">Questions? Just reply to this email. Need help? <a href="{{.DocsURL}}" style="color:#1e88e5;">Read the docs</a>.</td></tr>
` + layoutClose))

var welcomeText = texttemplate.Must(texttemplate.New("welcome").Funcs(funcs).Parse(`Hi {{name .FirstName}},

Your Vocalis account is active with {{credits .Credits}} credits{{if .TrialDays}} for {{.TrialDays}} days{{end}}.
{{if .TrialEndsAt}}Trial ends on {{date .TrialEndsAt}} (UTC).
{{end}}
Tips:
- Standard voices: 1 credit/character
- Premium voices: 2 credits/character

Get started: {{.DashboardURL}}
Docs: {{.DocsURL}}
`))

var conversionHTML = htmltemplate.Must(htmltemplate.New("conversion").Funcs(funcs).Parse(layoutOpen + `
<tr><td style="font-size:22px;font-weight:800;color:#111827;">Your trial ends in {{.DaysLeft}} days</td></tr>
<tr><td style="font-size:16px;color:#374151;padding-top:8px;">Hi {{name .FirstName}},<br><br>Keep creating with Vocalis. Upgrade now and enjoy <strong>20% off</strong> your first month.</td></tr>
<tr><td style="padding-top:16px;"><a href="{{.BillingURL}}" style="background:#1e88e5;color:#fff;text-decoration:none;font-weight:600;padding:12px 18px;border-radius:8px;">See Plans</a></td></tr>
{{if .TrialEndsAt}}<tr><td style="font-size:13px;color:#6b7280;padding-top:12px;">Trial ends on <strong>{{date .TrialEndsAt}}</strong>.</td></tr>{{end}}
` + layoutClose))

var conversionText = texttemplate.Must(texttemplate.New("conversion").Funcs(funcs).Parse(`Hi {{name .FirstName}},

Your Vocalis trial ends in {{.DaysLeft}} days. Upgrade now for 20% off.{{if .TrialEndsAt}} Trial ends on {{date .TrialEndsAt}}.{{end}}

See plans: {{.BillingURL}}
`))

// WelcomeMessage renders the welcome email for to.
func WelcomeMessage(to string, data WelcomeData) (Message, error) {
	html, text, err := render(welcomeHTML, welcomeText, data)
	if err != nil {
		return Message{}, fmt.Errorf("render welcome: %w", err)
	}
	subject := "Welcome to Vocalis, your account is ready"
	if data.TrialEndsAt != nil {
		subject = "Welcome to Vocalis, your trial is live"
	}
	return Message{To: to, Subject: subject, HTML: html, Text: text}, nil
}

// ConversionMessage renders the trial conversion email for to.
func ConversionMessage(to string, data ConversionData) (Message, error) {
	html, text, err := render(conversionHTML, conversionText, data)
	if err != nil {
		return Message{}, fmt.Errorf("render conversion: %w", err)
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("%d days left: keep creating with Vocalis (20%% off)", data.DaysLeft),
		HTML:    html,
		Text:    text,
	}, nil
}

func render(h *htmltemplate.Template, t *texttemplate.Template, data any) (string, string, error) {
	var hb, tb bytes.Buffer
	if err := h.Execute(&hb, data); err != nil {
		return "", "", err
	}
	if err := t.Execute(&tb, data); err != nil {
		return "", "", err
	}
	return hb.String(), tb.String(), nil
}

// formatCredits renders n with thousands separators.
func formatCredits(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

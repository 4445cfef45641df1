package mail

import (
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"
)

// ResetEmailSubject is the subject line for password reset mail.
const ResetEmailSubject = "Reset your PharmaPrep password"

var resetHTMLTemplate = htmltemplate.Must(htmltemplate.New("reset_html").Parse(`<p>Hello {{.Name}},</p>
<p>We received a request to reset the password for your PharmaPrep account.</p>
<p><a href="{{.Link}}">Reset your password</a></p>
<p>This link expires in {{.TTL}}. If you did not request a reset, you can safely ignore this email.</p>
<p>&mdash; The PharmaPrep team</p>
`))

var resetTextTemplate = texttemplate.Must(texttemplate.New("reset_text").Parse(`Hello {{.Name}},

We received a request to reset the password for your PharmaPrep account.

Reset it here: {{.Link}}

This link expires in {{.TTL}}. If you did not request a reset, you can safely ignore this email.

- The PharmaPrep team
`))

type resetEmailData struct {
	Name string
	Link string
	TTL  string
}

// ResetLink builds the reset URL the browser client consumes.
func ResetLink(baseURL, token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(baseURL, "/"), url.QueryEscape(token))
}

// RenderResetEmail renders the HTML and plaintext bodies for a reset email.
func RenderResetEmail(name, baseURL, token string, ttl time.Duration) (htmlBody, textBody string, err error) {
	data := resetEmailData{
		Name: name,
		Link: ResetLink(baseURL, token),
		TTL:  formatTTL(ttl),
	}

	var html, text strings.Builder
	if err := resetHTMLTemplate.Execute(&html, data); err != nil {
		return "", "", err
	}
	if err := resetTextTemplate.Execute(&text, data); err != nil {
		return "", "", err
	}
	return html.String(), text.String(), nil
}

func formatTTL(ttl time.Duration) string {
	if ttl >= time.Hour {
		hours := int(ttl.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	minutes := int(ttl.Minutes())
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

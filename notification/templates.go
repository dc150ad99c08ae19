package notification

import (
	"HealthConnect/models"
	"bytes"
	"fmt"
	"html/template"
)

var templates = template.Must(template.New("mail").Parse(`
{{define "otp"}}<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h2 style="color: #2563eb;">HealthConnect</h2>
<p>Hello {{.Name}},</p>
<p>Your verification code for {{.Purpose}} is:</p>
<p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">{{.Code}}</p>
<p>This code expires in 10 minutes. If you did not request it, you can ignore this email.</p>
</div>{{end}}

{{define "welcome"}}<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h2 style="color: #2563eb;">Welcome to HealthConnect, {{.Name}}!</h2>
<p>Your email has been verified and your {{.Role}} account is ready.</p>
{{if eq .Role "doctor"}}<p>Set up your weekly schedule so patients can start booking appointments.</p>
{{else}}<p>You can now browse doctors and book appointments.</p>{{end}}
</div>{{end}}

{{define "password_reset"}}<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h2 style="color: #2563eb;">Password reset</h2>
<p>Hello {{.Name}},</p>
<p>We received a request to reset your password. Use the link below within one hour:</p>
<p><a href="{{.URL}}">Reset my password</a></p>
<p>Each account can reset its password once. If you did not ask for this, contact support.</p>
</div>{{end}}

{{define "password_changed"}}<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h2 style="color: #2563eb;">Your password was changed</h2>
<p>Hello {{.Name}},</p>
<p>The password for your HealthConnect account was just changed and all other sessions were signed out.</p>
<p>If this was not you, contact support immediately.</p>
</div>{{end}}
`))

var subjects = map[Template]string{
	TemplateOTP:             "Your HealthConnect verification code",
	TemplateWelcome:         "Welcome to HealthConnect",
	TemplatePasswordReset:   "Reset your HealthConnect password",
	TemplatePasswordChanged: "Your HealthConnect password was changed",
}

func purposeLabel(p models.CodePurpose) string {
	switch p {
	case models.PurposeRegistration:
		return "account registration"
	case models.PurposeLogin:
		return "login"
	case models.PurposePasswordReset:
		return "password reset"
	}
	return string(p)
}

// Render executes the named template with data.
func Render(t Template, to string, data interface{}) (Message, error) {
	subject, ok := subjects[t]
	if !ok {
		return Message{}, fmt.Errorf("notification: unknown template %q", t)
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(t), data); err != nil {
		return Message{}, fmt.Errorf("notification: render %s: %w", t, err)
	}
	return Message{Template: t, To: to, Subject: subject, HTML: buf.String()}, nil
}
